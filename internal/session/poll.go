package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"docpipe/internal/jobstore"
	"docpipe/internal/models"
	"docpipe/internal/notify"
	"docpipe/internal/poller"
)

// Querier reads job-status records.
type Querier interface {
	Query(ctx context.Context, q jobstore.Query) ([]models.Record, error)
}

// pollLocked arms status polling for the job of kind.
func (s *Session) pollLocked(kind models.JobKind, docID, jobID string) error {
	q := jobstore.Query{Table: s.tables.forKind(kind), DocumentID: docID}
	if kind == models.KindSummarization {
		q.SortKey = jobID
	}
	epoch := s.epoch
	key := poller.Key{DocumentID: docID, Kind: kind}

	err := s.polls.Start(key, func(ctx context.Context) (bool, error) {
		records, err := s.store.Query(ctx, q)
		if err != nil {
			return false, fmt.Errorf("failed to query %s status: %w", kind, err)
		}
		return s.applyRecords(ctx, epoch, kind, records), nil
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s polling: %w", kind, err)
	}
	return nil
}

// lastTerminal returns the last record whose status is terminal for kind.
func lastTerminal(kind models.JobKind, records []models.Record) (models.Record, bool) {
	var (
		found models.Record
		ok    bool
	)
	for _, r := range records {
		if r.StatusFor(kind).Terminal() {
			found, ok = r, true
		}
	}
	return found, ok
}

// applyRecords applies one status check and reports whether polling is done.
func (s *Session) applyRecords(ctx context.Context, epoch uint64, kind models.JobKind, records []models.Record) bool {
	rec, terminal := lastTerminal(kind, records)

	s.mu.Lock()
	if epoch != s.epoch {
		s.unlock()
		s.logger.Debug("Discarding stale status check", slog.String("kind", string(kind)))
		return true
	}

	job := s.state.Jobs[kind]
	if job.Phase == PhaseDone {
		// Already captured.
		s.unlock()
		return true
	}
	job.Attempts++

	if !terminal {
		s.state.Jobs[kind] = job
		s.changedLocked()
		s.notifyLocked(notify.Info, kind, fmt.Sprintf("Checking job status every %s...", humanInterval(s.interval)))
		s.unlock()
		return false
	}

	job.Phase = PhaseDone
	s.state.Jobs[kind] = job
	docID := s.state.Document.ID
	switch kind {
	case models.KindExtraction:
		s.state.OutputPath = rec.OutputPath
		s.resolving = true
	case models.KindSummarization:
		s.state.SummaryText = rec.SummaryText
	}
	s.changedLocked()
	s.notifyLocked(notify.Success, kind, capitalize(label(kind))+" done")
	s.logger.Info("Job finished",
		slog.String("kind", string(kind)),
		slog.String("doc_id", docID),
		slog.String("status", rec.Status),
		slog.Int("attempts", job.Attempts),
	)
	s.unlock()

	if kind == models.KindExtraction {
		s.resolveDownload(ctx, epoch, docID, rec.OutputPath)
	}
	return true
}

// resolveDownload fetches the download link of a finished extraction. A
// failure is reported once and can be retried with ResolveDownload.
func (s *Session) resolveDownload(ctx context.Context, epoch uint64, docID, outputPath string) error {
	download, err := s.resolver.Resolve(ctx, docID, outputPath)

	s.mu.Lock()
	defer s.unlock()
	if epoch != s.epoch {
		return ErrSessionReset
	}
	s.resolving = false
	s.changedLocked()
	if download.OutputPath != "" {
		s.state.OutputPath = download.OutputPath
	}
	if err != nil {
		s.logger.Warn("Download link failed", slog.String("doc_id", docID), slog.String("error", err.Error()))
		s.notifyLocked(notify.Warning, models.KindExtraction, "Failed to get download link")
		return err
	}

	s.state.DownloadURL = download.URL
	s.state.DownloadExpiresAt = download.ExpiresAt
	return nil
}

// ResolveDownload requests a fresh download link for the extracted text.
func (s *Session) ResolveDownload(ctx context.Context) (string, error) {
	s.mu.Lock()
	if !s.state.Done(models.KindExtraction) {
		s.mu.Unlock()
		return "", ErrExtractionNotDone
	}
	if s.resolving {
		s.mu.Unlock()
		return "", ErrInFlight
	}
	s.resolving = true
	epoch := s.epoch
	docID := s.state.Document.ID
	outputPath := s.state.OutputPath
	s.mu.Unlock()

	if err := s.resolveDownload(ctx, epoch, docID, outputPath); err != nil {
		return "", err
	}
	return s.Snapshot().DownloadURL, nil
}

// pollExhausted runs when polling gave up on a job. The job stays pending
// until Resume.
func (s *Session) pollExhausted(key poller.Key, attempts int) {
	s.mu.Lock()
	defer s.unlock()
	if key.DocumentID != s.state.Document.ID {
		return
	}
	job := s.state.Jobs[key.Kind]
	if job.Phase != PhasePending {
		return
	}
	job.Stalled = true
	s.state.Jobs[key.Kind] = job
	s.changedLocked()
	s.notifyLocked(notify.Warning, key.Kind,
		fmt.Sprintf("Stopped checking %s status after %d attempts", label(key.Kind), attempts))
}

func humanInterval(d time.Duration) string {
	switch {
	case d >= time.Minute && d%time.Minute == 0:
		if d == time.Minute {
			return "minute"
		}
		return fmt.Sprintf("%d minutes", d/time.Minute)
	case d >= time.Second && d%time.Second == 0:
		if d == time.Second {
			return "second"
		}
		return fmt.Sprintf("%d seconds", d/time.Second)
	}
	return d.String()
}
