// Package session holds the interactive state of one document as it moves
// through the pipeline: upload, extraction, embedding, summarization and
// question answering.
//
// All state changes happen under a single mutex. Network calls never run
// under it: an operation captures what it needs, releases the lock, performs
// the call and re-acquires the lock to apply the result, after checking that
// the session was not reset in the meantime.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"docpipe/internal/api"
	"docpipe/internal/models"
	"docpipe/internal/notify"
	"docpipe/internal/poller"
	"docpipe/internal/resolver"

	"github.com/jonboulle/clockwork"
)

// Uploader writes a document to object storage.
type Uploader interface {
	Upload(ctx context.Context, fileName string, r io.Reader) (models.Document, error)
}

// Submitter starts pipeline jobs and answers questions.
type Submitter interface {
	StartExtraction(ctx context.Context, doc models.Document) (string, error)
	StartEmbedding(ctx context.Context, doc models.Document, textPath string) (string, error)
	StartSummarization(ctx context.Context, doc models.Document, textPath string, params models.SummarizeParams) (string, error)
	Ask(ctx context.Context, docID, question string) (*api.Answer, error)
}

// Resolver exchanges an extraction output path for a download link.
type Resolver interface {
	Resolve(ctx context.Context, docID, outputPath string) (resolver.Download, error)
}

// Tables names the status table polled for each job kind.
type Tables struct {
	Jobs       string
	Embeddings string
	Summaries  string
}

func (t Tables) forKind(kind models.JobKind) string {
	switch kind {
	case models.KindEmbedding:
		return t.Embeddings
	case models.KindSummarization:
		return t.Summaries
	default:
		return t.Jobs
	}
}

// Config wires a Session to its collaborators.
type Config struct {
	Uploader  Uploader
	Submitter Submitter
	Store     Querier
	Resolver  Resolver
	Tables    Tables

	// Params are the summarization parameters a session starts with and
	// returns to on start over. Zero means models.DefaultSummarizeParams.
	Params models.SummarizeParams

	Notifier notify.Notifier
	Logger   *slog.Logger

	// Clock, Interval and MaxAttempts configure status polling.
	Clock       clockwork.Clock
	Interval    time.Duration
	MaxAttempts int

	Now func() time.Time
}

// Session is the state of one document.
type Session struct {
	mu    sync.Mutex
	state State

	// epoch increments on every start over. Results carrying an older
	// epoch are discarded.
	epoch uint64

	// resolving is set while the download link of a finished extraction is
	// being fetched.
	resolving bool

	// changed is closed and replaced on every state change.
	changed chan struct{}

	// queued holds notifications raised under the lock; unlock delivers them.
	queued []notify.Notification

	defaults  models.SummarizeParams
	uploader  Uploader
	submitter Submitter
	store     Querier
	resolver  Resolver
	tables    Tables
	polls     *poller.Registry
	interval  time.Duration
	notifier  notify.Notifier
	logger    *slog.Logger
	now       func() time.Time
}

// New returns an empty session wired to the collaborators in cfg.
func New(cfg Config) (*Session, error) {
	if cfg.Uploader == nil || cfg.Submitter == nil || cfg.Store == nil || cfg.Resolver == nil {
		return nil, errors.New("session requires an uploader, a submitter, a status store and a resolver")
	}
	if cfg.Params == (models.SummarizeParams{}) {
		cfg.Params = models.DefaultSummarizeParams()
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid summarization parameters: %w", err)
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Discard
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Interval == 0 {
		cfg.Interval = poller.DefaultInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Session{
		state:     newState(cfg.Params),
		changed:   make(chan struct{}),
		defaults:  cfg.Params,
		uploader:  cfg.Uploader,
		submitter: cfg.Submitter,
		store:     cfg.Store,
		resolver:  cfg.Resolver,
		tables:    cfg.Tables,
		interval:  cfg.Interval,
		notifier:  cfg.Notifier,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}

	opts := []poller.Option{
		poller.WithInterval(cfg.Interval),
		poller.WithMaxAttempts(cfg.MaxAttempts),
		poller.WithLogger(cfg.Logger),
		poller.WithExhaustedHook(s.pollExhausted),
	}
	if cfg.Clock != nil {
		opts = append(opts, poller.WithClock(cfg.Clock))
	}
	s.polls = poller.New(opts...)
	return s, nil
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Upload stores the file and makes it the session's document.
func (s *Session) Upload(ctx context.Context, fileName string, r io.Reader) (models.Document, error) {
	s.mu.Lock()
	if err := s.state.CanUpload(); err != nil {
		s.mu.Unlock()
		return models.Document{}, err
	}
	s.state.Uploading = true
	epoch := s.epoch
	s.changedLocked()
	s.mu.Unlock()

	doc, err := s.uploader.Upload(ctx, fileName, r)

	s.mu.Lock()
	defer s.unlock()
	if epoch != s.epoch {
		return models.Document{}, ErrSessionReset
	}
	s.state.Uploading = false
	s.changedLocked()
	if err != nil {
		s.logger.Warn("Upload failed", slog.String("file", fileName), slog.String("error", err.Error()))
		s.notifyLocked(notify.Warning, "", "Failed to upload file")
		return models.Document{}, err
	}

	s.state.Document = doc
	s.notifyLocked(notify.Success, "", fmt.Sprintf("Uploaded file %s", doc.Key))
	return doc, nil
}

// StartExtraction submits the text extraction job.
func (s *Session) StartExtraction(ctx context.Context) (string, error) {
	return s.start(ctx, models.KindExtraction)
}

// StartEmbedding submits the embedding job. Extraction must be done.
func (s *Session) StartEmbedding(ctx context.Context) (string, error) {
	return s.start(ctx, models.KindEmbedding)
}

// StartSummarization submits the summarization job with the current
// parameters. Extraction must be done.
func (s *Session) StartSummarization(ctx context.Context) (string, error) {
	return s.start(ctx, models.KindSummarization)
}

// Start submits a job of kind.
func (s *Session) Start(ctx context.Context, kind models.JobKind) (string, error) {
	return s.start(ctx, kind)
}

func (s *Session) start(ctx context.Context, kind models.JobKind) (string, error) {
	s.mu.Lock()
	if err := s.state.CanStart(kind); err != nil {
		s.mu.Unlock()
		return "", err
	}
	job := s.state.Jobs[kind]
	job.Submitting = true
	s.state.Jobs[kind] = job
	epoch := s.epoch
	doc := s.state.Document
	textPath := s.state.OutputPath
	params := s.state.Params
	s.changedLocked()
	s.mu.Unlock()

	jobID, err := s.submit(ctx, kind, doc, textPath, params)

	s.mu.Lock()
	defer s.unlock()
	if epoch != s.epoch {
		return "", ErrSessionReset
	}

	job = s.state.Jobs[kind]
	job.Submitting = false
	defer s.changedLocked()
	if err != nil {
		s.state.Jobs[kind] = job
		s.logger.Warn("Job submission failed",
			slog.String("kind", string(kind)),
			slog.String("doc_id", doc.ID),
			slog.String("error", err.Error()),
		)
		s.notifyLocked(notify.Warning, kind, "Failed to start "+label(kind))
		return "", err
	}

	if err := s.pollLocked(kind, doc.ID, jobID); err != nil {
		s.state.Jobs[kind] = job
		s.logger.Warn("Job started but status polling failed",
			slog.String("kind", string(kind)),
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return "", err
	}
	job.JobID = jobID
	job.Phase = PhasePending
	s.state.Jobs[kind] = job

	s.logger.Info("Job started",
		slog.String("kind", string(kind)),
		slog.String("doc_id", doc.ID),
		slog.String("job_id", jobID),
	)
	s.notifyLocked(notify.Success, kind, capitalize(label(kind))+" started")
	return jobID, nil
}

// submit sends the start request of kind. Embedding and summarization read
// the extracted text at textPath.
func (s *Session) submit(ctx context.Context, kind models.JobKind, doc models.Document, textPath string, params models.SummarizeParams) (string, error) {
	switch kind {
	case models.KindExtraction:
		return s.submitter.StartExtraction(ctx, doc)
	case models.KindEmbedding:
		return s.submitter.StartEmbedding(ctx, doc, textPath)
	case models.KindSummarization:
		return s.submitter.StartSummarization(ctx, doc, textPath, params)
	}
	return "", fmt.Errorf("unknown job kind %q", kind)
}

// SetParams replaces the summarization parameters used by the next
// summarization request.
func (s *Session) SetParams(p models.SummarizeParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.unlock()
	s.state.Params = p
	s.changedLocked()
	return nil
}

// SetQuestion replaces the question. The last answer is kept.
func (s *Session) SetQuestion(q string) {
	s.mu.Lock()
	defer s.unlock()
	s.state.Question = q
	s.changedLocked()
}

// Ask sends the current question. On failure the previous answer is kept
// and the question stays editable.
func (s *Session) Ask(ctx context.Context) (string, error) {
	s.mu.Lock()
	if err := s.state.CanAsk(); err != nil {
		s.mu.Unlock()
		return "", err
	}
	s.state.Asking = true
	epoch := s.epoch
	docID := s.state.Document.ID
	question := s.state.Question
	s.changedLocked()
	s.mu.Unlock()

	answer, err := s.submitter.Ask(ctx, docID, question)

	s.mu.Lock()
	defer s.unlock()
	if epoch != s.epoch {
		return "", ErrSessionReset
	}
	s.state.Asking = false
	s.changedLocked()
	if err != nil {
		s.logger.Warn("Question answering failed", slog.String("doc_id", docID), slog.String("error", err.Error()))
		s.notifyLocked(notify.Warning, "", "Failed to get answer")
		return "", err
	}

	s.state.Answer = answer.Answer
	return answer.Answer, nil
}

// StartOver cancels every poll and returns the session to its initial state.
// Results of requests still in flight are discarded when they arrive.
func (s *Session) StartOver() {
	s.mu.Lock()
	defer s.unlock()

	s.polls.CancelAll()
	s.epoch++
	s.resolving = false
	s.state = newState(s.defaults)
	s.changedLocked()
	s.logger.Info("Session reset", slog.Uint64("epoch", s.epoch))
}

// Resume restarts status polling for a pending job whose polling stopped.
func (s *Session) Resume(kind models.JobKind) error {
	s.mu.Lock()
	defer s.unlock()

	job, ok := s.state.Jobs[kind]
	if !ok || job.Phase != PhasePending {
		return ErrNotPolling
	}
	if err := s.pollLocked(kind, s.state.Document.ID, job.JobID); err != nil {
		return err
	}
	job.Stalled = false
	s.state.Jobs[kind] = job
	s.changedLocked()
	return nil
}

// Wait blocks until kind is done. For extraction it also waits for the
// download link request that follows completion.
func (s *Session) Wait(ctx context.Context, kind models.JobKind) error {
	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()

	for {
		s.mu.Lock()
		if epoch != s.epoch {
			s.mu.Unlock()
			return ErrSessionReset
		}
		job := s.state.Jobs[kind]
		switch {
		case job.Phase == PhaseDone && !(kind == models.KindExtraction && s.resolving):
			s.mu.Unlock()
			return nil
		case job.Stalled:
			s.mu.Unlock()
			return ErrPollingStopped
		case job.Phase == PhaseIdle && !job.Submitting:
			s.mu.Unlock()
			return ErrNoJob
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

// Changed returns a channel closed on the next state change.
func (s *Session) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

// Close stops every poll.
func (s *Session) Close() {
	s.StartOver()
}

func (s *Session) changedLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *Session) notifyLocked(level notify.Level, kind models.JobKind, msg string) {
	s.queued = append(s.queued, notify.Notification{
		Level:      level,
		Message:    msg,
		DocumentID: s.state.Document.ID,
		Kind:       kind,
		Time:       s.now(),
	})
}

// unlock releases the lock and delivers the notifications raised under it.
func (s *Session) unlock() {
	queued := s.queued
	s.queued = nil
	s.mu.Unlock()
	for _, n := range queued {
		s.notifier.Notify(n)
	}
}

func label(kind models.JobKind) string {
	switch kind {
	case models.KindExtraction:
		return "PDF extraction"
	case models.KindEmbedding:
		return "embedding generation"
	case models.KindSummarization:
		return "summarization"
	}
	return string(kind)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if c := s[0]; c >= 'a' && c <= 'z' {
		return string(c-'a'+'A') + s[1:]
	}
	return s
}
