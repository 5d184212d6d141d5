package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"docpipe/internal/models"
	"docpipe/internal/notify"
	"docpipe/internal/session"

	"golang.org/x/sync/errgroup"
)

// Input describes one headless run of the pipeline.
type Input struct {
	FileName string
	Content  io.Reader

	// Questions are asked once embedding finished.
	Questions []string

	// Params overrides the session's summarization parameters.
	Params *models.SummarizeParams

	SkipEmbedding bool
	SkipSummary   bool
}

// Answer is the outcome of one question.
type Answer struct {
	Question string `json:"question"`
	Answer   string `json:"answer,omitempty"`
	Error    string `json:"error,omitempty"`
}

// OrchestrationResult contains all outputs from the orchestration flow.
type OrchestrationResult struct {
	Document models.Document `json:"document"`

	ExtractionJobID    string `json:"extraction_job_id,omitempty"`
	EmbeddingJobID     string `json:"embedding_job_id,omitempty"`
	SummarizationJobID string `json:"summarization_job_id,omitempty"`

	DownloadURL string   `json:"download_url,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	Answers     []Answer `json:"answers,omitempty"`

	UploadDuration     time.Duration `json:"upload_duration"`
	ExtractionDuration time.Duration `json:"extraction_duration"`
	EmbeddingDuration  time.Duration `json:"embedding_duration"`
	SummaryDuration    time.Duration `json:"summary_duration"`
	QADuration         time.Duration `json:"qa_duration"`
	TotalDuration      time.Duration `json:"total_duration"`

	// Warnings lists failures of optional stages. The run still returns a result.
	Warnings []string `json:"warnings,omitempty"`
}

// Orchestrator defines the interface for executing the pipeline end to end.
type Orchestrator interface {
	Execute(ctx context.Context, input Input) (*OrchestrationResult, error)
}

// SessionFactory builds the session a run drives.
type SessionFactory func(n notify.Notifier) (*session.Session, error)

// DefaultOrchestrator drives a fresh session through every stage.
type DefaultOrchestrator struct {
	newSession SessionFactory
	notifier   notify.Notifier
}

// NewOrchestrator creates a DefaultOrchestrator. Session notifications go to n.
func NewOrchestrator(factory SessionFactory, n notify.Notifier) *DefaultOrchestrator {
	if n == nil {
		n = notify.Discard
	}
	return &DefaultOrchestrator{newSession: factory, notifier: n}
}

// Execute uploads the document, extracts its text, then generates embeddings
// and a summary concurrently and finally answers the questions.
// Upload and extraction failures abort the run; later stages only add warnings.
func (o *DefaultOrchestrator) Execute(ctx context.Context, input Input) (*OrchestrationResult, error) {
	startTime := time.Now()
	result := &OrchestrationResult{}

	s, err := o.newSession(o.notifier)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	defer s.Close()

	if input.Params != nil {
		if err := s.SetParams(*input.Params); err != nil {
			return nil, fmt.Errorf("invalid summarization parameters: %w", err)
		}
	}

	// 1. Upload
	uploadStart := time.Now()
	doc, err := s.Upload(ctx, input.FileName, input.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to upload document: %w", err)
	}
	result.Document = doc
	result.UploadDuration = time.Since(uploadStart)
	slog.Info("Upload complete",
		slog.String("doc_id", doc.ID),
		slog.Duration("upload_duration", result.UploadDuration),
	)

	// 2. Extraction
	extractionStart := time.Now()
	result.ExtractionJobID, err = runJob(ctx, s, models.KindExtraction)
	result.ExtractionDuration = time.Since(extractionStart)
	if err != nil {
		result.TotalDuration = time.Since(startTime)
		return result, fmt.Errorf("text extraction failed: %w", err)
	}

	st := s.Snapshot()
	result.DownloadURL = st.DownloadURL
	if result.DownloadURL == "" {
		result.Warnings = append(result.Warnings, "extracted text has no download link")
	}
	slog.Info("Extraction complete",
		slog.String("doc_id", doc.ID),
		slog.String("output_path", st.OutputPath),
		slog.Duration("extraction_duration", result.ExtractionDuration),
	)

	// 3. Embedding and summarization run side by side
	var (
		g                errgroup.Group
		embedErr, sumErr error
	)
	if !input.SkipEmbedding {
		g.Go(func() error {
			start := time.Now()
			result.EmbeddingJobID, embedErr = runJob(ctx, s, models.KindEmbedding)
			result.EmbeddingDuration = time.Since(start)
			return embedErr
		})
	}
	if !input.SkipSummary {
		g.Go(func() error {
			start := time.Now()
			result.SummarizationJobID, sumErr = runJob(ctx, s, models.KindSummarization)
			result.SummaryDuration = time.Since(start)
			return sumErr
		})
	}
	if err := g.Wait(); err != nil {
		slog.Warn("Optional stage failed", slog.String("error", err.Error()))
	}
	if embedErr != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("embedding generation failed: %v", embedErr))
	}
	if sumErr != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("summarization failed: %v", sumErr))
	}
	result.Summary = s.Snapshot().SummaryText

	// 4. Question answering
	if len(input.Questions) > 0 {
		qaStart := time.Now()
		if input.SkipEmbedding || embedErr != nil {
			result.Warnings = append(result.Warnings, "questions skipped: no embeddings")
		} else {
			result.Answers = ask(ctx, s, input.Questions)
			for _, a := range result.Answers {
				if a.Error != "" {
					result.Warnings = append(result.Warnings, fmt.Sprintf("question %q failed: %s", a.Question, a.Error))
				}
			}
		}
		result.QADuration = time.Since(qaStart)
	}

	result.TotalDuration = time.Since(startTime)
	slog.Info("Pipeline complete",
		slog.String("doc_id", doc.ID),
		slog.Int("warnings", len(result.Warnings)),
		slog.Duration("total_duration", result.TotalDuration),
	)
	return result, nil
}

// runJob starts a job and waits for it to finish.
func runJob(ctx context.Context, s *session.Session, kind models.JobKind) (string, error) {
	jobID, err := s.Start(ctx, kind)
	if err != nil {
		return "", err
	}
	slog.Info("Waiting for job",
		slog.String("kind", string(kind)),
		slog.String("job_id", jobID),
	)
	if err := s.Wait(ctx, kind); err != nil {
		return jobID, err
	}
	return jobID, nil
}

func ask(ctx context.Context, s *session.Session, questions []string) []Answer {
	answers := make([]Answer, 0, len(questions))
	for _, q := range questions {
		s.SetQuestion(q)
		answer, err := s.Ask(ctx)
		a := Answer{Question: q, Answer: answer}
		if err != nil {
			a.Error = err.Error()
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				answers = append(answers, a)
				break
			}
		}
		answers = append(answers, a)
	}
	return answers
}
