package workflow

import (
	"context"
	"io"
	"log/slog"
	"time"

	"docpipe/internal/models"
	"docpipe/internal/orchestrator"
)

// Workflow statuses.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// WorkflowInput represents the input for a complete workflow execution
type WorkflowInput struct {
	FileName string
	Content  io.Reader

	Questions []string
	Params    *models.SummarizeParams

	SkipEmbedding bool
	SkipSummary   bool
}

// WorkflowOutput represents the complete workflow execution result
type WorkflowOutput struct {
	Document struct {
		ID     string `json:"doc_id"`
		Bucket string `json:"bucket"`
		Name   string `json:"name"`
	} `json:"document"`

	Jobs struct {
		Extraction    string `json:"extraction,omitempty"`
		Embedding     string `json:"embedding,omitempty"`
		Summarization string `json:"summarization,omitempty"`
	} `json:"jobs"`

	DownloadURL string                `json:"download_url,omitempty"`
	Summary     string                `json:"summary,omitempty"`
	Answers     []orchestrator.Answer `json:"answers,omitempty"`

	Durations struct {
		Upload        time.Duration `json:"upload"`
		Extraction    time.Duration `json:"extraction"`
		Embedding     time.Duration `json:"embedding"`
		Summarization time.Duration `json:"summarization"`
		QA            time.Duration `json:"qa"`
	} `json:"durations"`

	// Overall
	Status        string        `json:"status"` // "success", "partial", "failed"
	StartTime     time.Time     `json:"start_time"`
	EndTime       time.Time     `json:"end_time"`
	TotalDuration time.Duration `json:"total_duration"`
	Errors        []string      `json:"errors"`
	Warnings      []string      `json:"warnings"`
}

// ExecuteWorkflow runs the pipeline and classifies the outcome:
// success when every stage finished, partial when an optional stage
// (embedding, summarization, questions, download link) failed, failed when
// upload or extraction did.
func ExecuteWorkflow(ctx context.Context, input WorkflowInput, orch orchestrator.Orchestrator) (*WorkflowOutput, error) {
	output := &WorkflowOutput{
		Status:    "pending",
		StartTime: time.Now(),
		Errors:    []string{},
		Warnings:  []string{},
	}

	logger := slog.Default()
	logger.Info("workflow: starting", "file", input.FileName, "questions", len(input.Questions))

	result, err := orch.Execute(ctx, orchestrator.Input{
		FileName:      input.FileName,
		Content:       input.Content,
		Questions:     input.Questions,
		Params:        input.Params,
		SkipEmbedding: input.SkipEmbedding,
		SkipSummary:   input.SkipSummary,
	})

	if result != nil {
		output.Document.ID = result.Document.ID
		output.Document.Bucket = result.Document.Bucket
		output.Document.Name = result.Document.Name
		output.Jobs.Extraction = result.ExtractionJobID
		output.Jobs.Embedding = result.EmbeddingJobID
		output.Jobs.Summarization = result.SummarizationJobID
		output.DownloadURL = result.DownloadURL
		output.Summary = result.Summary
		output.Answers = result.Answers
		output.Durations.Upload = result.UploadDuration
		output.Durations.Extraction = result.ExtractionDuration
		output.Durations.Embedding = result.EmbeddingDuration
		output.Durations.Summarization = result.SummaryDuration
		output.Durations.QA = result.QADuration
		output.Warnings = append(output.Warnings, result.Warnings...)
	}

	output.EndTime = time.Now()
	output.TotalDuration = output.EndTime.Sub(output.StartTime)

	switch {
	case err != nil:
		output.Status = StatusFailed
		output.Errors = append(output.Errors, err.Error())
	case len(output.Warnings) > 0:
		output.Status = StatusPartial
	default:
		output.Status = StatusSuccess
	}

	logger.Info("workflow: complete",
		"status", output.Status,
		"doc_id", output.Document.ID,
		"duration", output.TotalDuration,
		"errors", len(output.Errors),
		"warnings", len(output.Warnings),
	)

	return output, err
}
