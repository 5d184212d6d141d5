package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"docpipe/internal/models"
)

var (
	ErrNoDocument        = errors.New("no document uploaded")
	ErrDocumentActive    = errors.New("a document is already active; start over to upload another")
	ErrJobActive         = errors.New("a job of this kind was already started for the document")
	ErrExtractionNotDone = errors.New("text extraction has not finished")
	ErrTextNotReady      = errors.New("location of the extracted text is not known yet")
	ErrEmbeddingNotDone  = errors.New("embedding generation has not finished")
	ErrEmptyQuestion     = errors.New("question is empty")
	ErrInFlight          = errors.New("a request is already in flight")
	ErrSessionReset      = errors.New("session was reset")
	ErrNotPolling        = errors.New("no pending job to resume")
	ErrPollingStopped    = errors.New("status polling stopped before the job finished")
	ErrNoJob             = errors.New("no job started")
)

// Phase is where a job is in its life cycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseDone:
		return "done"
	default:
		return "idle"
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// JobState tracks one job kind of the active document.
type JobState struct {
	// JobID is set once the submission succeeded. It gates resubmission.
	JobID string `json:"job_id,omitempty"`

	Phase Phase `json:"phase"`

	// Submitting is set while the start request is in flight.
	Submitting bool `json:"submitting,omitempty"`

	// Attempts counts status checks applied since the job started.
	Attempts int `json:"attempts,omitempty"`

	// Stalled is set when polling gave up before the job finished.
	Stalled bool `json:"stalled,omitempty"`
}

// active reports whether the kind has a job or a submission in flight.
func (j JobState) active() bool {
	return j.JobID != "" || j.Submitting
}

// State is a snapshot of a session.
type State struct {
	Document  models.Document `json:"document"`
	Uploading bool            `json:"uploading,omitempty"`

	Jobs map[models.JobKind]JobState `json:"jobs"`

	// OutputPath is the stored location of the extracted text.
	OutputPath string `json:"output_path,omitempty"`

	DownloadURL       string    `json:"download_url,omitempty"`
	DownloadExpiresAt time.Time `json:"download_expires_at,omitempty"`

	SummaryText string `json:"summary_text,omitempty"`

	Question string `json:"question,omitempty"`
	Answer   string `json:"answer,omitempty"`
	Asking   bool   `json:"asking,omitempty"`

	Params models.SummarizeParams `json:"params"`
}

func newState(params models.SummarizeParams) State {
	jobs := make(map[models.JobKind]JobState, len(models.JobKinds))
	for _, k := range models.JobKinds {
		jobs[k] = JobState{}
	}
	return State{Jobs: jobs, Params: params}
}

func (s State) clone() State {
	jobs := make(map[models.JobKind]JobState, len(s.Jobs))
	for k, v := range s.Jobs {
		jobs[k] = v
	}
	s.Jobs = jobs
	return s
}

// Job returns the state of kind.
func (s State) Job(kind models.JobKind) JobState {
	return s.Jobs[kind]
}

// Done reports whether kind finished.
func (s State) Done(kind models.JobKind) bool {
	return s.Jobs[kind].Phase == PhaseDone
}

// CanUpload returns nil when a new document may be uploaded.
func (s State) CanUpload() error {
	if s.Uploading {
		return ErrInFlight
	}
	if !s.Document.IsZero() {
		return ErrDocumentActive
	}
	return nil
}

// CanStart returns nil when a job of kind may be submitted.
func (s State) CanStart(kind models.JobKind) error {
	if s.Document.IsZero() {
		return ErrNoDocument
	}
	switch kind {
	case models.KindExtraction:
	case models.KindEmbedding, models.KindSummarization:
		if !s.Done(models.KindExtraction) {
			return ErrExtractionNotDone
		}
		// Both jobs read the extraction output, not the uploaded file.
		if s.OutputPath == "" {
			return ErrTextNotReady
		}
	default:
		return fmt.Errorf("unknown job kind %q", kind)
	}
	if s.Jobs[kind].active() {
		return ErrJobActive
	}
	return nil
}

// CanAsk returns nil when the current question may be sent.
func (s State) CanAsk() error {
	if s.Document.IsZero() {
		return ErrNoDocument
	}
	if !s.Done(models.KindEmbedding) {
		return ErrEmbeddingNotDone
	}
	if strings.TrimSpace(s.Question) == "" {
		return ErrEmptyQuestion
	}
	if s.Asking {
		return ErrInFlight
	}
	return nil
}
