package models

import "time"

// JobKind names one of the asynchronous jobs a document goes through.
type JobKind string

const (
	KindExtraction    JobKind = "extraction"
	KindEmbedding     JobKind = "embedding"
	KindSummarization JobKind = "summarization"
)

// JobKinds lists every kind in pipeline order.
var JobKinds = []JobKind{KindExtraction, KindEmbedding, KindSummarization}

// ParseJobKind converts a user supplied string into a JobKind.
func ParseJobKind(s string) (JobKind, bool) {
	for _, k := range JobKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// OutputTypeOrderedText is the output table sort key holding the extracted text location.
const OutputTypeOrderedText = "ResponseOrderedText"

// Document is an uploaded file and the identifier that correlates it with its jobs.
type Document struct {
	// ID is generated client side after a successful upload. Never reused.
	ID string `json:"doc_id"`

	// Bucket is the object storage bucket holding the file.
	Bucket string `json:"bucket"`

	// Name is the stored object's logical name, including the upload prefix.
	Name string `json:"name"`

	// Key is the object key relative to the upload prefix.
	Key string `json:"key"`
}

// IsZero reports whether no document is set.
func (d Document) IsZero() bool {
	return d.ID == ""
}

// Record is one row of a job-status table.
type Record struct {
	// DocumentID is the partition key of every status table.
	DocumentID string `json:"document_id"`

	// SortKey is the job id (embedding, summarization) or the output type
	// (output table). Empty for tables keyed by document only.
	SortKey string `json:"sort_key,omitempty"`

	JobID  string `json:"job_id,omitempty"`
	Status string `json:"job_status"`

	// OutputPath is the stored location of the extracted text.
	// Only meaningful once the extraction status is terminal.
	OutputPath string `json:"output_path,omitempty"`

	// OutputType is set on output table rows.
	OutputType string `json:"output_type,omitempty"`

	// SummaryText is set by the summarization worker once the job completes.
	SummaryText string `json:"summary_text,omitempty"`

	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// StatusFor parses the record's raw status using the vocabulary of kind.
func (r Record) StatusFor(kind JobKind) JobStatus {
	return ParseStatus(kind, r.Status)
}

// DocumentSummary is one entry of a documents table listing.
type DocumentSummary struct {
	DocumentID string `json:"document_id"`
	Bucket     string `json:"bucket,omitempty"`
	ObjectName string `json:"object_name,omitempty"`
	JobID      string `json:"job_id,omitempty"`
	Status     string `json:"job_status,omitempty"`
}

// DocumentPage is a page of documents plus the token for the next page.
type DocumentPage struct {
	Documents     []DocumentSummary `json:"documents"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}
