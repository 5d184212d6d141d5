package models

import "strings"

// JobStatus is the typed form of the status strings written by the pipeline workers.
type JobStatus int

const (
	// StatusUnknown is any value outside the known vocabulary. Never terminal.
	StatusUnknown JobStatus = iota
	StatusStarted
	StatusInProgress
	StatusSucceeded
	StatusComplete
	StatusFailed
)

var statusNames = map[JobStatus]string{
	StatusUnknown:    "unknown",
	StatusStarted:    "started",
	StatusInProgress: "in_progress",
	StatusSucceeded:  "succeeded",
	StatusComplete:   "complete",
	StatusFailed:     "failed",
}

func (s JobStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return statusNames[StatusUnknown]
}

// Terminal reports whether the job reached its final successful state and
// its result payload can be read.
func (s JobStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusComplete
}

// Raw values per kind. Extraction rows carry the text-detection service
// status; embedding and summarization rows are written by the workers.
var rawStatuses = map[JobKind]map[string]JobStatus{
	KindExtraction: {
		"Started":     StatusStarted,
		"IN_PROGRESS": StatusInProgress,
		"SUCCEEDED":   StatusSucceeded,
		"FAILED":      StatusFailed,
	},
	KindEmbedding: {
		"Started":  StatusStarted,
		"Complete": StatusComplete,
		"Failed":   StatusFailed,
	},
	KindSummarization: {
		"Started":  StatusStarted,
		"Complete": StatusComplete,
		"Failed":   StatusFailed,
	},
}

// ParseStatus maps a raw stored status to a JobStatus. Matching is exact
// after trimming surrounding whitespace; anything else is StatusUnknown.
func ParseStatus(kind JobKind, raw string) JobStatus {
	vocab, ok := rawStatuses[kind]
	if !ok {
		return StatusUnknown
	}
	if s, ok := vocab[strings.TrimSpace(raw)]; ok {
		return s
	}
	return StatusUnknown
}
