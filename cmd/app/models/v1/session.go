package models

import (
	"time"

	"docpipe/internal/models"
	"docpipe/internal/ui"
)

// Session is a session id with its rendered view.
type Session struct {
	ID   string  `json:"id"`
	View ui.View `json:"session"`
}

// JobStarted is returned when a job was submitted.
type JobStarted struct {
	ID    string         `json:"id"`
	Kind  models.JobKind `json:"kind"`
	JobID string         `json:"job_id"`
	View  ui.View        `json:"session"`
}

// AskPost is the body of an ask request.
type AskPost struct {
	// Question replaces the session's question before it is sent.
	Question string `json:"question"`
}

// Answer is returned by a successful ask request.
type Answer struct {
	ID     string  `json:"id"`
	Answer string  `json:"answer"`
	View   ui.View `json:"session"`
}

// Download is a signed link to the extracted text.
type Download struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// Health reports the server state.
type Health struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}
