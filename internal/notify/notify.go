// Package notify delivers short user-facing notifications about the state
// of a document's jobs.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"docpipe/internal/models"
)

// Level is the severity of a notification.
type Level int

const (
	Info Level = iota
	Success
	Warning
)

func (l Level) String() string {
	switch l {
	case Success:
		return "success"
	case Warning:
		return "warning"
	default:
		return "info"
	}
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(b []byte) error {
	switch string(b) {
	case "info":
		*l = Info
	case "success":
		*l = Success
	case "warning":
		*l = Warning
	default:
		return fmt.Errorf("unknown notification level %q", b)
	}
	return nil
}

// Notification is one toast.
type Notification struct {
	Level      Level          `json:"level"`
	Message    string         `json:"message"`
	DocumentID string         `json:"doc_id,omitempty"`
	Kind       models.JobKind `json:"kind,omitempty"`
	Time       time.Time      `json:"time"`
}

// Notifier receives notifications. Implementations must not block for long:
// they are called from polling callbacks.
type Notifier interface {
	Notify(n Notification)
}

// Func adapts a function to Notifier.
type Func func(Notification)

func (f Func) Notify(n Notification) { f(n) }

// Multi fans a notification out to every notifier in order.
type Multi []Notifier

func (m Multi) Notify(n Notification) {
	for _, nt := range m {
		if nt != nil {
			nt.Notify(n)
		}
	}
}

// Discard drops every notification.
var Discard Notifier = Func(func(Notification) {})

// Logger writes notifications to a structured logger.
type Logger struct {
	logger *slog.Logger
}

// NewLogger returns a Logger that writes to logger, or slog.Default when nil.
func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger}
}

func (l *Logger) Notify(n Notification) {
	level := slog.LevelInfo
	if n.Level == Warning {
		level = slog.LevelWarn
	}
	l.logger.Log(context.Background(), level, n.Message,
		slog.String("level", n.Level.String()),
		slog.String("doc_id", n.DocumentID),
		slog.String("kind", string(n.Kind)),
	)
}
