package session

import (
	"errors"
	"log/slog"
	"sync"

	"docpipe/internal/notify"

	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown session ids.
var ErrNotFound = errors.New("session not found")

// Factory builds a session that reports to n.
type Factory func(n notify.Notifier) (*Session, error)

// Entry is a managed session and the hub streaming its notifications.
type Entry struct {
	ID      string
	Session *Session
	Events  *notify.Hub
}

// Manager keeps the sessions of the HTTP API.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Entry
	factory  Factory
	notifier notify.Notifier
	logger   *slog.Logger
}

// NewManager returns a Manager. Every session notification is also passed
// to n, which may be nil.
func NewManager(factory Factory, n notify.Notifier, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions: make(map[string]*Entry),
		factory:  factory,
		notifier: n,
		logger:   logger,
	}
}

// Create starts a new session.
func (m *Manager) Create() (*Entry, error) {
	hub := notify.NewHub()
	s, err := m.factory(notify.Multi{hub, m.notifier})
	if err != nil {
		hub.Close()
		return nil, err
	}

	e := &Entry{ID: uuid.NewString(), Session: s, Events: hub}
	m.mu.Lock()
	m.sessions[e.ID] = e
	m.mu.Unlock()

	m.logger.Info("Session created", slog.String("session_id", e.ID))
	return e, nil
}

func (m *Manager) Get(id string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// Delete stops the session's polls and closes its event streams.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	e.Session.Close()
	e.Events.Close()
	m.logger.Info("Session deleted", slog.String("session_id", id))
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close deletes every session.
func (m *Manager) Close() {
	m.mu.Lock()
	entries := m.sessions
	m.sessions = make(map[string]*Entry)
	m.mu.Unlock()

	for _, e := range entries {
		e.Session.Close()
		e.Events.Close()
	}
}
