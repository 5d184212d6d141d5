// Package poller runs self-rescheduling status checks, one task per
// document and job kind.
//
// A task arms a single one-shot timer. When it fires the check runs, and
// only after it returns is the next timer armed, so a slow check pushes the
// following one back by the whole interval. Cancelling a task stops its
// timer and cancels the context of a check that is still running; whatever
// that check returns afterwards is ignored.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"docpipe/internal/models"

	"github.com/jonboulle/clockwork"
)

// DefaultInterval is the delay between status checks.
const DefaultInterval = 30 * time.Second

// ErrAlreadyScheduled is returned by Start when the key already has a task.
var ErrAlreadyScheduled = errors.New("poll already scheduled")

// Key identifies a polling task.
type Key struct {
	DocumentID string
	Kind       models.JobKind
}

// Check performs one status check. Returning done stops the task. A non-nil
// error is treated as transient and the check is retried after the interval.
type Check func(ctx context.Context) (done bool, err error)

// Option configures a Registry.
type Option func(*Registry)

// WithClock replaces the wall clock, mainly with a clockwork.FakeClock in tests.
func WithClock(c clockwork.Clock) Option {
	return func(r *Registry) { r.clock = c }
}

// WithInterval sets the delay between checks.
func WithInterval(d time.Duration) Option {
	return func(r *Registry) { r.interval = d }
}

// WithMaxAttempts stops a task after n checks. 0 means no limit.
func WithMaxAttempts(n int) Option {
	return func(r *Registry) { r.maxAttempts = n }
}

// WithExhaustedHook is called, outside any lock, when a task stops because
// it ran out of attempts.
func WithExhaustedHook(f func(key Key, attempts int)) Option {
	return func(r *Registry) { r.onExhausted = f }
}

// WithLogger sets the logger for scheduling and check failures.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// Registry owns the polling tasks.
type Registry struct {
	mu          sync.Mutex
	clock       clockwork.Clock
	interval    time.Duration
	maxAttempts int
	onExhausted func(Key, int)
	logger      *slog.Logger
	tasks       map[Key]*task
}

type task struct {
	key      Key
	check    Check
	ctx      context.Context
	cancel   context.CancelFunc
	timer    clockwork.Timer
	attempts int
}

// New returns an empty Registry using the wall clock unless opts say otherwise.
func New(opts ...Option) *Registry {
	r := &Registry{
		clock:    clockwork.NewRealClock(),
		interval: DefaultInterval,
		logger:   slog.Default(),
		tasks:    make(map[Key]*task),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Interval returns the delay between checks.
func (r *Registry) Interval() time.Duration {
	return r.interval
}

// Start arms the first check of a new task after the interval.
func (r *Registry) Start(key Key, check Check) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[key]; ok {
		return ErrAlreadyScheduled
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &task{key: key, check: check, ctx: ctx, cancel: cancel}
	r.tasks[key] = t
	r.armLocked(t)

	r.logger.Debug("Poll scheduled",
		slog.String("document_id", key.DocumentID),
		slog.String("kind", string(key.Kind)),
		slog.Duration("interval", r.interval),
	)
	return nil
}

// Pending reports whether key has a live task.
func (r *Registry) Pending(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tasks[key]
	return ok
}

// Attempts returns the number of checks started for key.
func (r *Registry) Attempts(key Key) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[key]; ok {
		return t.attempts
	}
	return 0
}

// Len returns the number of live tasks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// Cancel stops the task for key. It reports whether a task existed.
func (r *Registry) Cancel(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[key]
	if !ok {
		return false
	}
	r.removeLocked(t)
	return true
}

// CancelAll stops every task.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		r.removeLocked(t)
	}
}

func (r *Registry) armLocked(t *task) {
	t.timer = r.clock.AfterFunc(r.interval, func() { r.run(t) })
}

func (r *Registry) removeLocked(t *task) {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.cancel()
	delete(r.tasks, t.key)
}

func (r *Registry) current(t *task) bool {
	return r.tasks[t.key] == t
}

func (r *Registry) run(t *task) {
	r.mu.Lock()
	if !r.current(t) {
		r.mu.Unlock()
		return
	}
	t.attempts++
	attempt := t.attempts
	r.mu.Unlock()

	done, err := t.check(t.ctx)

	r.mu.Lock()
	if !r.current(t) {
		// Cancelled while the check was running.
		r.mu.Unlock()
		return
	}

	logAttrs := []any{
		slog.String("document_id", t.key.DocumentID),
		slog.String("kind", string(t.key.Kind)),
		slog.Int("attempt", attempt),
	}

	if err != nil {
		r.logger.Warn("Status check failed, retrying", append(logAttrs, slog.String("error", err.Error()))...)
	} else if done {
		r.removeLocked(t)
		r.mu.Unlock()
		r.logger.Debug("Poll finished", logAttrs...)
		return
	}

	if r.maxAttempts > 0 && attempt >= r.maxAttempts {
		r.removeLocked(t)
		hook := r.onExhausted
		r.mu.Unlock()
		r.logger.Warn("Poll attempts exhausted", logAttrs...)
		if hook != nil {
			hook(t.key, attempt)
		}
		return
	}

	r.armLocked(t)
	r.mu.Unlock()
}
