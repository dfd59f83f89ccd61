// Package notify implements transient client notifications ("toasts"):
// a per-session queue with auto-expiry, the rule that turns job status
// events into toasts, and a registry of queues keyed by session.
package notify

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tbourn/scan-pipeline/internal/domain"
)

var (
	ErrInvalidSeverity = errors.New("invalid toast severity")
	ErrEmptyMessage    = errors.New("toast message is empty")
	ErrQueueClosed     = errors.New("toast queue closed")
)

// ChangeKind says whether a toast appeared or went away.
type ChangeKind string

const (
	ToastAdded   ChangeKind = "added"
	ToastRemoved ChangeKind = "removed"
)

// Removal reasons.
const (
	ReasonManual  = "manual"
	ReasonExpired = "expired"
)

// ToastChange is one mutation of a queue.
type ToastChange struct {
	Kind   ChangeKind   `json:"kind"`
	Toast  domain.Toast `json:"toast"`
	Reason string       `json:"reason,omitempty"`
}

// QueueOptions configures a Queue.
type QueueOptions struct {
	// DefaultDuration applies when Enqueue gets a non-positive duration.
	DefaultDuration time.Duration
	// OnChange observes every add and removal in order. It runs with the
	// queue lock held, so it must not block or call back into the Queue.
	OnChange func(ToastChange)
	Now      func() time.Time
}

type entry struct {
	toast domain.Toast
	timer *time.Timer
}

// Queue holds the visible toasts of one client. Every toast is removed
// exactly once: by Dismiss, by its own expiry timer, or by Close.
type Queue struct {
	opts QueueOptions

	mu      sync.Mutex
	byID    map[string]*entry
	ordered []*entry
	closed  bool
}

// NewQueue returns an empty queue.
func NewQueue(opts QueueOptions) *Queue {
	if opts.DefaultDuration <= 0 {
		opts.DefaultDuration = domain.DefaultToastDuration
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Queue{opts: opts, byID: make(map[string]*entry)}
}

// Enqueue shows a toast and schedules its removal after duration.
func (q *Queue) Enqueue(message string, severity domain.Severity, duration time.Duration) (string, error) {
	if !severity.Valid() {
		return "", ErrInvalidSeverity
	}
	if strings.TrimSpace(message) == "" {
		return "", ErrEmptyMessage
	}
	if duration <= 0 {
		duration = q.opts.DefaultDuration
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return "", ErrQueueClosed
	}

	e := &entry{toast: domain.Toast{
		ID:        uuid.NewString(),
		Message:   message,
		Severity:  severity,
		CreatedAt: q.opts.Now().UTC(),
		Duration:  duration,
	}}
	q.byID[e.toast.ID] = e
	q.ordered = append(q.ordered, e)
	// The callback takes the lock, so it cannot observe e before it is indexed.
	e.timer = time.AfterFunc(duration, func() { q.expire(e) })

	toastsEnqueued.WithLabelValues(string(severity)).Inc()
	q.emit(ToastChange{Kind: ToastAdded, Toast: e.toast})
	return e.toast.ID, nil
}

// Dismiss removes the toast now. It reports false when the toast is unknown
// or already gone.
func (q *Queue) Dismiss(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.byID[id]
	if !ok {
		return false
	}
	e.timer.Stop()
	q.removeLocked(e, ReasonManual)
	return true
}

func (q *Queue) expire(e *entry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	// A manual dismiss may have won the race; only remove our own entry.
	if cur, ok := q.byID[e.toast.ID]; !ok || cur != e {
		return
	}
	q.removeLocked(e, ReasonExpired)
}

func (q *Queue) removeLocked(e *entry, reason string) {
	delete(q.byID, e.toast.ID)
	for i, cur := range q.ordered {
		if cur == e {
			q.ordered = append(q.ordered[:i], q.ordered[i+1:]...)
			break
		}
	}
	toastsDismissed.WithLabelValues(reason).Inc()
	q.emit(ToastChange{Kind: ToastRemoved, Toast: e.toast, Reason: reason})
}

func (q *Queue) emit(ch ToastChange) {
	if q.opts.OnChange != nil {
		q.opts.OnChange(ch)
	}
}

// List returns the visible toasts, oldest first.
func (q *Queue) List() []domain.Toast {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.Toast, 0, len(q.ordered))
	for _, e := range q.ordered {
		out = append(out, e.toast)
	}
	return out
}

// Len reports how many toasts are visible.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ordered)
}

// Close stops every pending timer and drops all toasts without emitting
// changes. Later Enqueue calls fail with ErrQueueClosed.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.ordered {
		e.timer.Stop()
	}
	q.byID = make(map[string]*entry)
	q.ordered = nil
	q.closed = true
}
