package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/scan-pipeline/internal/broadcast"
	"github.com/tbourn/scan-pipeline/internal/domain"
)

// ErrSessionNotFound is returned for a session with no open stream.
var ErrSessionNotFound = errors.New("notification session not found")

// watcherBuffer bounds each watcher; changes that do not fit are skipped.
const watcherBuffer = 32

// Session is the toast state of one client session, shared by every stream
// the client has open.
type Session struct {
	ID    string
	Queue *Queue

	refs   int
	cancel context.CancelFunc
	done   chan struct{}
	log    zerolog.Logger

	wmu      sync.Mutex
	watchers map[chan ToastChange]struct{}
}

// Watch subscribes to toast changes. The returned stop func unregisters and
// closes the channel; it is safe to call more than once.
func (s *Session) Watch() (<-chan ToastChange, func()) {
	ch := make(chan ToastChange, watcherBuffer)
	s.wmu.Lock()
	s.watchers[ch] = struct{}{}
	s.wmu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.wmu.Lock()
			delete(s.watchers, ch)
			s.wmu.Unlock()
			close(ch)
		})
	}
}

func (s *Session) fanout(change ToastChange) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	for ch := range s.watchers {
		select {
		case ch <- change:
		default:
			s.log.Warn().Str("toast", change.Toast.ID).Str("kind", string(change.Kind)).Msg("watcher full; toast change skipped")
		}
	}
}

// Registry owns one Session per client session id.
type Registry struct {
	hub      *broadcast.Hub
	duration time.Duration
	log      zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry builds a Registry whose sessions turn hub events into toasts
// lasting duration.
func NewRegistry(hub *broadcast.Hub, duration time.Duration, log zerolog.Logger) *Registry {
	return &Registry{
		hub:      hub,
		duration: duration,
		log:      log.With().Str("component", "notify").Logger(),
		sessions: make(map[string]*Session),
	}
}

// Acquire returns the session for id, creating it (and its event pump) on
// first use. Every Acquire must be paired with one call of the returned
// release func.
func (r *Registry) Acquire(id string) (*Session, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		s = r.start(id)
		r.sessions[id] = s
	}
	s.refs++

	var once sync.Once
	return s, func() { once.Do(func() { r.release(s) }) }
}

func (r *Registry) start(id string) *Session {
	s := &Session{
		ID:       id,
		done:     make(chan struct{}),
		log:      r.log.With().Str("session", id).Logger(),
		watchers: make(map[chan ToastChange]struct{}),
	}
	s.Queue = NewQueue(QueueOptions{DefaultDuration: r.duration, OnChange: s.fanout})

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	// Subscribe before returning so no event published after Acquire is missed.
	sub := r.hub.Subscribe()
	go func() {
		defer close(s.done)
		_ = r.hub.ConsumeFrom(ctx, sub, func(evt domain.NotificationEvent) {
			msg, sev, ok := ToastFor(evt)
			if !ok {
				return
			}
			if _, err := s.Queue.Enqueue(msg, sev, 0); err != nil && !errors.Is(err, ErrQueueClosed) {
				s.log.Warn().Err(err).Str("job_id", evt.JobID).Msg("enqueue toast")
			}
		})
	}()
	s.log.Debug().Msg("notification session started")
	return s
}

func (r *Registry) release(s *Session) {
	r.mu.Lock()
	s.refs--
	last := s.refs == 0
	if last {
		delete(r.sessions, s.ID)
	}
	r.mu.Unlock()

	if !last {
		return
	}
	s.cancel()
	<-s.done
	s.Queue.Close()
	s.log.Debug().Msg("notification session closed")
}

// Get returns the live session for id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Dismiss removes a toast from a session if both still exist.
func (r *Registry) Dismiss(sessionID, toastID string) bool {
	s, err := r.Get(sessionID)
	if err != nil {
		return false
	}
	return s.Queue.Dismiss(toastID)
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
