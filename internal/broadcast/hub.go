// Package broadcast relays the analysis engine's event stream to any number
// of in-process subscribers.
//
// A single reader (Hub.Run) consumes the upstream stream and fans each event
// out to every subscriber with a non-blocking send, so all subscribers see
// events in the same order and a slow subscriber never stalls the others.
// A subscriber whose buffer is full is dropped: its channel is closed and it
// must resubscribe.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tbourn/scan-pipeline/internal/domain"
	"github.com/tbourn/scan-pipeline/internal/engine"
)

var (
	// ErrUpstreamExhausted is returned by Run when the reconnect budget is spent.
	ErrUpstreamExhausted = errors.New("upstream event stream: reconnect attempts exhausted")

	// ErrMalformedEvent is returned by ParseEvent for payloads that are not
	// a usable job status event.
	ErrMalformedEvent = errors.New("malformed event")

	errStreamEnded = errors.New("upstream event stream ended")
)

// Source opens the upstream event stream. *engine.Client satisfies it.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Options configures a Hub. Zero values fall back to sane defaults.
type Options struct {
	// Buffer is the per-subscriber channel capacity.
	Buffer int

	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
	// ReconnectRetries bounds consecutive failed connects. A connection that
	// closes before delivering a frame counts as failed; the count resets
	// once a connection delivers one.
	ReconnectRetries uint64

	Logger zerolog.Logger
	Now    func() time.Time
}

// Subscription is one registered event sink.
type Subscription struct {
	id  uint64
	ch  chan domain.NotificationEvent
	hub *Hub
}

// Events returns the receive side. It is closed when the subscription ends,
// either through Close or because the subscriber fell behind.
func (s *Subscription) Events() <-chan domain.NotificationEvent { return s.ch }

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() { s.hub.Unsubscribe(s) }

// Hub fans upstream events out to subscribers.
type Hub struct {
	src  Source
	opts Options
	log  zerolog.Logger

	mu     sync.Mutex
	subs   map[uint64]chan domain.NotificationEvent
	nextID uint64
	closed bool

	connected atomic.Bool
}

// NewHub builds a Hub reading from src.
func NewHub(src Source, opts Options) *Hub {
	if opts.Buffer <= 0 {
		opts.Buffer = 64
	}
	if opts.ReconnectInitial <= 0 {
		opts.ReconnectInitial = 500 * time.Millisecond
	}
	if opts.ReconnectMax < opts.ReconnectInitial {
		opts.ReconnectMax = opts.ReconnectInitial
	}
	if opts.ReconnectRetries == 0 {
		opts.ReconnectRetries = 10
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Hub{
		src:  src,
		opts: opts,
		log:  opts.Logger.With().Str("component", "broadcast").Logger(),
		subs: make(map[uint64]chan domain.NotificationEvent),
	}
}

// Subscribe registers a new sink. After Close the returned subscription is
// already closed.
func (h *Hub) Subscribe() *Subscription {
	ch := make(chan domain.NotificationEvent, h.opts.Buffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := &Subscription{id: h.nextID, ch: ch, hub: h}
	if h.closed {
		close(ch)
		return sub
	}
	h.subs[sub.id] = ch
	subscribersGauge.Inc()
	return sub
}

// Unsubscribe removes sub. Unknown or already removed subscriptions are a no-op.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub.id)
}

func (h *Hub) removeLocked(id uint64) bool {
	ch, ok := h.subs[id]
	if !ok {
		return false
	}
	delete(h.subs, id)
	close(ch)
	subscribersGauge.Dec()
	return true
}

// Len reports the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Connected reports whether the upstream stream is currently open.
func (h *Hub) Connected() bool { return h.connected.Load() }

// Publish delivers evt to every subscriber without blocking. Subscribers
// whose buffer is full are dropped.
func (h *Hub) Publish(evt domain.NotificationEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for id, ch := range h.subs {
		select {
		case ch <- evt:
		default:
			h.removeLocked(id)
			droppedTotal.Inc()
			h.log.Warn().Uint64("subscriber", id).Msg("subscriber too slow; dropped")
		}
	}
	eventsTotal.WithLabelValues(string(evt.Status)).Inc()
}

// Close ends every subscription and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range h.subs {
		h.removeLocked(id)
	}
	h.closed = true
}

// wireEvent is the engine's JSON event shape. Timestamp is kept raw so an
// unparseable value only loses the timestamp, not the event.
type wireEvent struct {
	ID        string          `json:"id"`
	JobID     string          `json:"jobId"`
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	Progress  float64         `json:"progress"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// ParseEvent decodes one upstream data payload. Missing id and timestamp are
// stamped here.
func ParseEvent(data []byte, now time.Time) (domain.NotificationEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return domain.NotificationEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if strings.TrimSpace(w.JobID) == "" {
		return domain.NotificationEvent{}, fmt.Errorf("%w: missing jobId", ErrMalformedEvent)
	}
	status, ok := domain.ParseJobStatus(w.Status)
	if !ok {
		return domain.NotificationEvent{}, fmt.Errorf("%w: unknown status %q", ErrMalformedEvent, w.Status)
	}

	evt := domain.NotificationEvent{
		ID:       w.ID,
		JobID:    w.JobID,
		Status:   status,
		Message:  w.Message,
		Progress: int(w.Progress),
	}
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	var ts time.Time
	if len(w.Timestamp) > 0 && json.Unmarshal(w.Timestamp, &ts) == nil && !ts.IsZero() {
		evt.Timestamp = ts.UTC()
	} else {
		evt.Timestamp = now.UTC()
	}
	return evt, nil
}

// HandleRaw parses one upstream payload and publishes it. Malformed payloads
// are logged and counted, never propagated.
func (h *Hub) HandleRaw(data []byte) {
	evt, err := ParseEvent(data, h.opts.Now())
	if err != nil {
		malformedTotal.Inc()
		h.log.Warn().Err(err).Int("bytes", len(data)).Msg("dropping malformed engine event")
		return
	}
	h.Publish(evt)
}

// Run reads the upstream stream until ctx is done, reconnecting with bounded
// exponential backoff. It returns nil on cancellation and
// ErrUpstreamExhausted once the retry budget is spent.
func (h *Hub) Run(ctx context.Context) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = h.opts.ReconnectInitial
	exp.MaxInterval = h.opts.ReconnectMax
	exp.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, h.opts.ReconnectRetries), ctx)

	op := func() error {
		rc, err := h.src.Open(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		h.connected.Store(true)
		h.log.Info().Msg("upstream event stream connected")

		// A stream that closes before its first frame counts as a failure,
		// so the budget and interval only reset once the engine delivers.
		err = h.pump(ctx, rc, policy.Reset)
		h.connected.Store(false)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if err == nil {
			err = errStreamEnded
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		reconnectsTotal.Inc()
		h.log.Warn().Err(err).
			Dur("retry_in", wait).
			Bool("unreachable", errors.Is(err, engine.ErrUnavailable)).
			Msg("upstream event stream lost; reconnecting")
	}

	err := backoff.RetryNotify(op, policy, notify)
	h.connected.Store(false)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return nil
	default:
		return fmt.Errorf("%w: %w", ErrUpstreamExhausted, err)
	}
}

// pump reads one connection to completion, calling healthy once before the
// first frame is handled. Closing rc on cancellation unblocks the reader for
// sources that ignore ctx.
func (h *Hub) pump(ctx context.Context, rc io.ReadCloser, healthy func()) error {
	stop := context.AfterFunc(ctx, func() { _ = rc.Close() })
	defer func() {
		stop()
		_ = rc.Close()
	}()
	seen := false
	return engine.ReadEvents(rc, func(data []byte) {
		if !seen {
			seen = true
			healthy()
		}
		h.HandleRaw(data)
	})
}

// Consume feeds every event to fn until ctx is done, resubscribing if the
// subscription is dropped for falling behind.
func (h *Hub) Consume(ctx context.Context, fn func(domain.NotificationEvent)) error {
	return h.ConsumeFrom(ctx, h.Subscribe(), fn)
}

// ConsumeFrom is Consume starting from an existing subscription, for callers
// that must be registered before they return.
func (h *Hub) ConsumeFrom(ctx context.Context, sub *Subscription, fn func(domain.NotificationEvent)) error {
	for {
		h.drain(ctx, sub, fn)
		if ctx.Err() != nil {
			return nil
		}
		h.mu.Lock()
		closed := h.closed
		h.mu.Unlock()
		if closed {
			return nil
		}
		h.log.Warn().Msg("consumer fell behind; resubscribing")
		sub = h.Subscribe()
	}
}

// drain returns when ctx ends or the subscription closes.
func (h *Hub) drain(ctx context.Context, sub *Subscription, fn func(domain.NotificationEvent)) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			fn(evt)
		}
	}
}
