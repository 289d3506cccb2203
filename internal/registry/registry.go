// Package registry turns ticket-answer events from the notification bus
// into awaitable completions for specific tickets. One long-lived
// listener per process multiplexes many logical waiters over a single
// bus subscription.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/helpline/escalation-service/internal/bus"
)

// ErrTimeout is returned when a timed Wait elapses before an answer.
var ErrTimeout = errors.New("registry: wait timed out")

// ErrClosed is returned for waits issued after Close.
var ErrClosed = errors.New("registry: closed")

// DefaultChannel is the bus channel carrying ticket-answer events.
const DefaultChannel = "ticket_answers"

// Registry owns the waiter map and the shared bus listener.
type Registry struct {
	bus     bus.Bus
	channel string
	logger  *zap.Logger

	// mu guards waiter registration and listener startup, not delivery.
	// Without it two callers could both decide "no waiter exists" and
	// create separate completions, orphaning one forever.
	mu      sync.Mutex
	waiters map[string]*waiter
	sub     bus.Subscription
	closed  bool
}

// waiter is the shared completion for all callers waiting on one ticket.
type waiter struct {
	done    chan struct{}
	answer  string
	payload map[string]any
}

// New creates a registry over the given bus. The listener starts lazily
// on the first Wait.
func New(b bus.Bus, channel string, logger *zap.Logger) *Registry {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Registry{
		bus:     b,
		channel: channel,
		logger:  logger,
		waiters: make(map[string]*waiter),
	}
}

// Wait suspends until the ticket receives an answer, the timeout
// elapses, or ctx is cancelled. A zero timeout waits indefinitely.
// Multiple concurrent waits for the same ticket share one registration
// and all receive the same answer. Only an event whose id exactly
// matches ticketID resolves the wait. If the bus listener cannot be
// started the error is returned immediately; callers are expected to
// fall back to polling the ticket store.
func (r *Registry) Wait(ctx context.Context, ticketID string, timeout time.Duration) (string, map[string]any, error) {
	w, err := r.register(ctx, ticketID)
	if err != nil {
		return "", nil, err
	}

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case <-w.done:
		return w.answer, w.payload, nil
	case <-timer:
		return "", nil, ErrTimeout
	case <-ctx.Done():
		return "", nil, ctx.Err()
	}
}

func (r *Registry) register(ctx context.Context, ticketID string) (*waiter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if r.sub == nil {
		sub, err := r.bus.Subscribe(ctx, r.channel)
		if err != nil {
			return nil, err
		}
		r.sub = sub
		go r.listen(sub)
		r.logger.Info("answer listener started", zap.String("channel", r.channel))
	}
	w, ok := r.waiters[ticketID]
	if !ok {
		w = &waiter{done: make(chan struct{})}
		r.waiters[ticketID] = w
	}
	return w, nil
}

// listen dispatches inbound events to registered waiters. Malformed
// payloads are logged and dropped; events with no waiter are dropped
// silently since the resolution was observed through another path.
func (r *Registry) listen(sub bus.Subscription) {
	for msg := range sub.Messages() {
		var payload map[string]any
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			r.logger.Warn("dropping malformed answer event",
				zap.ByteString("payload", msg.Payload), zap.Error(err))
			continue
		}
		id, _ := payload["id"].(string)
		if id == "" {
			r.logger.Warn("dropping answer event without ticket id",
				zap.ByteString("payload", msg.Payload))
			continue
		}

		r.mu.Lock()
		w := r.waiters[id]
		delete(r.waiters, id)
		r.mu.Unlock()
		if w == nil {
			continue
		}

		answer, _ := payload["answer_text"].(string)
		if answer == "" {
			answer = "(no answer_text)"
		}
		w.answer = answer
		w.payload = payload
		close(w.done)
	}
}

// Close stops the listener and releases the subscription. Safe to call
// when the listener never started, and safe to call twice.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.sub == nil {
		return nil
	}
	err := r.sub.Close()
	r.sub = nil
	return err
}
