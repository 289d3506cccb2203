package registry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/helpline/escalation-service/internal/bus"
)

func newTestRegistry(t *testing.T) (*Registry, *bus.MemoryBus) {
	t.Helper()
	b := bus.NewMemoryBus()
	r := New(b, "ticket_answers", zap.NewNop())
	t.Cleanup(func() {
		_ = r.Close()
		b.Close()
	})
	return r, b
}

// publishUntil republishes payload until the waiter resolves. Duplicate
// deliveries after resolution are dropped by the listener, so the retry
// loop is safe and removes any startup ordering race from the test.
func publishUntil(ctx context.Context, b *bus.MemoryBus, payload []byte, resolved <-chan struct{}) {
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	for {
		_ = b.Publish(ctx, "ticket_answers", payload)
		select {
		case <-resolved:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func TestWaitTimesOut(t *testing.T) {
	r, _ := newTestRegistry(t)

	start := time.Now()
	_, _, err := r.Wait(context.Background(), "ticket-1", 30*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Fatalf("wait returned after %v, before the timeout elapsed", elapsed)
	}
}

func TestWaitResolvedByMatchingEvent(t *testing.T) {
	r, b := newTestRegistry(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resolved := make(chan struct{})
	var answer string
	var payload map[string]any
	var waitErr error
	go func() {
		defer close(resolved)
		answer, payload, waitErr = r.Wait(ctx, "ticket-42", 0)
	}()

	// An event for a different ticket must not resolve the wait.
	other, _ := json.Marshal(map[string]any{"id": "ticket-7", "answer_text": "wrong"})
	_ = b.Publish(ctx, "ticket_answers", other)

	event, _ := json.Marshal(map[string]any{
		"id":           "ticket-42",
		"answer_text":  "Reset it from the settings page.",
		"responder_id": "hr-9",
	})
	publishUntil(ctx, b, event, resolved)

	<-resolved
	if waitErr != nil {
		t.Fatalf("wait failed: %v", waitErr)
	}
	if answer != "Reset it from the settings page." {
		t.Fatalf("unexpected answer %q", answer)
	}
	if payload["responder_id"] != "hr-9" {
		t.Fatalf("payload not passed through: %v", payload)
	}
}

func TestConcurrentWaitsShareOneAnswer(t *testing.T) {
	r, b := newTestRegistry(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	const callers = 3
	answers := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			answers[i], _, errs[i] = r.Wait(ctx, "ticket-shared", 0)
		}(i)
	}

	resolved := make(chan struct{})
	go func() {
		wg.Wait()
		close(resolved)
	}()

	event, _ := json.Marshal(map[string]any{"id": "ticket-shared", "answer_text": "yes"})
	publishUntil(ctx, b, event, resolved)
	<-resolved

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if answers[i] != "yes" {
			t.Fatalf("caller %d got %q", i, answers[i])
		}
	}
}

func TestMalformedEventsAreDropped(t *testing.T) {
	r, b := newTestRegistry(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resolved := make(chan struct{})
	var answer string
	var waitErr error
	go func() {
		defer close(resolved)
		answer, _, waitErr = r.Wait(ctx, "ticket-9", 0)
	}()

	// Garbage and id-less events must not kill the listener.
	_ = b.Publish(ctx, "ticket_answers", []byte("not json"))
	noID, _ := json.Marshal(map[string]any{"answer_text": "orphan"})
	_ = b.Publish(ctx, "ticket_answers", noID)

	event, _ := json.Marshal(map[string]any{"id": "ticket-9", "answer_text": "still alive"})
	publishUntil(ctx, b, event, resolved)
	<-resolved

	if waitErr != nil {
		t.Fatalf("wait failed: %v", waitErr)
	}
	if answer != "still alive" {
		t.Fatalf("unexpected answer %q", answer)
	}
}

func TestMissingAnswerTextFallsBack(t *testing.T) {
	r, b := newTestRegistry(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resolved := make(chan struct{})
	var answer string
	go func() {
		defer close(resolved)
		answer, _, _ = r.Wait(ctx, "ticket-empty", 0)
	}()

	event, _ := json.Marshal(map[string]any{"id": "ticket-empty"})
	publishUntil(ctx, b, event, resolved)
	<-resolved

	if answer != "(no answer_text)" {
		t.Fatalf("expected fallback answer, got %q", answer)
	}
}

func TestWaitAfterCloseFails(t *testing.T) {
	b := bus.NewMemoryBus()
	defer b.Close()
	r := New(b, "", zap.NewNop())

	if err := r.Close(); err != nil {
		t.Fatalf("close before start: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	_, _, err := r.Wait(context.Background(), "ticket-1", time.Millisecond)
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestWaitSurfacesSubscribeFailure(t *testing.T) {
	b := bus.NewMemoryBus()
	b.Close()
	r := New(b, "", zap.NewNop())

	_, _, err := r.Wait(context.Background(), "ticket-1", time.Millisecond)
	if err == nil {
		t.Fatal("expected subscribe error")
	}
}
