package bus

import (
	"context"
	"errors"
	"sync"
)

// MemoryBus is an in-process Bus for tests and single-node deployments
// without Redis. Publish fans out to every live subscription of the
// channel; a subscriber whose buffer is full misses the message rather
// than blocking the publisher.
type MemoryBus struct {
	mu     sync.Mutex
	subs   map[string][]*memorySubscription
	closed bool
}

// NewMemoryBus creates an empty bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string][]*memorySubscription)}
}

// Publish delivers payload to current subscribers of channel. Sends
// happen under the bus lock so a concurrent Close cannot race the
// delivery.
func (b *MemoryBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.New("bus closed")
	}
	msg := Message{Channel: channel, Payload: payload}
	for _, sub := range b.subs[channel] {
		select {
		case sub.out <- msg:
		default:
		}
	}
	return nil
}

// Subscribe registers a new subscription on channel.
func (b *MemoryBus) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.New("bus closed")
	}
	sub := &memorySubscription{
		bus:     b,
		channel: channel,
		out:     make(chan Message, 16),
		done:    make(chan struct{}),
	}
	b.subs[channel] = append(b.subs[channel], sub)
	return sub, nil
}

// Close shuts the bus; further Publish and Subscribe calls fail.
func (b *MemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, subs := range b.subs {
		for _, sub := range subs {
			sub.closeLocked()
		}
	}
	b.subs = make(map[string][]*memorySubscription)
}

type memorySubscription struct {
	bus     *MemoryBus
	channel string
	out     chan Message
	done    chan struct{}
	once    sync.Once
}

func (s *memorySubscription) Messages() <-chan Message {
	return s.out
}

func (s *memorySubscription) Close() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	subs := s.bus.subs[s.channel]
	for i, candidate := range subs {
		if candidate == s {
			s.bus.subs[s.channel] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	s.closeLocked()
	return nil
}

func (s *memorySubscription) closeLocked() {
	s.once.Do(func() {
		close(s.done)
		close(s.out)
	})
}
