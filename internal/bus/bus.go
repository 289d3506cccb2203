// Package bus abstracts the publish mechanism that carries ticket-answer
// events from the resolution pipeline to in-process listeners. One
// implementation rides Redis pub/sub; an in-memory one backs tests and
// single-process deployments.
package bus

import "context"

// Message is one event delivered on a channel.
type Message struct {
	Channel string
	Payload []byte
}

// Subscription is a standing listen on one channel. Messages is closed
// when the subscription is closed.
type Subscription interface {
	Messages() <-chan Message
	Close() error
}

// Bus publishes and subscribes to named channels.
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}
