package messaging

import (
	"context"
)

// Queue represents an abstract message queue for any payload type. The
// approval service publishes request/decision events on one so that outer
// surfaces (dashboards, notifiers) can observe the run without being wired
// into the pipelines.
type Queue[T any] interface {
	// Publish adds a new message with payload to the queue.
	Publish(ctx context.Context, t *T) error

	// Consume retrieves a single message from the queue.
	Consume(ctx context.Context) (Message[T], error)
}

// Message represents a message retrieved from a queue.
type Message[T any] interface {
	// T returns the payload of this message.
	T() *T

	// Ack acknowledges successful processing of this message.
	Ack() error

	// Nack indicates failure in processing this message.
	Nack(err error) error
}
