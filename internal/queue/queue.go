package queue

import "context"

const (
	// EventQueueName is the work queue for tenant notification events.
	EventQueueName = "notify.events"
	// EventDLQName receives events rejected as unprocessable.
	EventDLQName = "dlq.notify.events"
)

// Publisher publishes notification event messages to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg EventMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message.
type MessageHandler func(ctx context.Context, msg EventMessage) error

// Consumer consumes notification event messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}
