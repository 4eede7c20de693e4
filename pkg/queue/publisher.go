package queue

import "context"

// Msg is one queue message. Key selects the partition where the backend supports it.
type Msg struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// QueuePublisher delivers messages to a queue.
type QueuePublisher interface {
	// Publish delivers one message. Implementations may block until the backend
	// acknowledges it.
	Publish(ctx context.Context, msg Msg) error

	// Close flushes in-flight messages and releases resources. Canceling ctx may drop
	// messages that have not been flushed yet.
	Close(ctx context.Context)
}
