package kafka

import (
	"errors"
	"fmt"
)

var (
	// ErrProducerClosed indicates the producer has been closed
	ErrProducerClosed = errors.New("kafka producer is closed")

	// ErrInvalidMessage indicates the message is invalid
	ErrInvalidMessage = errors.New("invalid message")

	// ErrEmptyKey indicates the message key is empty
	ErrEmptyKey = errors.New("message key cannot be empty")

	// ErrEmptyValue indicates the message value is empty
	ErrEmptyValue = errors.New("message value cannot be empty")
)

// PublishError records a failed publish together with the outcome of the
// dead letter fallback.
type PublishError struct {
	Topic        string
	Key          string
	Err          error
	DLQErr       error
	DeadLettered bool
}

func (e *PublishError) Error() string {
	if e.DLQErr != nil {
		return fmt.Sprintf("publish to %s failed: %v (dead letter also failed: %v)", e.Topic, e.Err, e.DLQErr)
	}
	if e.DeadLettered {
		return fmt.Sprintf("publish to %s failed, sent to dead letter queue: %v", e.Topic, e.Err)
	}
	return fmt.Sprintf("publish to %s failed: %v", e.Topic, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}
