package queue

import "errors"

var (
	// ErrQueueClosed is returned when operating on a closed queue
	ErrQueueClosed = errors.New("queue is closed")

	// ErrItemNotFound is returned when a dead-letter item is not found
	ErrItemNotFound = errors.New("item not found")

	// ErrMaxRetriesExceeded marks a message that used up all of its
	// deliveries and was parked in the dead-letter queue
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)
