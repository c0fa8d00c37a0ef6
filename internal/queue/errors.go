package queue

import "errors"

var (
	// ErrQueueClosed is returned when a record is pushed to or pulled
	// from a queue that has been shut down.
	ErrQueueClosed = errors.New("usage queue is closed")

	// ErrItemNotFound is returned by dead-letter operations that name
	// an item no longer parked there.
	ErrItemNotFound = errors.New("dead letter item not found")
)
