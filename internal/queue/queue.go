// Package queue buffers usage records between the router and the
// database writer. Two backends:
//
//  1. Memory queue (channel-based): no persistence, no external deps,
//     the default for standalone deployments.
//  2. Redis queue (list-based): persistent across restarts, shared by
//     multiple gateway pods.
//
// The usage worker drains either backend in batches, retries failed
// batches with backoff, and parks records that keep failing in a
// dead-letter queue.
package queue

import (
	"context"
	"time"

	"model_gateway/internal/models"
)

// Queue is a FIFO buffer of usage records.
type Queue interface {
	// Enqueue adds a record to the queue
	Enqueue(ctx context.Context, rec *models.UsageRecord) error

	// Dequeue retrieves up to maxItems records, blocking until at least
	// one is available or the context is cancelled
	Dequeue(ctx context.Context, maxItems int) ([]*models.UsageRecord, error)

	// DequeueWithTimeout retrieves records if any arrive before the
	// timeout, an empty slice otherwise
	DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]*models.UsageRecord, error)

	// Length returns the current queue length
	Length(ctx context.Context) (int, error)

	// Close shuts down the queue gracefully
	Close() error
}

// DeadLetterQueue holds records the worker gave up on.
type DeadLetterQueue interface {
	// Add parks a failed record with its error
	Add(ctx context.Context, rec *models.UsageRecord, err error) error

	// List retrieves parked records
	List(ctx context.Context, maxItems int) ([]DeadLetterItem, error)

	// Remove deletes a parked record
	Remove(ctx context.Context, id string) error

	// Close shuts down the dead letter queue
	Close() error
}

// DeadLetterItem is one parked usage record plus failure context.
type DeadLetterItem struct {
	ID        string              `json:"id"`
	Record    *models.UsageRecord `json:"record"`
	Error     string              `json:"error"`
	Timestamp time.Time           `json:"timestamp"`
	Retries   int                 `json:"retries"`
}

// Config holds queue configuration
type Config struct {
	// QueueName namespaces the Redis keys
	QueueName string

	// BatchSize is the maximum number of records per worker batch
	BatchSize int

	// BatchTimeout is how long the worker waits before flushing a
	// partial batch
	BatchTimeout time.Duration

	// MaxRetries is the maximum number of batch retry attempts
	MaxRetries int

	// RetryBackoff is the initial backoff duration for retries
	RetryBackoff time.Duration

	// UseRedis selects the Redis backend over the in-memory one
	UseRedis bool

	// Redis connection settings (when UseRedis is true)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// DefaultConfig returns sensible defaults for a named queue
func DefaultConfig(name string) *Config {
	return &Config{
		QueueName:    name,
		BatchSize:    100,
		BatchTimeout: 5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 1 * time.Second,
	}
}
