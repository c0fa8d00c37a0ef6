package storage

import (
	"context"
	"fmt"
	"time"

	"model_gateway/internal/logging"
	"model_gateway/internal/models"
	"model_gateway/internal/queue"
)

// UsageInserter is the sink the worker writes batches to, normally the
// UsageRepository.
type UsageInserter interface {
	InsertBatch(ctx context.Context, recs []*models.UsageRecord) error
}

// UsageQueueWorker drains the usage queue into Postgres in batches. The
// router enqueues fire-and-forget; this worker is the only writer of
// usage rows.
type UsageQueueWorker struct {
	queue       queue.Queue
	dlq         queue.DeadLetterQueue
	repo        UsageInserter
	config      *queue.Config
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewUsageQueueWorker creates a new usage queue worker
func NewUsageQueueWorker(q queue.Queue, dlq queue.DeadLetterQueue, repo UsageInserter, config *queue.Config) *UsageQueueWorker {
	if config == nil {
		config = queue.DefaultConfig("usage")
	}

	return &UsageQueueWorker{
		queue:       q,
		dlq:         dlq,
		repo:        repo,
		config:      config,
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start starts the worker goroutine
func (w *UsageQueueWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop gracefully stops the worker and waits for the current batch
func (w *UsageQueueWorker) Stop() error {
	close(w.stopChan)
	<-w.stoppedChan
	return nil
}

// Enqueue adds a usage record to the queue
func (w *UsageQueueWorker) Enqueue(ctx context.Context, rec *models.UsageRecord) error {
	return w.queue.Enqueue(ctx, rec)
}

func (w *UsageQueueWorker) run(ctx context.Context) {
	defer close(w.stoppedChan)

	for {
		select {
		case <-w.stopChan:
			logging.Infof("usage worker stopping")
			return
		case <-ctx.Done():
			logging.Infof("usage worker context cancelled")
			return
		default:
			w.processBatch(ctx)
		}
	}
}

func (w *UsageQueueWorker) processBatch(ctx context.Context) {
	recs, err := w.queue.DequeueWithTimeout(ctx, w.config.BatchSize, w.config.BatchTimeout)
	if err != nil {
		logging.Errorf("failed to dequeue usage records: %v", err)
		time.Sleep(1 * time.Second) // back off on error
		return
	}

	if len(recs) == 0 {
		return
	}

	logging.Debugf("processing usage batch of %d", len(recs))

	if err := w.repo.InsertBatch(ctx, recs); err == nil {
		return
	} else {
		logging.Errorf("batch insert failed, retrying records individually: %v", err)
	}

	for _, rec := range recs {
		if err := w.insertWithRetry(ctx, rec); err != nil {
			logging.Errorf("failed to persist usage record %s: %v", rec.RequestID, err)
		}
	}
}

// insertWithRetry retries a single record with exponential backoff, then
// parks it in the DLQ.
func (w *UsageQueueWorker) insertWithRetry(ctx context.Context, rec *models.UsageRecord) error {
	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := w.config.RetryBackoff * time.Duration(1<<uint(attempt-1))
			time.Sleep(backoff)
		}

		if err := w.repo.InsertBatch(ctx, []*models.UsageRecord{rec}); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	if w.dlq != nil {
		if err := w.dlq.Add(ctx, rec, lastErr); err != nil {
			logging.Errorf("failed to add usage record to DLQ: %v", err)
		} else {
			logging.Warningf("usage record %s moved to DLQ: %v", rec.RequestID, lastErr)
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// QueueLength returns the current queue depth
func (w *UsageQueueWorker) QueueLength(ctx context.Context) (int, error) {
	return w.queue.Length(ctx)
}

// DeadLetterItems lists parked records
func (w *UsageQueueWorker) DeadLetterItems(ctx context.Context, maxItems int) ([]queue.DeadLetterItem, error) {
	if w.dlq == nil {
		return nil, fmt.Errorf("dead letter queue not configured")
	}
	return w.dlq.List(ctx, maxItems)
}

// RetryDeadLetterItem re-enqueues a parked record
func (w *UsageQueueWorker) RetryDeadLetterItem(ctx context.Context, id string) error {
	if w.dlq == nil {
		return fmt.Errorf("dead letter queue not configured")
	}

	items, err := w.dlq.List(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to list dead letter items: %w", err)
	}

	for _, dlItem := range items {
		if dlItem.ID != id {
			continue
		}
		if err := w.queue.Enqueue(ctx, dlItem.Record); err != nil {
			return fmt.Errorf("failed to re-enqueue record: %w", err)
		}
		if err := w.dlq.Remove(ctx, id); err != nil {
			return fmt.Errorf("failed to remove from DLQ: %w", err)
		}
		return nil
	}

	return queue.ErrItemNotFound
}
