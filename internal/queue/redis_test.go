package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestRedisQueue(t *testing.T) (*RedisQueue, *RedisDeadLetterQueue) {
	t.Helper()

	mr := miniredis.RunT(t)

	config := DefaultConfig("usage-test")
	config.UseRedis = true
	config.RedisAddr = mr.Addr()

	q, err := NewRedisQueue(config)
	if err != nil {
		t.Fatalf("NewRedisQueue failed: %v", err)
	}
	t.Cleanup(func() { q.Close() })

	dlq, err := NewRedisDeadLetterQueue(config)
	if err != nil {
		t.Fatalf("NewRedisDeadLetterQueue failed: %v", err)
	}
	t.Cleanup(func() { dlq.Close() })

	return q, dlq
}

func TestRedisQueue_EnqueueDequeue(t *testing.T) {
	q, _ := newTestRedisQueue(t)
	ctx := context.Background()

	rec := testRecord("client:9:llama3.1")
	if err := q.Enqueue(ctx, rec); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	length, err := q.Length(ctx)
	if err != nil {
		t.Fatalf("Length failed: %v", err)
	}
	if length != 1 {
		t.Fatalf("Expected length 1, got %d", length)
	}

	recs, err := q.DequeueWithTimeout(ctx, 10, time.Second)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(recs))
	}
	if recs[0].IdentifierUsed != rec.IdentifierUsed {
		t.Errorf("Expected %s, got %s", rec.IdentifierUsed, recs[0].IdentifierUsed)
	}
	if recs[0].RequestID != rec.RequestID {
		t.Errorf("RequestID not preserved across the wire")
	}
}

func TestRedisQueue_BatchDrain(t *testing.T) {
	q, _ := newTestRedisQueue(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		if err := q.Enqueue(ctx, testRecord("mock:echo")); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	recs, err := q.DequeueWithTimeout(ctx, 5, time.Second)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if len(recs) != 5 {
		t.Fatalf("Expected 5 records, got %d", len(recs))
	}

	length, _ := q.Length(ctx)
	if length != 2 {
		t.Errorf("Expected 2 remaining, got %d", length)
	}
}

func TestRedisDeadLetterQueue(t *testing.T) {
	_, dlq := newTestRedisQueue(t)
	ctx := context.Background()

	rec := testRecord("local:phi3")
	if err := dlq.Add(ctx, rec, errors.New("db unavailable")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	items, err := dlq.List(ctx, 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}
	if items[0].Record.IdentifierUsed != "local:phi3" {
		t.Errorf("Record not preserved: %+v", items[0].Record)
	}

	if err := dlq.Remove(ctx, items[0].ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := dlq.Remove(ctx, items[0].ID); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("Expected ErrItemNotFound, got %v", err)
	}
}
