package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"model_gateway/internal/models"
)

// UsageRepository persists usage records. Writes arrive in batches from
// the usage queue worker, never from the request path directly.
type UsageRepository struct {
	db *DB
}

// NewUsageRepository creates a new usage repository
func NewUsageRepository(db *DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// InsertBatch writes a batch of usage records in one transaction
func (r *UsageRepository) InsertBatch(ctx context.Context, recs []*models.UsageRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := r.db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO usage_records (id, request_id, caller_id, identifier_used, used_fallback,
		                           prompt_length, response_length, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	for _, rec := range recs {
		if rec.ID == uuid.Nil {
			rec.ID = uuid.New()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now()
		}
		if _, err := tx.ExecContext(ctx, query,
			rec.ID, rec.RequestID, rec.CallerID, rec.IdentifierUsed, rec.UsedFallback,
			rec.PromptLength, rec.ResponseLength, rec.LatencyMs, rec.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert usage record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit usage batch: %w", err)
	}

	return nil
}

// ListByCaller returns recent usage for a caller, newest first
func (r *UsageRepository) ListByCaller(ctx context.Context, callerID uuid.UUID, limit int) ([]*models.UsageRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, request_id, caller_id, identifier_used, used_fallback,
		       prompt_length, response_length, latency_ms, created_at
		FROM usage_records
		WHERE caller_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	var recs []*models.UsageRecord
	if err := r.db.conn.SelectContext(ctx, &recs, query, callerID, limit); err != nil {
		return nil, fmt.Errorf("failed to list usage records: %w", err)
	}

	return recs, nil
}
