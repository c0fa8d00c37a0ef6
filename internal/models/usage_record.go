package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageRecord is a single routed-request audit row, written asynchronously
// through the usage queue. IdentifierUsed is the identifier that actually
// served the request, which may differ from what the caller asked for.
type UsageRecord struct {
	ID             uuid.UUID `db:"id"`
	RequestID      uuid.UUID `db:"request_id"`
	CallerID       uuid.UUID `db:"caller_id"`
	IdentifierUsed string    `db:"identifier_used"`
	UsedFallback   bool      `db:"used_fallback"`
	PromptLength   int       `db:"prompt_length"`
	ResponseLength int       `db:"response_length"`
	LatencyMs      int64     `db:"latency_ms"`
	CreatedAt      time.Time `db:"created_at"`
}
