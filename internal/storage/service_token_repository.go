package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"model_gateway/internal/models"
)

// ServiceTokenRepository handles service token persistence for machine
// callers of the management API.
type ServiceTokenRepository struct {
	db *DB
}

// NewServiceTokenRepository creates a new service token repository
func NewServiceTokenRepository(db *DB) *ServiceTokenRepository {
	return &ServiceTokenRepository{db: db}
}

// GetByHash retrieves a token row by its Argon2id hash. Lookups are
// cached briefly since a provisioning script may call the API in bursts.
func (r *ServiceTokenRepository) GetByHash(ctx context.Context, tokenHash string) (*models.ServiceToken, error) {
	if cached, ok := r.db.tokenCache.Get(tokenHash); ok {
		return cached.(*models.ServiceToken), nil
	}

	var token models.ServiceToken
	query := `
		SELECT id, service_name, token_hash, roles, enabled, expires_at, last_used_at, created_at, updated_at
		FROM service_tokens
		WHERE token_hash = $1
	`

	err := r.db.conn.GetContext(ctx, &token, query, tokenHash)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrServiceTokenNotFound
		}
		return nil, fmt.Errorf("failed to get service token: %w", err)
	}

	r.db.tokenCache.Set(tokenHash, &token)
	return &token, nil
}

// TouchLastUsed records token activity, best-effort
func (r *ServiceTokenRepository) TouchLastUsed(ctx context.Context, tokenHash string) {
	now := time.Now()
	_, _ = r.db.conn.ExecContext(ctx,
		`UPDATE service_tokens SET last_used_at = $2 WHERE token_hash = $1`, tokenHash, now)
}

// Create inserts a new service token
func (r *ServiceTokenRepository) Create(ctx context.Context, token *models.ServiceToken) error {
	query := `
		INSERT INTO service_tokens (id, service_name, token_hash, roles, enabled, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING created_at, updated_at
	`

	row := r.db.conn.QueryRowxContext(ctx, query,
		token.ID, token.ServiceName, token.TokenHash, token.Roles, token.Enabled, token.ExpiresAt)
	if err := row.Scan(&token.CreatedAt, &token.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create service token: %w", err)
	}

	return nil
}

// Disable revokes a token and drops it from the cache
func (r *ServiceTokenRepository) Disable(ctx context.Context, tokenHash string) error {
	result, err := r.db.conn.ExecContext(ctx,
		`UPDATE service_tokens SET enabled = false, updated_at = now() WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return fmt.Errorf("failed to disable service token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check disable result: %w", err)
	}
	if rows == 0 {
		return ErrServiceTokenNotFound
	}

	r.db.tokenCache.Delete(tokenHash)
	return nil
}
