package storage

import (
	"context"
	"database/sql"
	"fmt"

	"model_gateway/internal/models"
)

// DecryptedCredential is what the routing layer sees: a usable key plus
// the provider's preferred default model. The encrypted form never
// leaves this package.
type DecryptedCredential struct {
	Provider     string
	APIKey       string
	DefaultModel string
}

// CredentialRepository handles provider credential persistence with
// transparent encryption and a TTL cache in front of Postgres.
type CredentialRepository struct {
	db         *DB
	encryption *Encryption
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(db *DB, encryption *Encryption) *CredentialRepository {
	return &CredentialRepository{db: db, encryption: encryption}
}

// GetByProvider returns the decrypted credential for a provider, or
// ErrCredentialNotFound when none is configured.
func (r *CredentialRepository) GetByProvider(ctx context.Context, provider string) (*DecryptedCredential, error) {
	if cached, ok := r.db.credentialCache.Get(provider); ok {
		return cached.(*DecryptedCredential), nil
	}

	var cred models.ProviderCredential
	query := `
		SELECT id, provider, encrypted_key, default_model, owner_id, created_at, updated_at
		FROM provider_credentials
		WHERE provider = $1
	`

	err := r.db.conn.GetContext(ctx, &cred, query, provider)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	apiKey, err := r.encryption.DecryptString(cred.EncryptedKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credential for %s: %w", provider, err)
	}

	decrypted := &DecryptedCredential{
		Provider:     cred.Provider,
		APIKey:       apiKey,
		DefaultModel: cred.DefaultModel,
	}
	r.db.credentialCache.Set(provider, decrypted)

	return decrypted, nil
}

// List returns all stored credentials in their encrypted form, for the
// admin surface (keys are masked by the handler, never decrypted for
// display).
func (r *CredentialRepository) List(ctx context.Context) ([]*models.ProviderCredential, error) {
	query := `
		SELECT id, provider, encrypted_key, default_model, owner_id, created_at, updated_at
		FROM provider_credentials
		ORDER BY provider
	`

	var creds []*models.ProviderCredential
	if err := r.db.conn.SelectContext(ctx, &creds, query); err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	return creds, nil
}

// Upsert stores a credential, encrypting the key, and invalidates the
// cache entry so the next routing decision sees the new key.
func (r *CredentialRepository) Upsert(ctx context.Context, cred *models.ProviderCredential, plaintextKey string) error {
	encryptedKey, err := r.encryption.EncryptString(plaintextKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt credential: %w", err)
	}
	cred.EncryptedKey = encryptedKey

	query := `
		INSERT INTO provider_credentials (id, provider, encrypted_key, default_model, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		ON CONFLICT (provider) DO UPDATE
		SET encrypted_key = EXCLUDED.encrypted_key,
		    default_model = EXCLUDED.default_model,
		    updated_at = now()
	`

	if _, err := r.db.conn.ExecContext(ctx, query,
		cred.ID, cred.Provider, cred.EncryptedKey, cred.DefaultModel, cred.OwnerID,
	); err != nil {
		return fmt.Errorf("failed to upsert credential: %w", err)
	}

	r.db.credentialCache.Delete(cred.Provider)
	return nil
}

// Delete removes a provider's credential
func (r *CredentialRepository) Delete(ctx context.Context, provider string) error {
	result, err := r.db.conn.ExecContext(ctx,
		`DELETE FROM provider_credentials WHERE provider = $1`, provider)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return ErrCredentialNotFound
	}

	r.db.credentialCache.Delete(provider)
	return nil
}
