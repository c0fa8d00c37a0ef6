package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProviderCredential holds an encrypted API key for a cloud provider.
// The key is AES-GCM encrypted at rest; the gateway only ever exposes a
// masked form outside the adapter boundary. A usable credential makes its
// provider eligible as a preferred default ahead of local and mock routes.
type ProviderCredential struct {
	ID           uuid.UUID `db:"id"`
	Provider     string    `db:"provider"`
	EncryptedKey string    `db:"encrypted_key"`
	DefaultModel string    `db:"default_model"`
	OwnerID      uuid.UUID `db:"owner_id"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// MaskKey renders a decrypted key safe for display ("sk-a…wxyz" style).
func MaskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
