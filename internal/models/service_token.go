package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ServiceToken is a machine account for management API access (CI jobs,
// node provisioning scripts). Authentication is token-based with Argon2id
// token hashing.
type ServiceToken struct {
	ID          uuid.UUID      `db:"id"`
	ServiceName string         `db:"service_name"`
	TokenHash   string         `db:"token_hash"` // Argon2id hash
	Roles       pq.StringArray `db:"roles"`      // e.g., ["admin", "viewer"]
	Enabled     bool           `db:"enabled"`
	ExpiresAt   *time.Time     `db:"expires_at"`
	LastUsedAt  *time.Time     `db:"last_used_at"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

// HasRole checks if the token carries a specific role
func (t *ServiceToken) HasRole(role string) bool {
	for _, r := range t.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsExpired checks if the token has expired
func (t *ServiceToken) IsExpired() bool {
	if t.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*t.ExpiresAt)
}

// IsValid checks if the token is enabled and not expired
func (t *ServiceToken) IsValid() bool {
	return t.Enabled && !t.IsExpired()
}
