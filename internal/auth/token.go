package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for service token hashing. The salt is derived
// from the token itself so the stored hash stays a stable lookup key.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

// GenerateToken produces a new service token in the form the
// management API hands out once at creation time.
func GenerateToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return "mgt_" + hex.EncodeToString(raw), nil
}

// HashToken derives the stored Argon2id hash for a service token.
// Deterministic: the same token always yields the same hash.
func HashToken(token string) string {
	salt := sha256.Sum256([]byte(token))
	key := argon2.IDKey([]byte(token), salt[:16], argonTime, argonMemory, argonThreads, argonKeyLen)
	return hex.EncodeToString(key)
}
