package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"model_gateway/internal/config"
)

// DB wraps the database connection shared by the gateway's repositories.
// It also owns the in-process caches for hot lookups (provider
// credentials on every routing decision, service tokens on every admin
// call).
type DB struct {
	conn *sqlx.DB

	credentialCache *LRUCache
	tokenCache      *LRUCache
}

// NewDB opens a pooled connection and sets up the lookup caches
func NewDB(cfg config.DatabaseConfig, cache config.CacheConfig) (*DB, error) {
	conn, err := sqlx.Connect("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	conn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return &DB{
		conn:            conn,
		credentialCache: NewLRUCache(cache.CredentialCacheSize, cache.CredentialCacheTTL),
		tokenCache:      NewLRUCache(cache.TokenCacheSize, cache.TokenCacheTTL),
	}, nil
}

// Close closes the database connection and clears caches
func (db *DB) Close() error {
	db.credentialCache.Clear()
	db.tokenCache.Clear()
	return db.conn.Close()
}

// Ping checks if the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Health verifies the connection can serve a query
func (db *DB) Health(ctx context.Context) error {
	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var result int
	if err := db.conn.GetContext(ctx, &result, "SELECT 1"); err != nil {
		return fmt.Errorf("health check query failed: %w", err)
	}

	return nil
}

// Stats reports pool utilization for the health endpoint
type DBStats struct {
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int
	WaitCount          int64
	WaitDuration       time.Duration
}

func (db *DB) Stats() DBStats {
	s := db.conn.Stats()
	return DBStats{
		MaxOpenConnections: s.MaxOpenConnections,
		OpenConnections:    s.OpenConnections,
		InUse:              s.InUse,
		Idle:               s.Idle,
		WaitCount:          s.WaitCount,
		WaitDuration:       s.WaitDuration,
	}
}
