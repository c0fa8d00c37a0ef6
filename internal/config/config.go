package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the model gateway.
type Config struct {
	HTTPPort      string
	JWTSecret     []byte
	JWTLifetime   time.Duration
	EncryptionKey string // base64, decoded by storage.NewEncryptionFromBase64
	Database      DatabaseConfig
	Cache         CacheConfig
	Redis         RedisConfig
	Probe         ProbeConfig
	Adapter       AdapterConfig
	Gateway       GatewayConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// CacheConfig holds in-process cache settings
type CacheConfig struct {
	CredentialCacheSize int
	CredentialCacheTTL  time.Duration
	TokenCacheSize      int
	TokenCacheTTL       time.Duration
}

// RedisConfig holds Redis connection settings. Redis backs the usage
// queue and the rate limiter; when Address is empty both fall back to
// in-memory implementations.
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ProbeConfig bounds health probes. These are deliberately configuration,
// not constants: deployments with slow links raise the timeout rather
// than patching code.
type ProbeConfig struct {
	Timeout     time.Duration // per-probe budget, connect included
	Concurrency int           // cap on simultaneous probes in ProbeAll
	Interval    time.Duration // background sweep period
}

// AdapterConfig bounds outbound generation calls.
type AdapterConfig struct {
	RequestTimeout time.Duration // non-streaming generate budget
	RetryPerHop    int           // extra attempts per fallback-chain hop
	RetryBackoff   time.Duration
}

// GatewayConfig holds routing defaults.
type GatewayConfig struct {
	// LocalEngineAddr is the loopback inference engine ("host:port").
	// Empty disables the local route entirely.
	LocalEngineAddr string
	// RateLimitPerMinute is the per-caller chat request cap; 0 disables.
	RateLimitPerMinute int
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	port := getEnvString("HTTP_PORT", "8080")
	jwtSecret := []byte(getEnvString("JWT_SECRET", ""))
	if len(jwtSecret) == 0 {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	encryptionKey := os.Getenv("ENCRYPTION_KEY")
	if encryptionKey == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required")
	}

	cfg := &Config{
		HTTPPort:      port,
		JWTSecret:     jwtSecret,
		JWTLifetime:   getEnvDuration("JWT_LIFETIME", 24*time.Hour),
		EncryptionKey: encryptionKey,
		Database: DatabaseConfig{
			URL:             dbURL,
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
		},
		Cache: CacheConfig{
			CredentialCacheSize: getEnvInt("CACHE_CREDENTIAL_SIZE", 100),
			CredentialCacheTTL:  getEnvDuration("CACHE_CREDENTIAL_TTL", 5*time.Minute),
			TokenCacheSize:      getEnvInt("CACHE_TOKEN_SIZE", 500),
			TokenCacheTTL:       getEnvDuration("CACHE_TOKEN_TTL", 5*time.Minute),
		},
		Redis: RedisConfig{
			Address:      getEnvString("REDIS_ADDRESS", ""),
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Probe: ProbeConfig{
			Timeout:     getEnvDuration("PROBE_TIMEOUT", 5*time.Second),
			Concurrency: getEnvInt("PROBE_CONCURRENCY", 8),
			Interval:    getEnvDuration("PROBE_INTERVAL", 30*time.Second),
		},
		Adapter: AdapterConfig{
			RequestTimeout: getEnvDuration("ADAPTER_REQUEST_TIMEOUT", 60*time.Second),
			RetryPerHop:    getEnvInt("ADAPTER_RETRY_PER_HOP", 1),
			RetryBackoff:   getEnvDuration("ADAPTER_RETRY_BACKOFF", 250*time.Millisecond),
		},
		Gateway: GatewayConfig{
			LocalEngineAddr:    getEnvString("LOCAL_ENGINE_ADDR", ""),
			RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 0),
		},
	}

	return cfg, nil
}
