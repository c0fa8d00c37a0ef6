// Package httpapi exposes the gateway over HTTP: the chat and model
// surfaces for users, and the management API for admins and service
// tokens.
package httpapi

import (
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"

	"model_gateway/internal/auth"
	"model_gateway/internal/config"
	"model_gateway/internal/logging"
	"model_gateway/internal/middleware"
	"model_gateway/internal/probe"
	"model_gateway/internal/providers"
	"model_gateway/internal/queue"
	"model_gateway/internal/ratelimit"
	"model_gateway/internal/registry"
	"model_gateway/internal/router"
	"model_gateway/internal/storage"
	"model_gateway/internal/utils"
)

// Dependencies aggregates everything the HTTP layer needs.
type Dependencies struct {
	Config      *config.Config
	DB          *storage.DB
	Redis       *redis.Client
	JWT         *auth.JWTManager
	Nodes       *storage.NodeRepository
	Credentials *storage.CredentialRepository
	Tokens      *storage.ServiceTokenRepository
	Registry    *registry.Registry
	Factory     *providers.Factory
	Catalog     *registry.Catalog
	Prober      *probe.Prober
	Router      *router.Router
	RateLimit   ratelimit.Limiter
	UsageWorker *storage.UsageQueueWorker
	UsageRepo   *storage.UsageRepository
}

// NewRouter wires the full dependency graph and returns the ready mux.
// An empty Redis address is a supported deployment shape: the usage
// queue runs in memory and rate limiting is disabled.
func NewRouter(cfg *config.Config) (*http.ServeMux, *Dependencies, error) {
	db, err := storage.NewDB(cfg.Database, cfg.Cache)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	encryption, err := storage.NewEncryptionFromBase64(cfg.EncryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize encryption: %w", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		redisClient, err = storage.NewRedisClient(cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
	}

	nodeRepo := storage.NewNodeRepository(db)
	credentialRepo := storage.NewCredentialRepository(db, encryption)
	tokenRepo := storage.NewServiceTokenRepository(db)
	usageRepo := storage.NewUsageRepository(db)

	reg := registry.New(nodeRepo)
	factory := providers.NewFactory(credentialRepo, cfg.Gateway.LocalEngineAddr, cfg.Adapter.RequestTimeout)
	prober := probe.NewProber(reg, factory, nodeRepo, cfg.Probe.Timeout, cfg.Probe.Concurrency)

	queueCfg := queue.DefaultConfig("usage")
	var usageQueue queue.Queue
	var usageDLQ queue.DeadLetterQueue
	if redisClient != nil {
		queueCfg.UseRedis = true
		queueCfg.RedisAddr = cfg.Redis.Address
		queueCfg.RedisPassword = cfg.Redis.Password
		queueCfg.RedisDB = cfg.Redis.DB
		usageQueue, err = queue.NewRedisQueue(queueCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize usage queue: %w", err)
		}
		usageDLQ, err = queue.NewRedisDeadLetterQueue(queueCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize usage dead letter queue: %w", err)
		}
	} else {
		usageQueue = queue.NewMemoryQueue(queueCfg)
		usageDLQ = queue.NewMemoryDeadLetterQueue()
	}
	usageWorker := storage.NewUsageQueueWorker(usageQueue, usageDLQ, usageRepo, queueCfg)

	routerSvc := router.New(reg, factory, usageWorker, cfg.Adapter.RetryPerHop, cfg.Adapter.RetryBackoff)
	catalog := registry.NewCatalog(reg, credentialRepo, routerSvc.SystemDefault)

	var limiter ratelimit.Limiter = ratelimit.NewNoopLimiter()
	if redisClient != nil && cfg.Gateway.RateLimitPerMinute > 0 {
		limiter = ratelimit.NewRedisLimiter(redisClient, cfg.Gateway.RateLimitPerMinute)
	}

	deps := &Dependencies{
		Config:      cfg,
		DB:          db,
		Redis:       redisClient,
		JWT:         auth.NewJWTManager(string(cfg.JWTSecret), cfg.JWTLifetime),
		Nodes:       nodeRepo,
		Credentials: credentialRepo,
		Tokens:      tokenRepo,
		Registry:    reg,
		Factory:     factory,
		Catalog:     catalog,
		Prober:      prober,
		Router:      routerSvc,
		RateLimit:   limiter,
		UsageWorker: usageWorker,
		UsageRepo:   usageRepo,
	}

	mux := http.NewServeMux()
	deps.registerRoutes(mux)
	return mux, deps, nil
}

func (d *Dependencies) registerRoutes(mux *http.ServeMux) {
	userAuth := middleware.UserAuth(d.JWT)
	rateLimited := func(h http.Handler) http.Handler {
		return userAuth(middleware.RateLimit(d.RateLimit)(h))
	}
	adminOnly := middleware.ManagementAuth(d.JWT, d.Tokens, auth.RoleAdmin)
	proberAllowed := middleware.ManagementAuth(d.JWT, d.Tokens, auth.RoleProber)
	viewerAllowed := middleware.ManagementAuth(d.JWT, d.Tokens, auth.RoleViewer)

	// User surface
	mux.Handle("POST /v1/chat", rateLimited(http.HandlerFunc(d.handleChat)))
	mux.Handle("POST /v1/embeddings", rateLimited(http.HandlerFunc(d.handleEmbeddings)))
	mux.Handle("GET /v1/models", userAuth(http.HandlerFunc(d.handleListModels)))
	mux.Handle("GET /v1/nodes", userAuth(http.HandlerFunc(d.handleListVisibleNodes)))
	mux.Handle("GET /v1/usage", userAuth(http.HandlerFunc(d.handleListUsage)))

	// Management surface
	mux.Handle("GET /admin/nodes", viewerAllowed(http.HandlerFunc(d.handleAdminListNodes)))
	mux.Handle("POST /admin/nodes", adminOnly(http.HandlerFunc(d.handleAdminCreateNode)))
	mux.Handle("GET /admin/nodes/{id}", viewerAllowed(http.HandlerFunc(d.handleAdminGetNode)))
	mux.Handle("PUT /admin/nodes/{id}", adminOnly(http.HandlerFunc(d.handleAdminUpdateNode)))
	mux.Handle("DELETE /admin/nodes/{id}", adminOnly(http.HandlerFunc(d.handleAdminDeactivateNode)))
	mux.Handle("POST /admin/nodes/{id}/probe", proberAllowed(http.HandlerFunc(d.handleAdminProbeNode)))
	mux.Handle("POST /admin/probe", proberAllowed(http.HandlerFunc(d.handleAdminProbeAll)))

	mux.Handle("GET /admin/credentials", viewerAllowed(http.HandlerFunc(d.handleAdminListCredentials)))
	mux.Handle("PUT /admin/credentials/{provider}", adminOnly(http.HandlerFunc(d.handleAdminUpsertCredential)))
	mux.Handle("DELETE /admin/credentials/{provider}", adminOnly(http.HandlerFunc(d.handleAdminDeleteCredential)))

	mux.Handle("POST /admin/tokens", adminOnly(http.HandlerFunc(d.handleAdminCreateToken)))
	mux.Handle("DELETE /admin/tokens/{hash}", adminOnly(http.HandlerFunc(d.handleAdminDisableToken)))

	mux.Handle("GET /admin/dlq", viewerAllowed(http.HandlerFunc(d.handleAdminListDeadLetters)))
	mux.Handle("POST /admin/dlq/{id}/retry", adminOnly(http.HandlerFunc(d.handleAdminRetryDeadLetter)))

	mux.HandleFunc("GET /healthz", d.handleHealth)
}

// handleHealth reports liveness plus dependency health.
func (d *Dependencies) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"status": "ok"}

	if err := d.DB.Health(r.Context()); err != nil {
		logging.Warningf("health check: database unhealthy: %v", err)
		status["status"] = "degraded"
		status["database"] = err.Error()
	}
	if d.Redis != nil {
		if err := d.Redis.Ping(r.Context()).Err(); err != nil {
			status["status"] = "degraded"
			status["redis"] = err.Error()
		}
	}
	if qlen, err := d.UsageWorker.QueueLength(r.Context()); err == nil {
		status["usage_queue_length"] = qlen
	}

	code := http.StatusOK
	if status["status"] != "ok" {
		code = http.StatusServiceUnavailable
	}
	utils.RespondWithJSON(w, code, status)
}
