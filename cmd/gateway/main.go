package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"model_gateway/internal/config"
	"model_gateway/internal/httpapi"
	"model_gateway/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Failed to load config: %v", err)
	}
	mux, deps, err := httpapi.NewRouter(cfg)
	if err != nil {
		logging.Fatalf("Failed to build router: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps.UsageWorker.Start(ctx)
	go deps.Prober.Run(ctx, cfg.Probe.Interval)

	addr := ":" + cfg.HTTPPort
	server := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: chat streams stay open as long as the model
		// keeps producing tokens.
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		logging.Infof("Model gateway listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	logging.Infof("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Warningf("Server forced to shutdown: %v", err)
	}

	// Drain the usage queue before closing its stores.
	if err := deps.UsageWorker.Stop(); err != nil {
		logging.Warningf("Usage worker shutdown: %v", err)
	}

	if deps.Redis != nil {
		if err := deps.Redis.Close(); err != nil {
			logging.Warningf("Failed to close redis client: %v", err)
		}
	}
	if err := deps.DB.Close(); err != nil {
		logging.Warningf("Failed to close database: %v", err)
	}

	logging.Infof("Server exited")
}
