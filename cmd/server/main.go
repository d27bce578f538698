// Package main is the entry point for the activatable admin API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"activatable/internal/app"
	"activatable/internal/config"
	v1 "activatable/internal/infrastructure/http/v1"
	"activatable/internal/infrastructure/http/v1/handlers"
	"activatable/internal/infrastructure/http/v1/middleware"
	"activatable/internal/infrastructure/storage/postgres"
	"activatable/pkg/logger"
)

var version = "dev"

func main() {
	cfg, err := config.Load(os.Getenv(config.EnvPrefix + "_CONFIG"))
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Infow("starting activatable server", "version", version)

	// Model validation failures abort start-up.
	a, err := app.New(ctx, cfg, log, app.RoleServer)
	if err != nil {
		log.Fatalw("start-up failed", "error", err)
	}
	defer a.Close()

	routerCfg := v1.RouterConfig{
		Logger:     log,
		Registry:   a.Registry,
		Warehouses: a.Warehouses,
		Units:      a.Units,
		Version:    version,
	}
	if a.Pool != nil {
		routerCfg.Pool = handlers.Pinger(a.Pool)
		if cfg.HTTP.IdempotencyEnabled {
			routerCfg.Idempotency = middleware.IdempotencyStore(postgres.NewIdempotencyStore(a.PgTx, cfg.HTTP.IdempotencyTTL))
		}
	} else if cfg.HTTP.IdempotencyEnabled {
		log.Warn("idempotency requires a database; disabled")
	}

	server := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      v1.NewRouter(routerCfg),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Infow("server starting", "port", cfg.HTTP.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
