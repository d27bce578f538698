// Package main is the entry point for the activatable outbox worker.
// It relays activation events recorded in sys_outbox to the in-process signals.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"activatable/internal/app"
	"activatable/internal/config"
	"activatable/internal/infrastructure/notify"
	"activatable/internal/infrastructure/storage/postgres"
	"activatable/pkg/logger"
)

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting activatable worker")

	a, err := app.New(ctx, cfg, log, app.RoleWorker)
	if err != nil {
		log.Fatalw("start-up failed", "error", err)
	}
	defer a.Close()

	if a.Pool == nil {
		log.Fatal("worker requires database.dsn")
	}
	if !cfg.Activation.OutboxEnabled {
		log.Warn("activation.outbox_enabled is false; nothing will be recorded for the worker")
	}

	worker := NewWorker(a, cfg.Worker, cfg.HTTP.IdempotencyTTL, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Worker drains the outbox on a poll interval and whenever the publisher notifies.
type Worker struct {
	relay       *postgres.OutboxRelay
	idempotency *postgres.IdempotencyStore
	listener    *notify.Listener
	cfg         config.WorkerConfig
	log         *logger.Logger
}

func NewWorker(a *app.App, cfg config.WorkerConfig, idempotencyTTL time.Duration, log *logger.Logger) *Worker {
	raw := a.Pool.Unwrap()
	return &Worker{
		relay:       postgres.NewOutboxRelay(raw, cfg.BatchSize, postgres.NewSignalHandler(a.Signals), log),
		idempotency: postgres.NewIdempotencyStore(a.PgTx, idempotencyTTL),
		listener:    notify.NewListener(raw, notify.OutboxChannel),
		cfg:         cfg,
		log:         log.WithComponent("worker"),
	}
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	wake := make(chan struct{}, 1)
	w.listener.Subscribe(notify.Wakeup(wake))
	if err := w.listener.Start(ctx); err != nil {
		// Polling still delivers, only with more latency.
		w.log.Warnw("outbox listener not started", "error", err)
	} else {
		defer w.listener.Stop()
	}

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	cleanupInterval := w.cfg.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = time.Hour
	}
	cleanupTicker := time.NewTicker(cleanupInterval)
	defer cleanupTicker.Stop()

	w.drain(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drain(ctx)
		case <-wake:
			w.drain(ctx)
		case <-cleanupTicker.C:
			w.cleanup(ctx)
		}
	}
}

// drain processes batches until the outbox has no more ready messages.
func (w *Worker) drain(ctx context.Context) {
	total := 0
	for ctx.Err() == nil {
		n, err := w.relay.ProcessBatch(ctx)
		if err != nil {
			w.log.Errorw("outbox batch failed", "error", err)
			break
		}
		total += n
		if n < w.cfg.BatchSize {
			break
		}
	}

	if total > 0 {
		w.log.Debugw("relayed outbox messages", "count", total)
	}
}

func (w *Worker) cleanup(ctx context.Context) {
	if n, err := w.relay.MoveToDLQ(ctx); err != nil {
		w.log.Errorw("failed to move messages to DLQ", "error", err)
	} else if n > 0 {
		w.log.Warnw("moved failed outbox messages to DLQ", "count", n)
	}

	if n, err := w.idempotency.CleanupExpired(ctx); err != nil {
		w.log.Errorw("failed to clean up idempotency keys", "error", err)
	} else if n > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", n)
	}
}
