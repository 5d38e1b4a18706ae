package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clinic_engage_backend/internal/adapters/storage"
	"clinic_engage_backend/internal/contacts"
	"clinic_engage_backend/internal/events"
	"clinic_engage_backend/internal/messaging"
	"clinic_engage_backend/internal/notification"
	"clinic_engage_backend/internal/scheduler"
	"clinic_engage_backend/internal/scheduling"
	"clinic_engage_backend/internal/webhook"
	"clinic_engage_backend/platform/config"
	"clinic_engage_backend/platform/db"
	"clinic_engage_backend/platform/logger"
	"clinic_engage_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	mediaStore, err := storage.NewMediaStore(cfg, log)
	if err != nil {
		log.Error("failed to initialize media store", "error", err)
		panic("failed to initialize media store: " + err.Error())
	}

	// Worker-side module wiring (no HTTP handlers required).
	contactsModule := contacts.NewModule(pool, val, log)
	schedulingModule := scheduling.NewModule(pool, cfg, contactsModule.Service(),
		nil, eventBus, val, log)
	messagingModule := messaging.NewModule(pool, cfg, contactsModule.Service(),
		schedulingModule.Service(), mediaStore, eventBus, val, log)

	var mediaStorer webhook.MediaStorer
	if mediaStore != nil {
		mediaStorer = mediaStore
	}
	webhookModule := webhook.NewModule(pool, cfg, contactsModule.Service(),
		messagingModule.Service(), mediaStorer, eventBus, log)

	// Inbox entries and alert emails for events raised by retries and reminders.
	notificationModule := notification.New(pool, cfg, log)
	notificationModule.RegisterHandlers(eventBus)

	sweeper := scheduler.NewFallbackSweeper(cfg, webhookModule.Service(), log)

	worker, err := scheduler.NewWorker(cfg, schedulingModule.Service(), messagingModule.Service(), log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sweeper.Run(gctx)
		return nil
	})
	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})
	_ = g.Wait()
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
