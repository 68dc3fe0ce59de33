package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"smiledesign_backend/internal/auth"
	"smiledesign_backend/internal/email"
	"smiledesign_backend/internal/events"
	apphttp "smiledesign_backend/internal/http"
	"smiledesign_backend/internal/http/router"
	"smiledesign_backend/internal/leads"
	"smiledesign_backend/internal/quotes"
	"smiledesign_backend/internal/storage"
	"smiledesign_backend/internal/webhook"
	"smiledesign_backend/platform/config"
	"smiledesign_backend/platform/db"
	"smiledesign_backend/platform/logger"
	"smiledesign_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

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
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	sender := email.NewSender(cfg, log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// Document storage for patient photos and X-rays
	var documents storage.DocumentStore
	if cfg.IsMinIOEnabled() {
		minioSvc, err := storage.NewMinIOService(cfg)
		if err != nil {
			log.Error("failed to initialize storage service", "error", err)
			panic("failed to initialize storage service: " + err.Error())
		}
		ensureBucket(ctx, log, minioSvc, "patient documents", cfg.GetMinioBucketPatientDocuments())
		documents = minioSvc
		log.Info("storage service initialized", "bucket", cfg.GetMinioBucketPatientDocuments())
	} else {
		log.Warn("MinIO not configured; document uploads disabled")
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	authModule := auth.NewModule(pool, cfg, sender, val, log)
	leadsModule, err := leads.NewModule(pool, eventBus, sender, documents, cfg, val, log)
	if err != nil {
		log.Error("failed to initialize leads module", "error", err)
		panic("failed to initialize leads module: " + err.Error())
	}
	quotesModule := quotes.NewModule(pool, leadsModule.Repository(), eventBus, val, log)
	webhookModule := webhook.NewModule(pool, leadsModule.Repository(), eventBus, val, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Health: pool,
		Modules: []apphttp.Module{
			authModule,
			leadsModule,
			quotesModule,
			webhookModule,
		},
	}

	engine := router.New(app)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: engine,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server error", "error", err)
		panic("server error: " + err.Error())
	}

	log.Info("server stopped")
}

// ensureBucket wraps the retry logic for verifying a MinIO bucket exists.
func ensureBucket(ctx context.Context, log *logger.Logger, documents storage.DocumentStore, name, bucket string) {
	if err := withRetry(ctx, log, "ensure "+name+" bucket", 5, 2*time.Second, func() error {
		return documents.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Error("failed to ensure storage bucket exists", "error", err, "bucket", bucket)
		panic("failed to ensure storage bucket exists: " + err.Error())
	}
}

// withRetry runs fn up to attempts times with quadratic backoff, respecting
// context cancellation between attempts.
func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
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

	return fmt.Errorf("%s: %w", name, lastErr)
}
