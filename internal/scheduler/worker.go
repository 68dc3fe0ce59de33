package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"smiledesign_backend/internal/events"
	"smiledesign_backend/internal/leads/repository"
	"smiledesign_backend/internal/leads/scoring"
	"smiledesign_backend/platform/config"
	"smiledesign_backend/platform/logger"
)

const (
	// Leads touched within this window get their risk score refreshed
	// by the nightly scan.
	riskRefreshWindow = 30 * 24 * time.Hour
	riskRefreshBatch  = 500
)

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	client *Client
	repo   repository.LeadsRepository
	scorer *scoring.Service
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, pool *pgxpool.Pool, bus events.Bus, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	repo := repository.New(pool)
	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		client: client,
		repo:   repo,
		scorer: scoring.NewService(repo, bus, log),
		log:    log,
	}

	mux.HandleFunc(TaskRiskRefresh, w.handleRiskRefresh)
	mux.HandleFunc(TaskRiskRefreshScan, w.handleRiskRefreshScan)
	mux.HandleFunc(TaskVerificationCleanup, w.handleVerificationCleanup)

	return w, nil
}

func (w *Worker) handleRiskRefresh(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseRiskRefreshPayload(task)
	if err != nil {
		return err
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return err
	}

	if _, err := w.scorer.Analyze(ctx, leadID); err != nil {
		return err
	}
	return nil
}

// handleRiskRefreshScan fans out one refresh task per recently active
// lead. Each lead gets its own task so a single failure retries alone.
func (w *Worker) handleRiskRefreshScan(ctx context.Context, _ *asynq.Task) error {
	since := time.Now().UTC().Add(-riskRefreshWindow)
	ids, err := w.repo.ListIDsForRiskRefresh(ctx, since, riskRefreshBatch)
	if err != nil {
		return err
	}

	for _, id := range ids {
		err := w.client.ScheduleRiskRefresh(ctx, RiskRefreshPayload{LeadID: id.String()}, time.Now())
		if err != nil {
			w.log.Warn("risk refresh enqueue failed", "lead_id", id.String(), "error", err.Error())
		}
	}
	w.log.Info("risk refresh scan complete", "leads", len(ids))
	return nil
}

func (w *Worker) handleVerificationCleanup(ctx context.Context, _ *asynq.Task) error {
	deleted, err := w.repo.DeleteExpiredVerifications(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	if deleted > 0 {
		w.log.Info("expired verification tokens removed", "count", deleted)
	}
	return nil
}

// Run starts the worker and blocks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return err
	}

	<-ctx.Done()
	w.server.Shutdown()
	_ = w.client.Close()
	return nil
}
