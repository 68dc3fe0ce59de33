package scheduler

import (
	"fmt"

	"github.com/hibiken/asynq"

	"smiledesign_backend/platform/config"
	"smiledesign_backend/platform/logger"
)

// NewPeriodic builds the cron schedule: a nightly risk refresh scan and
// an hourly verification token cleanup.
func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*asynq.Scheduler, error) {
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

	sched := asynq.NewScheduler(opt, nil)
	if _, err := sched.Register("0 3 * * *", NewRiskRefreshScanTask(), asynq.Queue(queue)); err != nil {
		return nil, err
	}
	if _, err := sched.Register("@hourly", NewVerificationCleanupTask(), asynq.Queue(queue)); err != nil {
		return nil, err
	}

	log.Info("periodic jobs registered", "queue", queue)
	return sched, nil
}
