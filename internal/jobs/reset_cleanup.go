// Package jobs holds the scheduled maintenance tasks run by the API process.
package jobs

import (
	"context"
	"time"

	"github.com/diagnosis/natours/pkg/logger"
	"github.com/robfig/cron/v3"
)

// ResetStore is the part of the user store the cleanup job needs.
type ResetStore interface {
	ClearExpiredResets(ctx context.Context, now time.Time) (int64, error)
}

// ResetTokenCleanupJob drops password reset tokens that expired without being redeemed.
type ResetTokenCleanupJob struct {
	store   ResetStore
	timeout time.Duration
	now     func() time.Time
}

func NewResetTokenCleanupJob(store ResetStore) *ResetTokenCleanupJob {
	return &ResetTokenCleanupJob{store: store, timeout: 30 * time.Second, now: time.Now}
}

// Run implements cron.Job.
func (j *ResetTokenCleanupJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	n, err := j.store.ClearExpiredResets(ctx, j.now())
	if err != nil {
		logger.Warn("reset token cleanup failed", "error", err)
		return
	}
	if n > 0 {
		logger.Info("cleared expired reset tokens", "count", n)
	}
}

// Scheduler wraps the cron runner started by the API process.
type Scheduler struct {
	cron *cron.Cron
}

func NewScheduler() *Scheduler {
	return &Scheduler{cron: cron.New(cron.WithLocation(time.UTC))}
}

// Add registers job under a standard five-field or descriptor ("@every 15m") schedule.
func (s *Scheduler) Add(spec string, job cron.Job) error {
	_, err := s.cron.AddJob(spec, cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(job))
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// ExpiringStore drops its own expired records.
type ExpiringStore interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// IdempotencyCleanupJob purges stored idempotent responses past their TTL.
type IdempotencyCleanupJob struct {
	store ExpiringStore
}

func NewIdempotencyCleanupJob(store ExpiringStore) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{store: store}
}

func (j *IdempotencyCleanupJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := j.store.CleanupExpired(ctx)
	if err != nil {
		logger.Warn("idempotency cleanup failed", "error", err)
		return
	}
	logger.Debug("idempotency cleanup completed", "removed", n)
}
