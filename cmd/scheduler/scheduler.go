package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/learnsy/backend/libs/config"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	lockKeyPrefix = "learnsy:scheduler:"
	jobTimeout    = time.Minute
)

// Locker takes short-lived Redis locks so only one scheduler instance runs a job per tick
type Locker interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// SessionSweeper closes idle study sessions
type SessionSweeper interface {
	SweepIdle(ctx context.Context) (int64, error)
}

// SubscriptionExpirer moves lapsed premium subscriptions to expired
type SubscriptionExpirer interface {
	ExpireDue(ctx context.Context) (int64, error)
}

// TokenCleaner removes refresh tokens issued before a cutoff
type TokenCleaner interface {
	DeleteExpiredTokens(ctx context.Context, expiryTime time.Time) (int, error)
}

// Job is a named maintenance function run on a cron spec
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) (int64, error)
}

// Scheduler runs maintenance jobs on cron schedules
type Scheduler struct {
	cron     *cron.Cron
	lock     Locker
	lockTTL  time.Duration
	instance string
	logger   *zap.Logger
}

// NewScheduler creates a new scheduler instance. "instance" identifies the lock holder.
func NewScheduler(lock Locker, lockTTL time.Duration, instance string, logger *zap.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger))
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		lock:     lock,
		lockTTL:  lockTTL,
		instance: instance,
		logger:   logger,
	}
}

// Add registers a job. Job.Spec uses the standard five-field cron syntax or a descriptor such as "@every 1m".
func (s *Scheduler) Add(job Job) error {
	if _, err := s.cron.AddFunc(job.Spec, func() { s.run(context.Background(), job) }); err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", job.Spec, job.Name, err)
	}
	s.logger.Info("Scheduled job", zap.String("job", job.Name), zap.String("spec", job.Spec))
	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// run executes job when this instance wins its lock. It reports whether the job ran.
func (s *Scheduler) run(ctx context.Context, job Job) bool {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	acquired, err := s.lock.SetNX(ctx, lockKeyPrefix+job.Name, s.instance, s.lockTTL).Result()
	if err != nil {
		s.logger.Error("Failed to acquire job lock", zap.String("job", job.Name), zap.Error(err))
		return false
	}
	if !acquired {
		s.logger.Debug("Job locked by another instance", zap.String("job", job.Name))
		return false
	}

	start := time.Now()
	affected, err := job.Run(ctx)
	if err != nil {
		s.logger.Error("Job failed", zap.String("job", job.Name), zap.Error(err))
		return true
	}
	s.logger.Info("Job completed",
		zap.String("job", job.Name),
		zap.Int64("affected", affected),
		zap.Duration("took", time.Since(start)),
	)
	return true
}

// maintenanceJobs builds the periodic jobs. Refresh tokens older than refreshExpiry are removed.
func maintenanceJobs(
	cfg config.SchedulerConfig,
	sessions SessionSweeper,
	subscriptions SubscriptionExpirer,
	tokens TokenCleaner,
	refreshExpiry time.Duration,
	now func() time.Time,
) []Job {
	return []Job{
		{Name: "sweep-idle-sessions", Spec: cfg.SweepSchedule, Run: sessions.SweepIdle},
		{Name: "expire-subscriptions", Spec: cfg.SubscriptionExpirySchedule, Run: subscriptions.ExpireDue},
		{
			Name: "delete-expired-tokens",
			Spec: cfg.TokenCleanupSchedule,
			Run: func(ctx context.Context) (int64, error) {
				deleted, err := tokens.DeleteExpiredTokens(ctx, now().Add(-refreshExpiry))
				return int64(deleted), err
			},
		},
	}
}
