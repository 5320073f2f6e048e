// Package jobs runs periodic housekeeping for the server.
package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"artizen/internal/db"
	"artizen/internal/logging"
	"artizen/internal/metrics"
	"artizen/internal/ratelimit"
)

const retentionJob = "retention"

type Options struct {
	Schedule        string
	NotificationAge time.Duration
	Limiter         *ratelimit.Limiter
	Metrics         *metrics.Metrics
	Now             func() time.Time
}

type Scheduler struct {
	cron     *cron.Cron
	database *sql.DB
	opts     Options
}

func New(database *sql.DB, opts Options) (*Scheduler, error) {
	if opts.Schedule == "" {
		opts.Schedule = "@every 1h"
	}
	if opts.NotificationAge <= 0 {
		opts.NotificationAge = 30 * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Scheduler{
		cron:     cron.New(),
		database: database,
		opts:     opts,
	}
	if _, err := s.cron.AddFunc(opts.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		_, _ = s.RunRetention(ctx)
	}); err != nil {
		return nil, fmt.Errorf("schedule %s job %q: %w", retentionJob, opts.Schedule, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logging.Log.Info("scheduler started", "job", retentionJob, "schedule", s.opts.Schedule)
}

// Stop waits for a running job to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	logging.Log.Info("scheduler stopped")
}

type RetentionResult struct {
	Notifications int64
	RateBuckets   int
}

// RunRetention purges old read notifications and idle rate limit buckets.
func (s *Scheduler) RunRetention(ctx context.Context) (RetentionResult, error) {
	now := s.opts.Now().UTC()
	var res RetentionResult

	purged, err := db.PurgeReadNotifications(ctx, s.database, now.Add(-s.opts.NotificationAge))
	if err != nil {
		err = fmt.Errorf("purge notifications: %w", err)
		logging.Log.Error("retention failed", "err", err)
		s.observe(err)
		return res, err
	}
	res.Notifications = purged
	if s.opts.Limiter != nil {
		res.RateBuckets = s.opts.Limiter.Sweep(now)
	}

	logging.Log.Info("retention complete", "notifications", res.Notifications, "rate_buckets", res.RateBuckets)
	s.observe(nil)
	return res, nil
}

func (s *Scheduler) observe(err error) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.JobRun(retentionJob, err)
	}
}
