// Package maintenance runs periodic housekeeping: purging expired sessions and
// expiring interview invitations that passed their deadline.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spigell/hireloop/internal/metrics"
)

const (
	DefaultSessionPurge    = "@every 1h"
	DefaultInterviewExpiry = "*/15 * * * *"
	jobTimeout             = time.Minute
)

type Store interface {
	PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error)
	ExpireInterviews(ctx context.Context, now time.Time) (int64, error)
}

type Config struct {
	SessionPurge    string
	InterviewExpiry string
}

type Scheduler struct {
	cron   *cron.Cron
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

func New(st Store, cfg Config, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SessionPurge == "" {
		cfg.SessionPurge = DefaultSessionPurge
	}
	if cfg.InterviewExpiry == "" {
		cfg.InterviewExpiry = DefaultInterviewExpiry
	}

	cl := cronLogger{logger.Sugar()}
	s := &Scheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		store:  st,
		logger: logger,
		now:    time.Now,
	}

	if _, err := s.cron.AddFunc(cfg.SessionPurge, s.job("session_purge", st.PurgeExpiredSessions)); err != nil {
		return nil, fmt.Errorf("schedule session purge %q: %w", cfg.SessionPurge, err)
	}
	if _, err := s.cron.AddFunc(cfg.InterviewExpiry, s.job("interview_expiry", st.ExpireInterviews)); err != nil {
		return nil, fmt.Errorf("schedule interview expiry %q: %w", cfg.InterviewExpiry, err)
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.logger.Info("maintenance scheduler started", zap.Int("jobs", len(s.cron.Entries())))
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("maintenance scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce runs every job immediately. Used at startup and by tests.
func (s *Scheduler) RunOnce() {
	s.job("session_purge", s.store.PurgeExpiredSessions)()
	s.job("interview_expiry", s.store.ExpireInterviews)()
}

func (s *Scheduler) job(name string, fn func(context.Context, time.Time) (int64, error)) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		started := time.Now()
		n, err := fn(ctx, s.now())
		if err != nil {
			s.logger.Error("maintenance job failed", zap.String("job", name), zap.Error(err))
			return
		}
		metrics.RecordMaintenance(name, n)
		s.logger.Info("maintenance job finished",
			zap.String("job", name),
			zap.Int64("affected", n),
			zap.Duration("took", time.Since(started)),
		)
	}
}

type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
