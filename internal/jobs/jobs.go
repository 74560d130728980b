// File: internal/jobs/jobs.go
package jobs

import (
	"context"
	"fmt"
	"time"

	"texplicit_backend/internal/config"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	runTimeout  = 5 * time.Minute
	stopTimeout = 10 * time.Second
	// expiryMailWindow is how recently a plan must have ended for its owner to be mailed.
	expiryMailWindow = 24 * time.Hour
)

// ReportSweeper fails reports that have been pending too long.
type ReportSweeper interface {
	FailStale(ctx context.Context) (int, error)
}

// ExpiryNotifier tells users their subscription has ended.
type ExpiryNotifier interface {
	NotifyExpired(ctx context.Context, window time.Duration) (int, error)
}

// Scheduler runs the periodic maintenance jobs.
type Scheduler struct {
	reports ReportSweeper
	users   ExpiryNotifier
	cfg     *config.Config
	logger  *zap.Logger
	cron    *cron.Cron
}

func NewScheduler(reports ReportSweeper, users ExpiryNotifier, cfg *config.Config, logger *zap.Logger) *Scheduler {
	named := logger.Named("jobs")
	return &Scheduler{
		reports: reports,
		users:   users,
		cfg:     cfg,
		logger:  named,
		cron: cron.New(cron.WithLogger(NewCronLogger(named.Named("cron"))),
			cron.WithChain(cron.SkipIfStillRunning(NewCronLogger(named.Named("cron"))))),
	}
}

// SetupAndStart schedules every job with a non-empty schedule and starts the scheduler.
func (s *Scheduler) SetupAndStart() error {
	jobs := []struct {
		name     string
		schedule string
		run      func(ctx context.Context) (int, error)
	}{
		{"stale_reports", s.cfg.StaleReportJobSchedule, s.reports.FailStale},
		{"subscription_expiry", s.cfg.SubscriptionExpiryJobSchedule, func(ctx context.Context) (int, error) {
			return s.users.NotifyExpired(ctx, expiryMailWindow)
		}},
	}
	for _, j := range jobs {
		if j.schedule == "" {
			s.logger.Warn("Job schedule not defined, job will not run", zap.String("job", j.name))
			continue
		}
		id, err := s.cron.AddFunc(j.schedule, s.wrap(j.name, j.run))
		if err != nil {
			s.logger.Error("Failed to schedule job", zap.String("job", j.name), zap.String("schedule", j.schedule), zap.Error(err))
			return fmt.Errorf("schedule %s: %w", j.name, err)
		}
		s.logger.Info("Job scheduled", zap.String("job", j.name), zap.String("schedule", j.schedule), zap.Any("jobID", id))
	}
	s.cron.Start()
	return nil
}

func (s *Scheduler) wrap(name string, run func(ctx context.Context) (int, error)) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		n, err := run(ctx)
		if err != nil {
			s.logger.Error("Job run failed", zap.String("job", name), zap.Error(err))
			return
		}
		s.logger.Info("Job run completed", zap.String("job", name), zap.Int("affected", n))
	}
}

// Stop waits for running jobs to finish, up to a bounded timeout.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping job scheduler...")
	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("Job scheduler stopped gracefully.")
	case <-time.After(stopTimeout):
		s.logger.Warn("Job scheduler stop timed out.")
	}
}

// cronLogger adapts zap.Logger to cron.Logger.
type cronLogger struct {
	zl *zap.Logger
}

func NewCronLogger(zl *zap.Logger) cron.Logger {
	return &cronLogger{zl: zl}
}

func (cl *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	cl.zl.Debug(msg, fields(keysAndValues...)...)
}

func (cl *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	cl.zl.Error(msg, append(fields(keysAndValues...), zap.Error(err))...)
}

func fields(keysAndValues ...interface{}) []zap.Field {
	var out []zap.Field
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprintf("%v", keysAndValues[i])
		if i+1 < len(keysAndValues) {
			out = append(out, zap.Any(key, keysAndValues[i+1]))
		} else {
			out = append(out, zap.Any(key, "MISSING_VALUE"))
		}
	}
	return out
}
