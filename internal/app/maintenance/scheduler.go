package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/courtnotify/internal/lock"
	"github.com/charlesng35/courtnotify/internal/monitoring"
	"github.com/charlesng35/courtnotify/internal/services"
	"github.com/charlesng35/courtnotify/pkg/logger"
)

// Job names double as metric labels and lease keys.
const (
	JobReminders = "reminders"
	JobStatus    = "match_status"
	JobRetention = "notification_retention"
)

const (
	defaultReminderSpec  = "@hourly"
	defaultStatusSpec    = "@hourly"
	defaultRetentionSpec = "@daily"
	defaultJobTimeout    = 10 * time.Minute
	releaseTimeout       = 5 * time.Second
)

// Sweeper is the work the scheduler drives. *services.SweepService satisfies it.
type Sweeper interface {
	SendReminders(ctx context.Context, now time.Time) (services.ReminderStats, error)
	CompletePastMatches(ctx context.Context, now time.Time) (services.CompletionStats, error)
	PurgeNotifications(ctx context.Context, now time.Time) (int64, error)
}

// Scheduler runs the reminder, status and retention sweeps on cron schedules.
type Scheduler struct {
	sweeps  Sweeper
	locker  lock.Locker
	cron    *cron.Cron
	now     func() time.Time
	log     *zap.Logger
	timeout time.Duration

	reminderSchedule  string
	statusSchedule    string
	retentionSchedule string
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock handed to the sweeps.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocker makes every run hold a lease so overlapping ticks across
// replicas are skipped.
func WithLocker(l lock.Locker) Option {
	return func(s *Scheduler) {
		s.locker = l
	}
}

// WithJobTimeout bounds a single run. It is also the lease TTL.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithReminderSchedule overrides the cron specification of the reminder sweep.
func WithReminderSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.reminderSchedule = spec
		}
	}
}

// WithStatusSchedule overrides the cron specification of the status sweep.
func WithStatusSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.statusSchedule = spec
		}
	}
}

// WithRetentionSchedule overrides the cron specification of the retention sweep.
func WithRetentionSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.retentionSchedule = spec
		}
	}
}

// NewScheduler constructs a Scheduler with the default schedules.
func NewScheduler(sweeps Sweeper, opts ...Option) (*Scheduler, error) {
	if sweeps == nil {
		return nil, errors.New("maintenance: sweeper is required")
	}

	s := &Scheduler{
		sweeps:            sweeps,
		now:               time.Now,
		timeout:           defaultJobTimeout,
		reminderSchedule:  defaultReminderSpec,
		statusSchedule:    defaultStatusSpec,
		retentionSchedule: defaultRetentionSpec,
		log:               logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.cron == nil {
		s.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return s, nil
}

// Start registers the sweep jobs and launches the cron scheduler.
func (s *Scheduler) Start() error {
	jobs := []struct {
		name string
		spec string
	}{
		{JobReminders, s.reminderSchedule},
		{JobStatus, s.statusSchedule},
		{JobRetention, s.retentionSchedule},
	}

	for _, job := range jobs {
		name := job.name
		if _, err := s.cron.AddFunc(job.spec, func() {
			_ = s.Run(context.Background(), name)
		}); err != nil {
			return fmt.Errorf("maintenance: schedule %s %q: %w", name, job.spec, err)
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts the underlying scheduler. The returned context is done once
// running jobs have finished.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunOnce executes every sweep sequentially and aggregates their errors.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	for _, job := range []string{JobReminders, JobStatus, JobRetention} {
		errs = multierr.Append(errs, s.Run(ctx, job))
	}
	return errs
}

// Run executes a single job under the job deadline. When a locker is
// configured and another holder owns the lease the run is skipped.
func (s *Scheduler) Run(ctx context.Context, job string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	log := s.log.With(zap.String("job", job))

	if s.locker != nil {
		lease, ok, err := s.locker.Acquire(ctx, "sweep:"+job, s.timeout)
		if err != nil {
			log.Warn("sweep lease unavailable", zap.Error(err))
			monitoring.RecordMaintenanceRun(job, "error", err.Error(), time.Since(start))
			return fmt.Errorf("maintenance: %s lease: %w", job, err)
		}
		if !ok {
			log.Debug("sweep already running elsewhere")
			monitoring.RecordMaintenanceRun(job, "skipped", "lease held", time.Since(start))
			return nil
		}
		defer s.release(lease, log)
	}

	summary, err := s.execute(ctx, job)
	duration := time.Since(start)
	if err != nil {
		log.Warn("sweep failed", zap.Error(err), zap.Duration("duration", duration))
		monitoring.RecordMaintenanceRun(job, "error", err.Error(), duration)
		return fmt.Errorf("maintenance: %s: %w", job, err)
	}

	log.Info("sweep finished", append(summary, zap.Duration("duration", duration))...)
	monitoring.RecordMaintenanceRun(job, "success", "", duration)
	return nil
}

func (s *Scheduler) execute(ctx context.Context, job string) ([]zap.Field, error) {
	now := s.now()
	switch job {
	case JobReminders:
		stats, err := s.sweeps.SendReminders(ctx, now)
		return []zap.Field{
			zap.Int("matches", stats.Matches),
			zap.Int("sent", stats.Sent),
			zap.Int("skipped", stats.Skipped),
			zap.Int("failed", stats.Failed),
		}, err
	case JobStatus:
		stats, err := s.sweeps.CompletePastMatches(ctx, now)
		return []zap.Field{
			zap.Int("candidates", stats.Candidates),
			zap.Int64("completed", stats.Completed),
			zap.Int("batches", stats.Batches),
		}, err
	case JobRetention:
		purged, err := s.sweeps.PurgeNotifications(ctx, now)
		return []zap.Field{zap.Int64("purged", purged)}, err
	default:
		return nil, fmt.Errorf("unknown job %q", job)
	}
}

// release uses its own context so an expired job deadline still frees the lease.
func (s *Scheduler) release(lease lock.Lease, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := lease.Release(ctx); err != nil && !errors.Is(err, lock.ErrNotHeld) {
		log.Warn("release sweep lease", zap.Error(err))
	}
}
