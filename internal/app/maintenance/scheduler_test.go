package maintenance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/courtnotify/internal/lock"
	"github.com/charlesng35/courtnotify/internal/monitoring"
	"github.com/charlesng35/courtnotify/internal/services"
)

type fakeSweeper struct {
	mu    sync.Mutex
	calls []string
	seen  []time.Time

	reminderErr error
	purgeErr    error
	block       bool
}

func (f *fakeSweeper) record(job string, now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, job)
	f.seen = append(f.seen, now)
}

func (f *fakeSweeper) SendReminders(ctx context.Context, now time.Time) (services.ReminderStats, error) {
	f.record(JobReminders, now)
	if f.block {
		<-ctx.Done()
		return services.ReminderStats{}, ctx.Err()
	}
	return services.ReminderStats{Matches: 2, Sent: 1, Skipped: 1}, f.reminderErr
}

func (f *fakeSweeper) CompletePastMatches(_ context.Context, now time.Time) (services.CompletionStats, error) {
	f.record(JobStatus, now)
	return services.CompletionStats{Candidates: 3, Completed: 3, Batches: 1}, nil
}

func (f *fakeSweeper) PurgeNotifications(_ context.Context, now time.Time) (int64, error) {
	f.record(JobRetention, now)
	return 7, f.purgeErr
}

func setupMonitoring(t *testing.T) {
	t.Helper()
	mod, err := monitoring.NewModule(monitoring.Options{DisableRuntimeCollectors: true})
	require.NoError(t, err)
	monitoring.SetModule(mod)
}

func jobSummary(t *testing.T, job string) monitoring.MaintenanceJobSummary {
	t.Helper()
	for _, entry := range monitoring.Snapshot().Maintenance.Jobs {
		if entry.Job == job {
			return entry
		}
	}
	t.Fatalf("no maintenance entry for %s", job)
	return monitoring.MaintenanceJobSummary{}
}

func TestNewSchedulerRequiresSweeper(t *testing.T) {
	_, err := NewScheduler(nil)
	require.Error(t, err)
}

func TestRunOnceRunsEverySweepWithClock(t *testing.T) {
	setupMonitoring(t)
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	sweeper := &fakeSweeper{}

	scheduler, err := NewScheduler(sweeper, WithNow(func() time.Time { return now }))
	require.NoError(t, err)

	require.NoError(t, scheduler.RunOnce(context.Background()))
	require.Equal(t, []string{JobReminders, JobStatus, JobRetention}, sweeper.calls)
	for _, seen := range sweeper.seen {
		require.Equal(t, now, seen)
	}

	require.Equal(t, "success", jobSummary(t, JobRetention).LastStatus)
}

func TestRunOnceAggregatesFailures(t *testing.T) {
	setupMonitoring(t)
	sweeper := &fakeSweeper{
		reminderErr: errors.New("query failed"),
		purgeErr:    errors.New("delete failed"),
	}

	scheduler, err := NewScheduler(sweeper)
	require.NoError(t, err)

	err = scheduler.RunOnce(context.Background())
	require.ErrorContains(t, err, "query failed")
	require.ErrorContains(t, err, "delete failed")
	require.Len(t, sweeper.calls, 3)

	reminders := jobSummary(t, JobReminders)
	require.Equal(t, "error", reminders.LastStatus)
	require.Equal(t, uint64(1), reminders.ConsecutiveFailures)
	require.Equal(t, "success", jobSummary(t, JobStatus).LastStatus)
}

func TestRunSkipsWhenLeaseHeld(t *testing.T) {
	setupMonitoring(t)
	sweeper := &fakeSweeper{}
	locker := lock.NewMemoryLocker()

	held, ok, err := locker.Acquire(context.Background(), "sweep:"+JobReminders, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	scheduler, err := NewScheduler(sweeper, WithLocker(locker))
	require.NoError(t, err)

	require.NoError(t, scheduler.Run(context.Background(), JobReminders))
	require.Empty(t, sweeper.calls)

	skipped := jobSummary(t, JobReminders)
	require.Equal(t, "skipped", skipped.LastStatus)
	require.Zero(t, skipped.ConsecutiveFailures)

	require.NoError(t, held.Release(context.Background()))
	require.NoError(t, scheduler.Run(context.Background(), JobReminders))
	require.Equal(t, []string{JobReminders}, sweeper.calls)
}

func TestRunReleasesLeaseAfterwards(t *testing.T) {
	setupMonitoring(t)
	locker := lock.NewMemoryLocker()

	scheduler, err := NewScheduler(&fakeSweeper{}, WithLocker(locker))
	require.NoError(t, err)
	require.NoError(t, scheduler.Run(context.Background(), JobStatus))

	lease, ok, err := locker.Acquire(context.Background(), "sweep:"+JobStatus, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, lease.Release(context.Background()))
}

func TestRunEnforcesJobTimeout(t *testing.T) {
	setupMonitoring(t)
	sweeper := &fakeSweeper{block: true}

	scheduler, err := NewScheduler(sweeper, WithJobTimeout(20*time.Millisecond))
	require.NoError(t, err)

	err = scheduler.Run(context.Background(), JobReminders)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunRejectsUnknownJob(t *testing.T) {
	setupMonitoring(t)
	scheduler, err := NewScheduler(&fakeSweeper{})
	require.NoError(t, err)

	require.ErrorContains(t, scheduler.Run(context.Background(), "vacuum"), `unknown job "vacuum"`)
}

func TestStartRegistersJobs(t *testing.T) {
	c := cron.New(cron.WithLogger(cron.DiscardLogger))
	scheduler, err := NewScheduler(&fakeSweeper{},
		WithCron(c),
		WithReminderSchedule("*/15 * * * *"),
	)
	require.NoError(t, err)

	require.NoError(t, scheduler.Start())
	<-scheduler.Stop().Done()
	require.Len(t, c.Entries(), 3)
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	scheduler, err := NewScheduler(&fakeSweeper{}, WithRetentionSchedule("every tuesday"))
	require.NoError(t, err)

	require.ErrorContains(t, scheduler.Start(), "notification_retention")
}
