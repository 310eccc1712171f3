package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/charlesng35/courtnotify/internal/models"
	"github.com/charlesng35/courtnotify/internal/monitoring"
	"github.com/charlesng35/courtnotify/internal/store"
	"github.com/charlesng35/courtnotify/pkg/logger"
)

const (
	defaultReminderHorizon = 24 * time.Hour
	defaultRetentionDays   = 30
	defaultBatchSize       = 500
)

// ReminderStatuses are the statuses eligible for pre-match reminders.
var ReminderStatuses = []models.MatchStatus{
	models.MatchStatusOpen,
	models.MatchStatusFull,
	models.MatchStatusConfirmed,
}

// SweepConfig tunes the periodic jobs.
type SweepConfig struct {
	ReminderHorizon time.Duration
	RetentionDays   int
	BatchSize       int
	FanOut          int
}

// SweepDependencies groups the collaborators of the sweeps.
type SweepDependencies struct {
	Matches       store.Matches
	Notifications store.Notifications
	Tracker       *ReminderTracker
	Resolver      *RecipientResolver
	Composer      *Composer
	Dispatcher    *Dispatcher
}

// ReminderStats summarises one reminder sweep.
type ReminderStats struct {
	Matches int
	Sent    int
	Skipped int
	Failed  int
}

// CompletionStats summarises one status sweep.
type CompletionStats struct {
	Candidates int
	Completed  int64
	Batches    int
}

// SweepService runs the reminder, status and retention sweeps.
type SweepService struct {
	deps SweepDependencies
	cfg  SweepConfig
	log  *zap.Logger
}

// NewSweepService validates dependencies and applies defaults.
func NewSweepService(deps SweepDependencies, cfg SweepConfig) (*SweepService, error) {
	switch {
	case deps.Matches == nil:
		return nil, errors.New("sweep service: match store is required")
	case deps.Notifications == nil:
		return nil, errors.New("sweep service: notification store is required")
	case deps.Tracker == nil, deps.Resolver == nil, deps.Composer == nil, deps.Dispatcher == nil:
		return nil, errors.New("sweep service: tracker, resolver, composer and dispatcher are required")
	}
	if cfg.ReminderHorizon <= 0 {
		cfg.ReminderHorizon = defaultReminderHorizon
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = defaultRetentionDays
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.FanOut <= 0 {
		cfg.FanOut = defaultFanOut
	}
	return &SweepService{deps: deps, cfg: cfg, log: logger.WithModule("sweeps")}, nil
}

type reminderResult int

const (
	reminderSent reminderResult = iota
	reminderSkipped
	reminderFailed
)

func (r reminderResult) String() string {
	switch r {
	case reminderSent:
		return "sent"
	case reminderSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// SendReminders sends every due 24-hour and 2-hour reminder. Matches are
// processed concurrently and one match failing does not affect the others.
// Only a failed candidate query fails the sweep. Cancelling ctx stops
// scheduling further matches.
func (s *SweepService) SendReminders(ctx context.Context, now time.Time) (ReminderStats, error) {
	ctx = ensureContext(ctx)
	var stats ReminderStats

	matches, err := s.deps.Matches.UpcomingMatches(ctx, ReminderStatuses, now, now.Add(s.cfg.ReminderHorizon))
	if err != nil {
		return stats, fmt.Errorf("sweep service: query upcoming matches: %w", err)
	}
	stats.Matches = len(matches)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.cfg.FanOut)

	for i := range matches {
		match := &matches[i]
		windows := s.deps.Tracker.DueWindows(match, now)
		if len(windows) == 0 {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			for _, window := range windows {
				result := s.remind(ctx, match, window)
				monitoring.RecordReminder(string(window), result.String())
				mu.Lock()
				switch result {
				case reminderSent:
					stats.Sent++
				case reminderSkipped:
					stats.Skipped++
				default:
					stats.Failed++
				}
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	s.log.Info("reminder sweep finished",
		zap.Int("matches", stats.Matches),
		zap.Int("sent", stats.Sent),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

func (s *SweepService) remind(ctx context.Context, match *models.Match, window models.ReminderWindow) reminderResult {
	log := s.log.With(zap.String("match_id", match.ID), zap.String("window", string(window)))

	won, err := s.deps.Tracker.Claim(ctx, match.ID, window)
	if err != nil {
		log.Warn("claim reminder", zap.Error(err))
		return reminderFailed
	}
	if !won {
		return reminderSkipped
	}

	release := func() {
		if err := s.deps.Tracker.Release(ctx, match.ID, window); err != nil {
			log.Error("release reminder claim", zap.Error(err))
		}
	}

	tokens, err := s.deps.Resolver.Direct(ctx, match.PlayerIDs)
	if err != nil {
		if len(tokens) == 0 {
			log.Warn("resolve reminder recipients", zap.Error(err))
			release()
			return reminderFailed
		}
		log.Warn("partial reminder recipients", zap.Int("tokens", len(tokens)), zap.Error(err))
	}
	if len(tokens) == 0 {
		release()
		return reminderSkipped
	}

	if _, err := s.deps.Dispatcher.SendMany(ctx, tokens, s.deps.Composer.Reminder(match, window)); err != nil {
		log.Warn("send reminder", zap.Error(err))
		release()
		return reminderFailed
	}
	return reminderSent
}

// CompletePastMatches marks matches whose scheduled end has passed as
// completed. Updates are committed in chunks of the configured batch size.
// Chunks already committed stay committed if ctx is cancelled midway.
func (s *SweepService) CompletePastMatches(ctx context.Context, now time.Time) (CompletionStats, error) {
	ctx = ensureContext(ctx)
	var stats CompletionStats

	matches, err := s.deps.Matches.StartedMatches(ctx, models.NonTerminalMatchStatuses, now)
	if err != nil {
		return stats, fmt.Errorf("sweep service: query started matches: %w", err)
	}

	ids := make([]string, 0, len(matches))
	for i := range matches {
		if s.deps.Tracker.CompletionDue(&matches[i], now) {
			ids = append(ids, matches[i].ID)
		}
	}
	stats.Candidates = len(ids)

	var errs error
	for _, batch := range chunk(ids, s.cfg.BatchSize) {
		if err := ctx.Err(); err != nil {
			s.log.Warn("status sweep interrupted",
				zap.Int64("completed", stats.Completed),
				zap.Int("candidates", stats.Candidates),
			)
			return stats, multierr.Append(errs, fmt.Errorf("sweep service: status sweep interrupted: %w", err))
		}
		n, err := s.deps.Matches.CompleteMatches(ctx, batch)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("sweep service: complete batch of %d: %w", len(batch), err))
			continue
		}
		stats.Batches++
		stats.Completed += n
	}
	monitoring.RecordMatchesCompleted(stats.Completed)

	s.log.Info("status sweep finished",
		zap.Int("candidates", stats.Candidates),
		zap.Int64("completed", stats.Completed),
		zap.Int("batches", stats.Batches),
	)
	return stats, errs
}

// PurgeNotifications deletes notification records older than the retention
// period, one bounded chunk per transaction.
func (s *SweepService) PurgeNotifications(ctx context.Context, now time.Time) (int64, error) {
	ctx = ensureContext(ctx)
	cutoff := now.AddDate(0, 0, -s.cfg.RetentionDays)

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			monitoring.RecordNotificationsPurged(total)
			return total, fmt.Errorf("sweep service: retention sweep interrupted: %w", err)
		}
		n, err := s.deps.Notifications.PurgeNotifications(ctx, cutoff, s.cfg.BatchSize)
		total += n
		if err != nil {
			monitoring.RecordNotificationsPurged(total)
			return total, fmt.Errorf("sweep service: purge notifications: %w", err)
		}
		if n < int64(s.cfg.BatchSize) {
			break
		}
	}
	monitoring.RecordNotificationsPurged(total)

	s.log.Info("retention sweep finished", zap.Int64("deleted", total), zap.Time("cutoff", cutoff))
	return total, nil
}
