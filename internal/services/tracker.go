package services

import (
	"context"
	"errors"
	"time"

	"github.com/charlesng35/courtnotify/internal/models"
	"github.com/charlesng35/courtnotify/internal/store"
)

// ReminderTracker owns the reminder flags and the time rules behind the sweeps.
type ReminderTracker struct {
	matches store.Matches
}

// NewReminderTracker constructs a tracker writing flags through matches.
func NewReminderTracker(matches store.Matches) (*ReminderTracker, error) {
	if matches == nil {
		return nil, errors.New("reminder tracker: match store is required")
	}
	return &ReminderTracker{matches: matches}, nil
}

// DueWindows lists the reminder windows the match is inside at now whose flag
// is still unset on the snapshot. Bounds are inclusive.
func (t *ReminderTracker) DueWindows(match *models.Match, now time.Time) []models.ReminderWindow {
	if match == nil || match.Status.Terminal() {
		return nil
	}
	until := match.StartsAt().Sub(now)

	var due []models.ReminderWindow
	for _, window := range models.ReminderWindows {
		lo, hi := window.Bounds()
		if until >= lo && until <= hi && !window.Sent(match) {
			due = append(due, window)
		}
	}
	return due
}

// CompletionDue reports whether a non-terminal match has ended before now.
func (t *ReminderTracker) CompletionDue(match *models.Match, now time.Time) bool {
	if match == nil || match.Status.Terminal() {
		return false
	}
	return now.After(match.EndsAt())
}

// Claim atomically sets the window flag. Only the caller that flips it gets true.
func (t *ReminderTracker) Claim(ctx context.Context, matchID string, window models.ReminderWindow) (bool, error) {
	return t.matches.ClaimReminder(ctx, matchID, window)
}

// Release clears a claimed flag so a later sweep in the same window may retry.
// It runs even when ctx is already cancelled.
func (t *ReminderTracker) Release(ctx context.Context, matchID string, window models.ReminderWindow) error {
	return t.matches.ReleaseReminder(context.WithoutCancel(ctx), matchID, window)
}
