// Package store defines the record-store contracts used by the notification
// pipeline and a gorm-backed implementation.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/charlesng35/courtnotify/internal/models"
)

// ErrNotFound is returned when a single-record read finds nothing.
var ErrNotFound = errors.New("record not found")

// Error wraps a failed store operation with its name.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return "store: " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// Matches reads matches and writes the flags and statuses owned by the sweeps.
type Matches interface {
	GetMatch(ctx context.Context, id string) (*models.Match, error)
	// UpcomingMatches returns matches in one of statuses starting within [from, to].
	UpcomingMatches(ctx context.Context, statuses []models.MatchStatus, from, to time.Time) ([]models.Match, error)
	// StartedMatches returns matches in one of statuses that started before the instant.
	StartedMatches(ctx context.Context, statuses []models.MatchStatus, before time.Time) ([]models.Match, error)
	// ClaimReminder sets the window flag only if it is still unset and reports
	// whether this caller won the claim.
	ClaimReminder(ctx context.Context, matchID string, window models.ReminderWindow) (bool, error)
	// ReleaseReminder clears a flag set by a claim whose send did not happen.
	ReleaseReminder(ctx context.Context, matchID string, window models.ReminderWindow) error
	// CompleteMatches moves the given matches to completed in one transaction,
	// touching only rows that are still non-terminal.
	CompleteMatches(ctx context.Context, ids []string) (int64, error)
}

// UserQuery narrows a user scan at the store level.
type UserQuery struct {
	SubAvailable *bool
	MinRating    *float64
	MaxRating    *float64
	// WithToken excludes users without a delivery token.
	WithToken bool
}

// Users is read-only access to user profiles.
type Users interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	UsersByIDs(ctx context.Context, ids []string) ([]models.User, error)
	// ScanUsers streams matching users to fn in batches of batchSize.
	ScanUsers(ctx context.Context, query UserQuery, batchSize int, fn func([]models.User) error) error
}

// NotificationUpdate carries the terminal state of a dispatch.
type NotificationUpdate struct {
	Status       models.NotificationStatus
	Error        string
	SuccessCount int
	FailureCount int
	SentAt       *time.Time
}

// Notifications persists the dispatch audit trail.
type Notifications interface {
	CreateNotification(ctx context.Context, rec *models.NotificationRecord) error
	GetNotification(ctx context.Context, id string) (*models.NotificationRecord, error)
	// FinishNotification applies update only while the record is pending and
	// reports whether it did.
	FinishNotification(ctx context.Context, id string, update NotificationUpdate) (bool, error)
	// PurgeNotifications deletes at most limit records created before cutoff.
	PurgeNotifications(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}
