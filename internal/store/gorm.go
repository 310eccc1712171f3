package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/courtnotify/internal/models"
)

// GormStore implements Matches, Users and Notifications on a relational database.
type GormStore struct {
	db           *gorm.DB
	queryTimeout time.Duration
}

// Option customises a GormStore.
type Option func(*GormStore)

// WithQueryTimeout bounds every store call. Zero disables the bound.
func WithQueryTimeout(d time.Duration) Option {
	return func(s *GormStore) {
		s.queryTimeout = d
	}
}

// NewGormStore constructs a store backed by db.
func NewGormStore(db *gorm.DB, opts ...Option) (*GormStore, error) {
	if db == nil {
		return nil, errors.New("store: db is required")
	}
	s := &GormStore{db: db, queryTimeout: 10 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *GormStore) session(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	cancel := context.CancelFunc(func() {})
	if s.queryTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.queryTimeout)
	}
	return s.db.WithContext(ctx), cancel
}

// GetMatch loads a single match.
func (s *GormStore) GetMatch(ctx context.Context, id string) (*models.Match, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	var match models.Match
	if err := db.Take(&match, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, wrap("get match", ErrNotFound)
		}
		return nil, wrap("get match", err)
	}
	return &match, nil
}

// UpcomingMatches returns matches starting within [from, to], earliest first.
func (s *GormStore) UpcomingMatches(ctx context.Context, statuses []models.MatchStatus, from, to time.Time) ([]models.Match, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	var matches []models.Match
	err := db.
		Where("status IN ?", statuses).
		Where("match_date >= ? AND match_date <= ?", from.UTC(), to.UTC()).
		Order("match_date ASC").
		Find(&matches).Error
	if err != nil {
		return nil, wrap("upcoming matches", err)
	}
	return matches, nil
}

// StartedMatches returns matches that started before the given instant.
func (s *GormStore) StartedMatches(ctx context.Context, statuses []models.MatchStatus, before time.Time) ([]models.Match, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	var matches []models.Match
	err := db.
		Where("status IN ?", statuses).
		Where("match_date < ?", before.UTC()).
		Order("match_date ASC").
		Find(&matches).Error
	if err != nil {
		return nil, wrap("started matches", err)
	}
	return matches, nil
}

// ClaimReminder flips the window flag from false to true. Only one concurrent
// caller observes a row change, so only one caller sends.
func (s *GormStore) ClaimReminder(ctx context.Context, matchID string, window models.ReminderWindow) (bool, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	column := window.Column()
	res := db.Model(&models.Match{}).
		Where("id = ?", matchID).
		Where(column+" = ?", false).
		Where("status IN ?", models.NonTerminalMatchStatuses).
		Update(column, true)
	if res.Error != nil {
		return false, wrap("claim reminder", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ReleaseReminder clears the window flag.
func (s *GormStore) ReleaseReminder(ctx context.Context, matchID string, window models.ReminderWindow) error {
	db, cancel := s.session(ctx)
	defer cancel()

	column := window.Column()
	err := db.Model(&models.Match{}).
		Where("id = ?", matchID).
		Update(column, false).Error
	return wrap("release reminder", err)
}

// CompleteMatches marks the still non-terminal matches among ids as completed.
func (s *GormStore) CompleteMatches(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	db, cancel := s.session(ctx)
	defer cancel()

	var updated int64
	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Match{}).
			Where("id IN ?", ids).
			Where("status IN ?", models.NonTerminalMatchStatuses).
			Update("status", models.MatchStatusCompleted)
		if res.Error != nil {
			return res.Error
		}
		updated = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, wrap("complete matches", err)
	}
	return updated, nil
}

// GetUser loads a single user.
func (s *GormStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	var user models.User
	if err := db.Take(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, wrap("get user", ErrNotFound)
		}
		return nil, wrap("get user", err)
	}
	return &user, nil
}

// UsersByIDs returns the users that exist among ids. Unknown ids are skipped.
func (s *GormStore) UsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	db, cancel := s.session(ctx)
	defer cancel()

	var users []models.User
	if err := db.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, wrap("users by ids", err)
	}
	return users, nil
}

// ScanUsers walks the filtered user population in primary key order.
func (s *GormStore) ScanUsers(ctx context.Context, query UserQuery, batchSize int, fn func([]models.User) error) error {
	if batchSize <= 0 {
		batchSize = 500
	}
	db, cancel := s.session(ctx)
	defer cancel()

	q := db.Model(&models.User{})
	if query.SubAvailable != nil {
		q = q.Where("sub_availability = ?", *query.SubAvailable)
	}
	if query.MinRating != nil {
		q = q.Where("ntrp_rating >= ?", *query.MinRating)
	}
	if query.MaxRating != nil {
		q = q.Where("ntrp_rating <= ?", *query.MaxRating)
	}
	if query.WithToken {
		q = q.Where("fcm_token IS NOT NULL AND fcm_token <> ''")
	}

	var batch []models.User
	res := q.FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
		return fn(batch)
	})
	return wrap("scan users", res.Error)
}

// CreateNotification inserts a dispatch record.
func (s *GormStore) CreateNotification(ctx context.Context, rec *models.NotificationRecord) error {
	db, cancel := s.session(ctx)
	defer cancel()

	if rec.Status == "" {
		rec.Status = models.NotificationStatusPending
	}
	return wrap("create notification", db.Create(rec).Error)
}

// GetNotification loads a single dispatch record.
func (s *GormStore) GetNotification(ctx context.Context, id string) (*models.NotificationRecord, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	var rec models.NotificationRecord
	if err := db.Take(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, wrap("get notification", ErrNotFound)
		}
		return nil, wrap("get notification", err)
	}
	return &rec, nil
}

// FinishNotification records the terminal state of a pending record.
func (s *GormStore) FinishNotification(ctx context.Context, id string, update NotificationUpdate) (bool, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	res := db.Model(&models.NotificationRecord{}).
		Where("id = ? AND status = ?", id, models.NotificationStatusPending).
		Updates(map[string]any{
			"status":        update.Status,
			"error":         update.Error,
			"success_count": update.SuccessCount,
			"failure_count": update.FailureCount,
			"sent_at":       update.SentAt,
		})
	if res.Error != nil {
		return false, wrap("finish notification", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// PurgeNotifications removes one bounded chunk of expired records atomically.
func (s *GormStore) PurgeNotifications(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	if limit <= 0 {
		limit = 500
	}
	db, cancel := s.session(ctx)
	defer cancel()

	var deleted int64
	err := db.Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&models.NotificationRecord{}).
			Where("created_at < ?", cutoff.UTC()).
			Order("created_at ASC").
			Limit(limit).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		res := tx.Where("id IN ?", ids).Delete(&models.NotificationRecord{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, wrap("purge notifications", err)
	}
	return deleted, nil
}
