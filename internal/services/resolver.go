package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/charlesng35/courtnotify/internal/models"
	"github.com/charlesng35/courtnotify/internal/store"
)

const (
	defaultFanOut          = 8
	defaultLookupBatchSize = 100
)

// UserPredicate re-checks a user loaded by a filtered scan.
type UserPredicate func(user *models.User) bool

// ResolverOption customises a RecipientResolver.
type ResolverOption func(*RecipientResolver)

// WithFanOut bounds concurrent lookups.
func WithFanOut(n int) ResolverOption {
	return func(r *RecipientResolver) {
		if n > 0 {
			r.fanOut = n
		}
	}
}

// WithLookupBatchSize sets how many ids a single lookup resolves.
func WithLookupBatchSize(n int) ResolverOption {
	return func(r *RecipientResolver) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// RecipientResolver maps users to deliverable tokens.
type RecipientResolver struct {
	users     store.Users
	fanOut    int
	batchSize int
}

// NewRecipientResolver constructs a resolver reading from users.
func NewRecipientResolver(users store.Users, opts ...ResolverOption) (*RecipientResolver, error) {
	if users == nil {
		return nil, errors.New("recipient resolver: user store is required")
	}
	r := &RecipientResolver{users: users, fanOut: defaultFanOut, batchSize: defaultLookupBatchSize}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Direct resolves the tokens of the given users. Unknown users and users
// without a token are left out. A failed lookup batch does not stop the
// others: the tokens found so far are returned alongside the combined error.
func (r *RecipientResolver) Direct(ctx context.Context, ids []string) ([]string, error) {
	ctx = ensureContext(ctx)
	ids = normaliseIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	var (
		mu     sync.Mutex
		tokens = make(map[string]struct{}, len(ids))
		errs   error
	)

	var g errgroup.Group
	g.SetLimit(r.fanOut)
	for _, batch := range chunk(ids, r.batchSize) {
		g.Go(func() error {
			users, err := r.users.UsersByIDs(ctx, batch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = multierr.Append(errs, err)
				return nil
			}
			for i := range users {
				if users[i].Reachable() {
					tokens[strings.TrimSpace(users[i].FCMToken)] = struct{}{}
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	if errs != nil {
		return sortedKeys(tokens), fmt.Errorf("recipient resolver: direct lookup: %w", errs)
	}
	return sortedKeys(tokens), nil
}

// Filtered scans the user population narrowed by query and collects the
// tokens of users that also satisfy pred.
func (r *RecipientResolver) Filtered(ctx context.Context, query store.UserQuery, pred UserPredicate) ([]string, error) {
	ctx = ensureContext(ctx)
	query.WithToken = true

	tokens := make(map[string]struct{})
	err := r.users.ScanUsers(ctx, query, r.batchSize, func(batch []models.User) error {
		for i := range batch {
			user := &batch[i]
			if !user.Reachable() {
				continue
			}
			if pred != nil && !pred(user) {
				continue
			}
			tokens[strings.TrimSpace(user.FCMToken)] = struct{}{}
		}
		return ctx.Err()
	})
	if err != nil {
		return sortedKeys(tokens), fmt.Errorf("recipient resolver: filtered scan: %w", err)
	}
	return sortedKeys(tokens), nil
}

// SubstituteQuery selects users available as substitutes whose rating lies
// within the match's inclusive bounds. A zero bound leaves that side open.
func SubstituteQuery(match *models.Match) (store.UserQuery, UserPredicate) {
	available := true
	query := store.UserQuery{SubAvailable: &available}
	if match.MinNTRPRating > 0 {
		lo := match.MinNTRPRating
		query.MinRating = &lo
	}
	if match.MaxNTRPRating > 0 {
		hi := match.MaxNTRPRating
		query.MaxRating = &hi
	}

	pred := func(u *models.User) bool {
		if !u.SubAvailability {
			return false
		}
		if query.MinRating != nil && u.NTRPRating < *query.MinRating {
			return false
		}
		if query.MaxRating != nil && u.NTRPRating > *query.MaxRating {
			return false
		}
		return true
	}
	return query, pred
}
