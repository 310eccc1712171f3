package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/courtnotify/internal/database/testutil"
	"github.com/charlesng35/courtnotify/internal/models"
	"github.com/charlesng35/courtnotify/internal/push"
	"github.com/charlesng35/courtnotify/internal/store"
)

type sentMessage struct {
	tokens []string
	msg    push.Message
}

type fakeGateway struct {
	mu           sync.Mutex
	singles      []sentMessage
	multicasts   []sentMessage
	sendErr      error
	multicastErr error
	badTokens    map[string]bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{badTokens: map[string]bool{}}
}

func (g *fakeGateway) Send(_ context.Context, token string, msg push.Message) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sendErr != nil {
		return "", g.sendErr
	}
	g.singles = append(g.singles, sentMessage{tokens: []string{token}, msg: msg})
	return "msg-" + token, nil
}

func (g *fakeGateway) SendMulticast(_ context.Context, tokens []string, msg push.Message) (*push.MulticastResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.multicastErr != nil {
		return nil, g.multicastErr
	}
	g.multicasts = append(g.multicasts, sentMessage{tokens: append([]string(nil), tokens...), msg: msg})

	res := &push.MulticastResult{}
	for _, token := range tokens {
		if g.badTokens[token] {
			res.FailureCount++
			res.Responses = append(res.Responses, push.TokenResult{
				Token: token,
				Err:   &push.DeliveryError{Reason: push.ReasonInvalidToken, Token: token, Err: errors.New("unregistered")},
			})
			continue
		}
		res.SuccessCount++
		res.Responses = append(res.Responses, push.TokenResult{Token: token, MessageID: "msg-" + token})
	}
	return res, nil
}

func (g *fakeGateway) multicastCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.multicasts)
}

func (g *fakeGateway) lastMulticast(t *testing.T) sentMessage {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	require.NotEmpty(t, g.multicasts)
	return g.multicasts[len(g.multicasts)-1]
}

type testEnv struct {
	db         *gorm.DB
	store      *store.GormStore
	gateway    *fakeGateway
	resolver   *RecipientResolver
	composer   *Composer
	dispatcher *Dispatcher
	tracker    *ReminderTracker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	st, err := store.NewGormStore(db)
	require.NoError(t, err)

	gw := newFakeGateway()
	resolver, err := NewRecipientResolver(st, WithFanOut(4), WithLookupBatchSize(2))
	require.NoError(t, err)
	dispatcher, err := NewDispatcher(gw, st, WithSendTimeout(time.Second))
	require.NoError(t, err)
	tracker, err := NewReminderTracker(st)
	require.NoError(t, err)

	return &testEnv{
		db:         db,
		store:      st,
		gateway:    gw,
		resolver:   resolver,
		composer:   NewComposer(time.UTC, ""),
		dispatcher: dispatcher,
		tracker:    tracker,
	}
}

func (e *testEnv) addUser(t *testing.T, id, name, token string) {
	t.Helper()
	require.NoError(t, e.db.Create(&models.User{
		BaseModel:   models.BaseModel{ID: id},
		DisplayName: name,
		FCMToken:    token,
	}).Error)
}

func (e *testEnv) addSubstitute(t *testing.T, id, token string, rating float64, available bool) {
	t.Helper()
	require.NoError(t, e.db.Create(&models.User{
		BaseModel:       models.BaseModel{ID: id},
		FCMToken:        token,
		NTRPRating:      rating,
		SubAvailability: available,
	}).Error)
}

func (e *testEnv) addMatch(t *testing.T, match models.Match) {
	t.Helper()
	match.MatchDate = match.MatchDate.UTC()
	if match.Status == "" {
		match.Status = models.MatchStatusOpen
	}
	require.NoError(t, e.db.Create(&match).Error)
}

func (e *testEnv) match(t *testing.T, id string) *models.Match {
	t.Helper()
	m, err := e.store.GetMatch(context.Background(), id)
	require.NoError(t, err)
	return m
}

func (e *testEnv) records(t *testing.T) []models.NotificationRecord {
	t.Helper()
	var recs []models.NotificationRecord
	require.NoError(t, e.db.Order("created_at ASC").Find(&recs).Error)
	return recs
}

// failingUsers fails lookups for any batch containing a poisoned id.
type failingUsers struct {
	store.Users
	poison string
}

func (f *failingUsers) UsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	for _, id := range ids {
		if id == f.poison {
			return nil, &store.Error{Op: "users by ids", Err: errors.New("connection reset")}
		}
	}
	return f.Users.UsersByIDs(ctx, ids)
}
