package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/courtnotify/internal/models"
	"github.com/charlesng35/courtnotify/internal/push"
)

func TestDispatcherSendOneRecordsSuccess(t *testing.T) {
	env := newTestEnv(t)
	draft := env.composer.Welcome("u1")

	outcome, err := env.dispatcher.SendOne(context.Background(), "tok-1", draft)
	require.NoError(t, err)
	require.Equal(t, models.NotificationStatusSent, outcome.Status)
	require.Equal(t, "msg-tok-1", outcome.MessageID)

	recs := env.records(t)
	require.Len(t, recs, 1)
	require.Equal(t, outcome.RecordID, recs[0].ID)
	require.Equal(t, KindWelcome, recs[0].Type)
	require.Equal(t, "u1", recs[0].UserID)
	require.Equal(t, "tok-1", recs[0].Token)
	require.Equal(t, models.NotificationStatusSent, recs[0].Status)
	require.NotNil(t, recs[0].SentAt)
	require.Equal(t, "welcome", recs[0].DataMap()["type"])
}

func TestDispatcherSendOneRecordsFailure(t *testing.T) {
	env := newTestEnv(t)
	env.gateway.sendErr = &push.DeliveryError{Reason: push.ReasonInvalidToken, Err: errors.New("unregistered")}

	outcome, err := env.dispatcher.SendOne(context.Background(), "tok-dead", env.composer.Welcome("u1"))
	require.Error(t, err)

	var derr *push.DeliveryError
	require.ErrorAs(t, err, &derr)
	require.Equal(t, push.ReasonInvalidToken, derr.Reason)
	require.Equal(t, models.NotificationStatusFailed, outcome.Status)

	recs := env.records(t)
	require.Len(t, recs, 1)
	require.Equal(t, models.NotificationStatusFailed, recs[0].Status)
	require.NotEmpty(t, recs[0].Error)
	require.Nil(t, recs[0].SentAt)
}

func TestDispatcherSkipsEmptyTargets(t *testing.T) {
	env := newTestEnv(t)

	outcome, err := env.dispatcher.SendOne(context.Background(), " ", env.composer.Welcome("u1"))
	require.NoError(t, err)
	require.True(t, outcome.Skipped)

	outcome, err = env.dispatcher.SendMany(context.Background(), []string{"", " "}, env.composer.Custom("t", "b", nil))
	require.NoError(t, err)
	require.True(t, outcome.Skipped)

	require.Empty(t, env.records(t))
	require.Zero(t, env.gateway.multicastCount())
}

func TestDispatcherSendManyCountsPartialDelivery(t *testing.T) {
	env := newTestEnv(t)
	env.gateway.badTokens["tok-b"] = true
	m := baseMatch()

	outcome, err := env.dispatcher.SendMany(context.Background(), []string{"tok-a", "tok-b", "tok-c", "tok-a"}, env.composer.Reminder(&m, models.ReminderWindow24h))
	require.NoError(t, err)
	require.Equal(t, models.NotificationStatusSent, outcome.Status)
	require.Equal(t, 2, outcome.SuccessCount)
	require.Equal(t, 1, outcome.FailureCount)
	require.Len(t, outcome.Results, 3)

	sent := env.gateway.lastMulticast(t)
	require.Equal(t, []string{"tok-a", "tok-b", "tok-c"}, sent.tokens)
	require.Equal(t, "Match Reminder", sent.msg.Title)

	recs := env.records(t)
	require.Len(t, recs, 1)
	require.Equal(t, "m1", recs[0].MatchID)
	require.True(t, recs[0].Multicast())
	require.Equal(t, 2, recs[0].SuccessCount)
	require.Equal(t, 1, recs[0].FailureCount)
}

func TestDispatcherSplitsLargeMulticasts(t *testing.T) {
	env := newTestEnv(t)
	tokens := make([]string, push.MulticastLimit+1)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("tok-%04d", i)
	}

	outcome, err := env.dispatcher.SendMany(context.Background(), tokens, env.composer.Custom("t", "b", nil))
	require.NoError(t, err)
	require.Equal(t, 2, env.gateway.multicastCount())
	require.Equal(t, push.MulticastLimit+1, outcome.SuccessCount)
	require.Len(t, env.gateway.lastMulticast(t).tokens, 1)

	recs := env.records(t)
	require.Len(t, recs, 1)
	require.Equal(t, push.MulticastLimit+1, recs[0].SuccessCount)
}

func TestDispatcherSendManyTotalFailure(t *testing.T) {
	env := newTestEnv(t)
	env.gateway.multicastErr = errors.New("gateway unavailable")

	outcome, err := env.dispatcher.SendMany(context.Background(), []string{"tok-a", "tok-b"}, env.composer.Custom("t", "b", nil))
	require.Error(t, err)

	var derr *push.DeliveryError
	require.ErrorAs(t, err, &derr)
	require.Equal(t, models.NotificationStatusFailed, outcome.Status)
	require.Equal(t, 2, outcome.FailureCount)

	recs := env.records(t)
	require.Len(t, recs, 1)
	require.Equal(t, models.NotificationStatusFailed, recs[0].Status)
	require.Contains(t, recs[0].Error, "gateway unavailable")
}

func TestDispatcherDeliversPendingIntent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	single := &models.NotificationRecord{Type: "chat_message", Token: "tok-1", Title: "Hi", Body: "There", Status: models.NotificationStatusPending}
	require.NoError(t, single.SetData(map[string]string{"chatId": "c1"}))
	require.NoError(t, env.store.CreateNotification(ctx, single))

	outcome, err := env.dispatcher.DeliverIntent(ctx, single.ID)
	require.NoError(t, err)
	require.Equal(t, models.NotificationStatusSent, outcome.Status)
	require.Len(t, env.gateway.singles, 1)
	require.Equal(t, "c1", env.gateway.singles[0].msg.Data["chatId"])

	multi := &models.NotificationRecord{Type: "announcement", Tokens: []string{"tok-a", "tok-b"}, Title: "News", Body: "Courts reopen", Status: models.NotificationStatusPending}
	require.NoError(t, env.store.CreateNotification(ctx, multi))

	outcome, err = env.dispatcher.DeliverIntent(ctx, multi.ID)
	require.NoError(t, err)
	require.Equal(t, 2, outcome.SuccessCount)

	rec, err := env.store.GetNotification(ctx, multi.ID)
	require.NoError(t, err)
	require.Equal(t, models.NotificationStatusSent, rec.Status)
}

func TestDispatcherIgnoresFinishedIntent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := &models.NotificationRecord{Type: "custom", Token: "tok-1", Title: "Hi", Body: "There", Status: models.NotificationStatusSent}
	require.NoError(t, env.store.CreateNotification(ctx, rec))

	outcome, err := env.dispatcher.DeliverIntent(ctx, rec.ID)
	require.NoError(t, err)
	require.True(t, outcome.Skipped)
	require.Empty(t, env.gateway.singles)
}

func TestDispatcherFailsIntentWithoutTarget(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := &models.NotificationRecord{Type: "custom", Title: "Hi", Body: "There", Status: models.NotificationStatusPending}
	require.NoError(t, env.store.CreateNotification(ctx, rec))

	outcome, err := env.dispatcher.DeliverIntent(ctx, rec.ID)
	require.NoError(t, err)
	require.True(t, outcome.Skipped)

	got, err := env.store.GetNotification(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, models.NotificationStatusFailed, got.Status)
	require.Equal(t, "no delivery target", got.Error)
}

func TestDispatcherUnknownIntent(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.dispatcher.DeliverIntent(context.Background(), "missing")
	require.Error(t, err)
}
