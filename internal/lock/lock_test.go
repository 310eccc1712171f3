package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestMemoryLockerExcludesConcurrentHolders(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	lease, ok, err := locker.Acquire(ctx, "sweep reminders", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "sweep_reminders", lease.Key())

	_, ok, err = locker.Acquire(ctx, "sweep reminders", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, lease.Release(ctx))
	require.ErrorIs(t, lease.Release(ctx), ErrNotHeld)

	_, ok, err = locker.Acquire(ctx, "sweep reminders", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMemoryLockerExpiredLeaseCanBeTaken(t *testing.T) {
	locker := NewMemoryLocker()
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	locker.now = func() time.Time { return now }
	ctx := context.Background()

	stale, ok, err := locker.Acquire(ctx, "status", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, err = locker.Acquire(ctx, "status", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.ErrorIs(t, stale.Release(ctx), ErrNotHeld)
}

// fakeRedis implements the few commands the locker issues.
type fakeRedis struct {
	redis.UniversalClient

	mu   sync.Mutex
	data map[string]string
	fail error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return redis.NewBoolResult(false, f.fail)
	}
	if _, exists := f.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) EvalSha(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data[keys[0]] == args[0].(string) {
		delete(f.data, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestRedisLockerAcquireAndRelease(t *testing.T) {
	client := newFakeRedis()
	locker, err := NewRedisLocker(client)
	require.NoError(t, err)
	ctx := context.Background()

	lease, ok, err := locker.Acquire(ctx, "Reminders", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "courtnotify:lock:reminders", lease.Key())

	_, ok, err = locker.Acquire(ctx, "reminders", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, lease.Release(ctx))
	require.Empty(t, client.data)
	require.ErrorIs(t, lease.Release(ctx), ErrNotHeld)
}

func TestRedisLockerDoesNotReleaseForeignLease(t *testing.T) {
	client := newFakeRedis()
	locker, err := NewRedisLocker(client)
	require.NoError(t, err)
	ctx := context.Background()

	lease, ok, err := locker.Acquire(ctx, "retention", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	client.data[lease.Key()] = "someone-else"
	require.ErrorIs(t, lease.Release(ctx), ErrNotHeld)
	require.Equal(t, "someone-else", client.data[lease.Key()])
}

func TestRedisLockerSurfacesBackendErrors(t *testing.T) {
	client := newFakeRedis()
	client.fail = errors.New("connection refused")
	locker, err := NewRedisLocker(client)
	require.NoError(t, err)

	_, ok, err := locker.Acquire(context.Background(), "status", time.Minute)
	require.Error(t, err)
	require.False(t, ok)
}

func TestNewRedisLockerRequiresClient(t *testing.T) {
	_, err := NewRedisLocker(nil)
	require.Error(t, err)
}

func TestNewRedisClientRequiresAddress(t *testing.T) {
	_, err := NewRedisClient(context.Background(), RedisConfig{Address: "  "})
	require.Error(t, err)
}
