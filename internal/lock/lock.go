package lock

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotHeld is returned when releasing a lease that expired or was taken over.
var ErrNotHeld = errors.New("lock: lease not held")

// Lease is a held lock. Release is safe to call once the lease expired.
type Lease interface {
	Key() string
	Release(ctx context.Context) error
}

// Locker hands out expiring leases. Acquire reports false without error when
// another holder owns the key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, bool, error)
}

const defaultLeaseTTL = 5 * time.Minute

func normalizeKey(key string) string {
	key = strings.TrimSpace(key)
	key = strings.ReplaceAll(key, " ", "_")
	return strings.ToLower(key)
}

func chooseTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return defaultLeaseTTL
	}
	return ttl
}
