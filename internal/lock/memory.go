package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLocker keeps leases in process. It guards a single replica only.
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[string]memoryEntry
	now    func() time.Time
}

type memoryEntry struct {
	token     string
	expiresAt time.Time
}

// NewMemoryLocker constructs an empty in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{leases: make(map[string]memoryEntry), now: time.Now}
}

// Acquire takes the lease when key is free or its previous lease expired.
func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (Lease, bool, error) {
	key = normalizeKey(key)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.leases[key]; ok && now.Before(entry.expiresAt) {
		return nil, false, nil
	}
	token := uuid.NewString()
	l.leases[key] = memoryEntry{token: token, expiresAt: now.Add(chooseTTL(ttl))}
	return &memoryLease{owner: l, key: key, token: token}, true, nil
}

func (l *MemoryLocker) release(key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.leases[key]
	if !ok || entry.token != token {
		return ErrNotHeld
	}
	delete(l.leases, key)
	return nil
}

type memoryLease struct {
	owner *MemoryLocker
	key   string
	token string
}

func (l *memoryLease) Key() string { return l.key }

func (l *memoryLease) Release(context.Context) error {
	return l.owner.release(l.key, l.token)
}
