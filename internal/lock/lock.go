// Package lock provides leases which stop two workers processing the
// same queue at once.
package lock

import (
	"context"
	"sync"
	"time"
)

// A Locker hands out time limited leases by key.
type Locker interface {
	// TryLock attempts to take the lease for key. If the lease is held
	// elsewhere it returns ok=false and no error. The returned release
	// function gives the lease back early.
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// Local is a Locker for a single process.
type Local struct {
	mu     sync.Mutex
	leases map[string]time.Time
}

func (l *Local) TryLock(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.leases == nil {
		l.leases = make(map[string]time.Time)
	}
	now := time.Now()
	if expiry, ok := l.leases[key]; ok && now.Before(expiry) {
		return nil, false, nil
	}
	expiry := now.Add(ttl)
	l.leases[key] = expiry
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.leases[key].Equal(expiry) {
			delete(l.leases, key)
		}
	}, true, nil
}
