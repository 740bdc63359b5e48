// Package keylock serializes read-modify-write sequences per aggregate key
// (a payment request id, a wallet address). Two implementations are
// provided: an in-process lock map and a Redis lease for multi-replica
// deployments.
package keylock

import (
	"context"
	"os"
	"sync"
	"time"
)

// Locker acquires an exclusive lease on key. The returned release function
// is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// Local is an in-process Locker. Entries are reference counted and removed
// once nobody holds or waits for them.
type Local struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	sem  chan struct{}
	refs int
}

func NewLocal() *Local {
	return &Local{entries: make(map[string]*entry)}
}

func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.deref(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.deref(key, e)
		})
	}, nil
}

func (l *Local) deref(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

func (l *Local) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// NewFromEnv returns a Redis-backed Locker when REDIS_URL is set and an
// in-process one otherwise. Redis leases are never extended, so minLease
// must exceed the longest time a caller holds a key; the default lease is
// used when it is longer. The close function releases the Redis client.
func NewFromEnv(ctx context.Context, minLease time.Duration) (Locker, func() error, error) {
	dsn := os.Getenv("REDIS_URL")
	if dsn == "" {
		return NewLocal(), func() error { return nil }, nil
	}
	r, err := DialRedis(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	if minLease > r.ttl {
		r.ttl = minLease
	}
	return r, r.Close, nil
}
