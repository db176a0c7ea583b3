package gate

import (
	"context"
	"sync"
	"time"
)

// CachedResolver wraps a ProfileResolver with TTL-based caching so the
// admin table is not queried on every authorization check.
type CachedResolver[U comparable] struct {
	inner ProfileResolver[U]
	ttl   time.Duration
	now   func() time.Time

	mu    sync.RWMutex
	cache map[U]cacheEntry
}

type cacheEntry struct {
	profile   Profile
	expiresAt time.Time
}

func NewCachedResolver[U comparable](inner ProfileResolver[U], ttl time.Duration) *CachedResolver[U] {
	return &CachedResolver[U]{
		inner: inner,
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[U]cacheEntry),
	}
}

// WithClock replaces the time source, for tests.
func (r *CachedResolver[U]) WithClock(now func() time.Time) *CachedResolver[U] {
	r.now = now
	return r
}

func (r *CachedResolver[U]) Resolve(ctx context.Context, user U) (Profile, error) {
	r.mu.RLock()
	entry, ok := r.cache[user]
	r.mu.RUnlock()
	if ok && r.now().Before(entry.expiresAt) {
		return entry.profile, nil
	}

	profile, err := r.inner.Resolve(ctx, user)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.cache[user] = cacheEntry{profile: profile, expiresAt: r.now().Add(r.ttl)}
	r.mu.Unlock()
	return profile, nil
}

// Invalidate drops one user.
func (r *CachedResolver[U]) Invalidate(user U) {
	r.mu.Lock()
	delete(r.cache, user)
	r.mu.Unlock()
}

// InvalidateAll clears the cache; call it when the admin list changes.
func (r *CachedResolver[U]) InvalidateAll() {
	r.mu.Lock()
	r.cache = make(map[U]cacheEntry)
	r.mu.Unlock()
}
