// Package lookup serves the employee and training catalog lists used to
// autocomplete the training form, behind an expiring cache.
package lookup

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/diewo77/training-tracker/internal/config"
)

// Backend stores encoded lookup lists.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// NewBackend returns the backend selected by cfg.Backend.
func NewBackend(ctx context.Context, cfg config.CacheConfig) (Backend, error) {
	if cfg.Backend == "redis" {
		return NewRedisBackend(ctx, cfg)
	}
	return NewMemoryBackend(time.Now), nil
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// MemoryBackend keeps entries in process.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryBackend(now func() time.Time) *MemoryBackend {
	if now == nil {
		now = time.Now
	}
	return &MemoryBackend{entries: map[string]memoryEntry{}, now: now}
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		m.mu.Lock()
		// A Set may have replaced the entry since the read lock was released.
		if cur, ok := m.entries[key]; ok && cur.expires.Equal(e.expires) && !m.now().Before(cur.expires) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set stores value. A zero ttl never expires.
func (m *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	m.mu.Unlock()
	return nil
}

const redisPrefix = "training-tracker.lookup."

// RedisBackend shares the cache between server processes.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend connects and pings the server.
func NewRedisBackend(ctx context.Context, cfg config.CacheConfig) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisHost + ":" + strconv.Itoa(cfg.RedisPort),
		Username: cfg.RedisUser,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "can't ping redis")
	}
	return &RedisBackend{client: client}, nil
}

// NewRedisBackendWithClient wraps an existing client.
func NewRedisBackendWithClient(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, redisPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "redis get")
	}
	return b, true, nil
}

func (r *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errors.Wrap(r.client.Set(ctx, redisPrefix+key, value, ttl).Err(), "redis set")
}

func (r *RedisBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = redisPrefix + k
	}
	return errors.Wrap(r.client.Del(ctx, prefixed...).Err(), "redis del")
}

func (r *RedisBackend) Close() error { return r.client.Close() }
