package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// FailedLoginTracker cuenta fallos de login por clave dentro de una ventana.
// Solo observa: ningun caso de uso bloquea por este contador.
type FailedLoginTracker interface {
	RecordFailure(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

type memoryFailedLoginTracker struct {
	mu     sync.Mutex
	window time.Duration
	hits   map[string][]time.Time
	now    func() time.Time
}

// NewMemoryFailedLoginTracker crea un tracker en memoria.
func NewMemoryFailedLoginTracker(window time.Duration) FailedLoginTracker {
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &memoryFailedLoginTracker{
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

func (t *memoryFailedLoginTracker) RecordFailure(_ context.Context, key string) (int64, error) {
	key = normalizeTrackerKey(key)
	if key == "" {
		return 0, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now().UTC()
	cutoff := now.Add(-t.window)
	t.prune(cutoff)
	kept := append(t.hits[key], now)
	t.hits[key] = kept
	return int64(len(kept)), nil
}

// prune descarta hits vencidos y borra las claves que quedan vacias.
func (t *memoryFailedLoginTracker) prune(cutoff time.Time) {
	for key, entries := range t.hits {
		kept := entries[:0]
		for _, ts := range entries {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		if len(kept) == 0 {
			delete(t.hits, key)
			continue
		}
		t.hits[key] = kept
	}
}

func (t *memoryFailedLoginTracker) Reset(_ context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.hits, normalizeTrackerKey(key))
	return nil
}

const redisFailedLoginScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

type redisFailedLoginTracker struct {
	client redisCounter
	window time.Duration
	prefix string
}

type redisCounter interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

func NewRedisFailedLoginTracker(client *redis.Client, window time.Duration) FailedLoginTracker {
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &redisFailedLoginTracker{
		client: client,
		window: window,
		prefix: "auth:failed-login:",
	}
}

func (t *redisFailedLoginTracker) RecordFailure(ctx context.Context, key string) (int64, error) {
	if t == nil || t.client == nil {
		return 0, nil
	}
	key = normalizeTrackerKey(key)
	if key == "" {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	seconds := int(t.window.Seconds())
	if seconds <= 0 {
		seconds = 900
	}
	return t.client.Eval(ctx, redisFailedLoginScript, []string{t.prefix + key}, seconds).Int64()
}

func (t *redisFailedLoginTracker) Reset(ctx context.Context, key string) error {
	if t == nil || t.client == nil {
		return nil
	}
	key = normalizeTrackerKey(key)
	if key == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return t.client.Del(ctx, t.prefix+key).Err()
}

func normalizeTrackerKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
