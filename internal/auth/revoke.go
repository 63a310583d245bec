package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Revoker stores tombstones for remote identities that were logged out locally,
// so a lingering provider session is not re-adopted. Each tombstone remembers
// when it was written.
type Revoker interface {
	Revoke(ctx context.Context, key string, ttl time.Duration) error
	IsRevoked(ctx context.Context, key string) (bool, error)
	RevokedAt(ctx context.Context, key string) (time.Time, bool, error)
	Clear(ctx context.Context, key string) error
}

type revocation struct {
	at    time.Time
	until time.Time
}

type MemoryRevoker struct {
	mu    sync.Mutex
	items map[string]revocation
	now   func() time.Time
}

func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{items: make(map[string]revocation), now: time.Now}
}

func (m *MemoryRevoker) Revoke(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.items[key] = revocation{at: now, until: now.Add(ttl)}
	return nil
}

func (m *MemoryRevoker) IsRevoked(ctx context.Context, key string) (bool, error) {
	_, ok, err := m.RevokedAt(ctx, key)
	return ok, err
}

func (m *MemoryRevoker) RevokedAt(_ context.Context, key string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[key]
	if !ok {
		return time.Time{}, false, nil
	}
	if !m.now().Before(item.until) {
		delete(m.items, key)
		return time.Time{}, false, nil
	}
	return item.at, true, nil
}

func (m *MemoryRevoker) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

const redisRevokePrefix = "hireloop:revoked:"

// RedisRevoker keeps tombstones as keys holding the unix second of the revocation.
type RedisRevoker struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisRevoker(client *redis.Client) *RedisRevoker {
	return &RedisRevoker{client: client, now: time.Now}
}

func (r *RedisRevoker) Revoke(ctx context.Context, key string, ttl time.Duration) error {
	at := strconv.FormatInt(r.now().Unix(), 10)
	if err := r.client.Set(ctx, redisRevokePrefix+key, at, ttl).Err(); err != nil {
		return fmt.Errorf("revoke %s: %w", key, err)
	}
	return nil
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, redisRevokePrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation %s: %w", key, err)
	}
	return n > 0, nil
}

func (r *RedisRevoker) RevokedAt(ctx context.Context, key string) (time.Time, bool, error) {
	val, err := r.client.Get(ctx, redisRevokePrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("check revocation %s: %w", key, err)
	}

	sec, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse revocation %s: %w", key, err)
	}
	return time.Unix(sec, 0), true, nil
}

func (r *RedisRevoker) Clear(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, redisRevokePrefix+key).Err(); err != nil {
		return fmt.Errorf("clear revocation %s: %w", key, err)
	}
	return nil
}
