package accept

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Marker is the "still awaiting a driver" existence hint checked by
// acceptance attempts before and after taking the order lock.
type Marker interface {
	Set(ctx context.Context, orderID string, ttl time.Duration) error
	Exists(ctx context.Context, orderID string) (bool, error)
	Delete(ctx context.Context, orderID string) error
}

// MemoryMarker is the in-process Marker with lazy expiry.
type MemoryMarker struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryMarker() *MemoryMarker {
	return &MemoryMarker{entries: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryMarker) Set(ctx context.Context, orderID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[orderID] = m.now().Add(ttl)
	return nil
}

func (m *MemoryMarker) Exists(ctx context.Context, orderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	expires, ok := m.entries[orderID]
	if !ok {
		return false, nil
	}
	if m.now().After(expires) {
		delete(m.entries, orderID)
		return false, nil
	}
	return true, nil
}

func (m *MemoryMarker) Delete(ctx context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, orderID)
	return nil
}

// RedisMarker stores one key per waiting order.
type RedisMarker struct {
	client *redis.Client
	prefix string
}

func NewRedisMarker(client *redis.Client, prefix string) *RedisMarker {
	return &RedisMarker{client: client, prefix: prefix}
}

func (r *RedisMarker) key(orderID string) string { return r.prefix + orderID }

func (r *RedisMarker) Set(ctx context.Context, orderID string, ttl time.Duration) error {
	return r.client.Set(ctx, r.key(orderID), "1", ttl).Err()
}

func (r *RedisMarker) Exists(ctx context.Context, orderID string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(orderID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisMarker) Delete(ctx context.Context, orderID string) error {
	return r.client.Del(ctx, r.key(orderID)).Err()
}
