package dedup

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one set per order under prefix+orderID.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) key(orderID string) string { return r.prefix + orderID }

func (r *RedisStore) Notified(ctx context.Context, orderID, driverID string) (bool, error) {
	return r.client.SIsMember(ctx, r.key(orderID), driverID).Result()
}

func (r *RedisStore) Mark(ctx context.Context, orderID, driverID string, ttl time.Duration) error {
	key := r.key(orderID)
	if err := r.client.SAdd(ctx, key, driverID).Err(); err != nil {
		return err
	}
	return r.client.Expire(ctx, key, ttl).Err()
}
