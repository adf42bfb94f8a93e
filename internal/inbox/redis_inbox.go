package inbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/chauffeur-dispatch/internal/models"
)

// RedisInbox stores each driver's queue as a Redis list keyed by
// driver id, with the TTL refreshed on every push.
type RedisInbox struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisInbox(client *redis.Client, prefix string, ttl time.Duration) *RedisInbox {
	return &RedisInbox{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisInbox) key(driverID string) string { return r.prefix + driverID }

func (r *RedisInbox) Push(ctx context.Context, driverID string, notice models.OrderNotice) error {
	b, err := json.Marshal(notice)
	if err != nil {
		return err
	}
	key := r.key(driverID)
	if err := r.client.LPush(ctx, key, b).Err(); err != nil {
		return err
	}
	return r.client.Expire(ctx, key, r.ttl).Err()
}

func (r *RedisInbox) DrainAll(ctx context.Context, driverID string) ([]models.OrderNotice, error) {
	key := r.key(driverID)
	size, err := r.client.LLen(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.OrderNotice, 0, size)
	for i := int64(0); i < size; i++ {
		content, err := r.client.LPop(ctx, key).Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return out, err
		}
		var n models.OrderNotice
		if err := json.Unmarshal([]byte(content), &n); err != nil {
			// skip a corrupt entry rather than wedge the poll loop
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (r *RedisInbox) Clear(ctx context.Context, driverID string) error {
	return r.client.Del(ctx, r.key(driverID)).Err()
}
