package accept

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker is a mutual-exclusion primitive with a bounded acquire wait
// and a bounded hold (lease). The lease auto-releases a lock whose
// holder crashed, so the arbitration path can never deadlock.
type Locker interface {
	// Acquire blocks up to wait for the lock on key, holding it for at
	// most lease. It returns a release func and whether the lock was
	// obtained. Release is safe to call after lease expiry.
	Acquire(ctx context.Context, key string, wait, lease time.Duration) (release func(), ok bool, err error)
}

const acquireRetryDelay = 50 * time.Millisecond

// releaseScript deletes the lock only if we still hold it, so a
// late release never clobbers someone else's lease.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// RedisLocker implements Locker with SET NX EX plus a compare-and-delete
// release script.
type RedisLocker struct {
	client *redis.Client
	prefix string
}

func NewRedisLocker(client *redis.Client, prefix string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, wait, lease time.Duration) (func(), bool, error) {
	fullKey := l.prefix + key
	token := newToken()
	deadline := time.Now().Add(wait)
	for {
		ok, err := l.client.SetNX(ctx, fullKey, token, lease).Result()
		if err != nil {
			return nil, false, err
		}
		if ok {
			release := func() {
				rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_, _ = releaseScript.Run(rctx, l.client, []string{fullKey}, token).Result()
			}
			return release, true, nil
		}
		if time.Now().After(deadline) {
			return nil, false, nil
		}
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(acquireRetryDelay):
		}
	}
}

// MemoryLocker is the in-process Locker used by tests and single-node runs.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]memLock
	now  func() time.Time
}

type memLock struct {
	token   string
	expires time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]memLock), now: time.Now}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string, wait, lease time.Duration) (func(), bool, error) {
	token := newToken()
	deadline := l.now().Add(wait)
	for {
		if l.tryAcquire(key, token, lease) {
			release := func() { l.release(key, token) }
			return release, true, nil
		}
		if l.now().After(deadline) {
			return nil, false, nil
		}
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(acquireRetryDelay / 10):
		}
	}
}

func (l *MemoryLocker) tryAcquire(key, token string, lease time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	cur, ok := l.held[key]
	if ok && l.now().Before(cur.expires) {
		return false
	}
	l.held[key] = memLock{token: token, expires: l.now().Add(lease)}
	return true
}

func (l *MemoryLocker) release(key, token string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.held[key]; ok && cur.token == token {
		delete(l.held, key)
	}
}

func newToken() string { b := make([]byte, 16); _, _ = rand.Read(b); return hex.EncodeToString(b) }
