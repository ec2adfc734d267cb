package reconciliation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"klok/pkg/platform/sentinel"
)

// Locker guards a run against a concurrent run elsewhere. Acquire returns
// sentinel.ErrAlreadyUsed when another holder has the lock.
type Locker interface {
	Acquire(ctx context.Context) (release func(context.Context) error, err error)
}

const lockKey = "klok:recon:lock"

// unlockScript deletes the lock only if this holder still owns it.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock is a single-key lease. The TTL bounds how long a crashed holder
// blocks other instances.
type RedisLock struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLock(client *redis.Client, ttl time.Duration) *RedisLock {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisLock{client: client, ttl: ttl}
}

func (l *RedisLock) Acquire(ctx context.Context) (func(context.Context) error, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire reconciliation lock: %w", err)
	}
	if !ok {
		return nil, sentinel.ErrAlreadyUsed
	}
	return func(ctx context.Context) error {
		if err := unlockScript.Run(ctx, l.client, []string{lockKey}, token).Err(); err != nil {
			return fmt.Errorf("release reconciliation lock: %w", err)
		}
		return nil
	}, nil
}

// LocalLock serializes runs within one process.
type LocalLock struct {
	mu sync.Mutex
}

func (l *LocalLock) Acquire(context.Context) (func(context.Context) error, error) {
	if !l.mu.TryLock() {
		return nil, sentinel.ErrAlreadyUsed
	}
	return func(context.Context) error {
		l.mu.Unlock()
		return nil
	}, nil
}
