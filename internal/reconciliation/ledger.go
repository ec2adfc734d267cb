package reconciliation

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Ledger remembers findings already written to the store so a repeat run
// can skip them without a write. A key is marked only after its annotation
// is stored; the store's unique dedupe key stays the authority.
type Ledger interface {
	// Seen reports whether key was marked.
	Seen(ctx context.Context, key string) (bool, error)
	// Mark records key once its annotation exists.
	Mark(ctx context.Context, key string) error
}

const ledgerKeyPrefix = "klok:recon:flagged:"

// RedisLedger keeps marked keys in Redis, shared by all instances.
type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLedger expires marks after ttl; zero keeps them forever.
func NewRedisLedger(client *redis.Client, ttl time.Duration) *RedisLedger {
	return &RedisLedger{client: client, ttl: ttl}
}

func (l *RedisLedger) Seen(ctx context.Context, key string) (bool, error) {
	n, err := l.client.Exists(ctx, ledgerKeyPrefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (l *RedisLedger) Mark(ctx context.Context, key string) error {
	return l.client.Set(ctx, ledgerKeyPrefix+key, "1", l.ttl).Err()
}

// MemoryLedger is the single-process ledger.
type MemoryLedger struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{keys: make(map[string]struct{})}
}

func (l *MemoryLedger) Seen(_ context.Context, key string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.keys[key]
	return ok, nil
}

func (l *MemoryLedger) Mark(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys[key] = struct{}{}
	return nil
}
