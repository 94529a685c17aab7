package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"fastpay-ledger/internal/domain/currency"

	"github.com/redis/go-redis/v9"
)

const ratesKeyPrefix = "rates:"

// RedisRates stores rate tables as JSON under rates:<BASE>, expiring with the key TTL.
type RedisRates struct{ rdb *redis.Client }

func NewRedisRates(rdb *redis.Client) *RedisRates { return &RedisRates{rdb: rdb} }

func (c *RedisRates) Get(ctx context.Context, base string) (currency.Rates, bool, error) {
	raw, err := c.rdb.Get(ctx, ratesKeyPrefix+base).Bytes()
	if errors.Is(err, redis.Nil) {
		return currency.Rates{}, false, nil
	}
	if err != nil {
		return currency.Rates{}, false, err
	}
	var r currency.Rates
	if err := json.Unmarshal(raw, &r); err != nil {
		return currency.Rates{}, false, err
	}
	return r, true, nil
}

func (c *RedisRates) Set(ctx context.Context, r currency.Rates, ttl time.Duration) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, ratesKeyPrefix+r.Base, raw, ttl).Err()
}

// MemoryRates is the single-process variant used when Redis is not configured.
type MemoryRates struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	rates   currency.Rates
	expires time.Time
}

func NewMemoryRates(now func() time.Time) *MemoryRates {
	if now == nil {
		now = time.Now
	}
	return &MemoryRates{now: now, entries: map[string]memoryEntry{}}
}

func (c *MemoryRates) Get(_ context.Context, base string) (currency.Rates, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[base]
	if !ok || !c.now().Before(e.expires) {
		delete(c.entries, base)
		return currency.Rates{}, false, nil
	}
	return e.rates, true, nil
}

func (c *MemoryRates) Set(_ context.Context, r currency.Rates, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[r.Base] = memoryEntry{rates: r, expires: c.now().Add(ttl)}
	return nil
}
