package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/ArmandBENETEAU/fiscal-crypt/src/logger"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/processors"
)

const (
	ckRate = "rate:%s:%s:%d" // source, pair, hour start

	CacheCleanupInterval = 30 * time.Minute
)

// MemoryRateCache keeps rates for the life of the process.
type MemoryRateCache struct {
	c *cache.Cache
}

func NewMemoryRateCache(ttl time.Duration) *MemoryRateCache {
	return &MemoryRateCache{c: cache.New(ttl, CacheCleanupInterval)}
}

var _ RateCache = (*MemoryRateCache)(nil)

func (m *MemoryRateCache) Get(_ context.Context, key string) (decimal.Decimal, bool, error) {
	v, found := m.c.Get(key)
	if !found {
		return decimal.Zero, false, nil
	}
	return v.(decimal.Decimal), true, nil
}

func (m *MemoryRateCache) Set(_ context.Context, key string, rate decimal.Decimal) error {
	m.c.Set(key, rate, cache.DefaultExpiration)
	return nil
}

// RedisRateCache shares fetched rates between runs and machines.
type RedisRateCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRateCache(addr, password string, db int, ttl time.Duration) *RedisRateCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisRateCache{client: client, ttl: ttl}
}

var _ RateCache = (*RedisRateCache)(nil)

func (r *RedisRateCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRateCache) Get(ctx context.Context, key string) (decimal.Decimal, bool, error) {
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, err
	}
	rate, err := decimal.NewFromString(data)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to parse cached rate %s: %w", key, err)
	}
	return rate, true, nil
}

func (r *RedisRateCache) Set(ctx context.Context, key string, rate decimal.Decimal) error {
	return r.client.Set(ctx, key, rate.String(), r.ttl).Err()
}

func (r *RedisRateCache) Close() error {
	return r.client.Close()
}

// CachedPriceSource memoizes a price source per hour bucket. Only closed
// hours are cached since the rate of the current hour still moves.
type CachedPriceSource struct {
	source processors.PriceSource
	cache  RateCache
	now    func() time.Time
}

func NewCachedPriceSource(source processors.PriceSource, rateCache RateCache) *CachedPriceSource {
	return &CachedPriceSource{source: source, cache: rateCache, now: time.Now}
}

var _ processors.PriceSource = (*CachedPriceSource)(nil)

func (c *CachedPriceSource) Name() string { return c.source.Name() }

func (c *CachedPriceSource) RateOf(ctx context.Context, pair string, t time.Time) (decimal.Decimal, error) {
	start, end := processors.HourBucket(t)
	key := fmt.Sprintf(ckRate, c.source.Name(), pair, start.Unix())

	if rate, found, err := c.cache.Get(ctx, key); err != nil {
		logger.L.Warn("Rate cache read failed", "key", key, "error", err)
	} else if found {
		logger.L.Debug("Cache hit for rate", "key", key)
		return rate, nil
	}

	rate, err := c.source.RateOf(ctx, pair, t)
	if err != nil {
		return decimal.Zero, err
	}
	if !end.After(c.now()) {
		if err := c.cache.Set(ctx, key, rate); err != nil {
			logger.L.Warn("Rate cache write failed", "key", key, "error", err)
		}
	}
	return rate, nil
}
