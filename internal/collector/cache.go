package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/newthinker/bigthing/internal/core"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CacheConfig controls the Redis read-through cache.
type CacheConfig struct {
	Prefix string
	TTL    time.Duration
}

// Cached serves fetches from Redis when the same symbol was already pulled
// on the current day. Redis failures degrade to a direct fetch.
type Cached struct {
	next   Provider
	rdb    redis.Cmdable
	cfg    CacheConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewCached wraps next with a Redis cache.
func NewCached(next Provider, rdb redis.Cmdable, cfg CacheConfig, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "bigthing:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 12 * time.Hour
	}
	return &Cached{next: next, rdb: rdb, cfg: cfg, logger: logger, now: time.Now}
}

func (c *Cached) Name() string { return c.next.Name() }

func (c *Cached) FetchSeries(ctx context.Context, symbol string, lookback int) (core.PriceSeries, error) {
	key := c.key("series", symbol, fmt.Sprint(lookback))

	var s core.PriceSeries
	if c.get(ctx, key, &s) {
		return s, nil
	}
	s, err := c.next.FetchSeries(ctx, symbol, lookback)
	if err != nil {
		return s, err
	}
	c.set(ctx, key, s)
	return s, nil
}

func (c *Cached) FetchFundamentals(ctx context.Context, symbol string) (*core.Fundamental, error) {
	key := c.key("fund", symbol)

	var f core.Fundamental
	if c.get(ctx, key, &f) {
		return &f, nil
	}
	fp, err := c.next.FetchFundamentals(ctx, symbol)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, fp)
	return fp, nil
}

func (c *Cached) key(kind, symbol string, extra ...string) string {
	k := c.cfg.Prefix + kind + ":" + symbol
	for _, e := range extra {
		k += ":" + e
	}
	return k + ":" + c.now().UTC().Format("2006-01-02")
}

func (c *Cached) get(ctx context.Context, key string, dst any) bool {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		c.logger.Warn("cache entry corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *Cached) set(ctx context.Context, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, b, c.cfg.TTL).Err(); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}
