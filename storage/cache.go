package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskflow/domain"
)

const taskSetCacheKey = "taskflow:taskset:v1"

type refresher interface {
	Refresh(ctx context.Context) (domain.TaskSet, error)
}

// Cache serves the last complete TaskSet from Redis and falls back to the
// aggregator on a miss or any Redis failure.
type Cache struct {
	base  refresher
	redis *redis.Client
	ttl   time.Duration
	log   *log.Logger
}

// NewCache wraps base. A nil client or a zero ttl disables caching.
func NewCache(base refresher, client *redis.Client, ttl time.Duration, logger *log.Logger) *Cache {
	if base == nil {
		panic("storage.NewCache: base is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Cache{base: base, redis: client, ttl: ttl, log: logger}
}

// Refresh returns the cached set when present, otherwise a fresh one.
func (c *Cache) Refresh(ctx context.Context) (domain.TaskSet, error) {
	if ts, ok := c.load(ctx); ok {
		return ts, nil
	}
	return c.Reload(ctx)
}

// Reload bypasses the cache. Sets with warnings are not stored.
func (c *Cache) Reload(ctx context.Context) (domain.TaskSet, error) {
	ts, err := c.base.Refresh(ctx)
	if err != nil {
		return ts, err
	}
	if ts.Complete() {
		c.store(ctx, ts)
	}
	return ts, nil
}

// Evict drops the cached set after a write.
func (c *Cache) Evict(ctx context.Context) {
	if c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, taskSetCacheKey).Err(); err != nil {
		c.log.WithError(err).Warn("task set eviction failed")
	}
}

func (c *Cache) load(ctx context.Context) (domain.TaskSet, bool) {
	if c.redis == nil || c.ttl == 0 {
		return domain.TaskSet{}, false
	}
	data, err := c.redis.Get(ctx, taskSetCacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.WithError(err).Debug("task set cache read failed")
			_ = c.redis.Del(ctx, taskSetCacheKey).Err()
		}
		return domain.TaskSet{}, false
	}
	var ts domain.TaskSet
	if err := sonic.Unmarshal(data, &ts); err != nil {
		c.log.WithError(err).Debug("task set cache entry corrupt")
		_ = c.redis.Del(ctx, taskSetCacheKey).Err()
		return domain.TaskSet{}, false
	}
	return ts, true
}

func (c *Cache) store(ctx context.Context, ts domain.TaskSet) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(ts)
	if err != nil {
		c.log.WithError(err).Debug("task set encoding failed")
		return
	}
	if err := c.redis.Set(ctx, taskSetCacheKey, data, c.ttl).Err(); err != nil {
		c.log.WithError(err).Debug("task set cache write failed")
	}
}
