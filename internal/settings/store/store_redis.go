package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"landtrust/internal/platform/metrics"
	"landtrust/internal/settings/models"
)

const cacheKeyPrefix = "landtrust:setting:"

// Backend is the durable store behind the cache.
type Backend interface {
	Get(ctx context.Context, key string) (*models.Setting, error)
	Upsert(ctx context.Context, setting *models.Setting) error
}

// CachedStore is a read-through Redis cache in front of a Backend. Only found
// settings are cached. Redis failures degrade to backend reads.
type CachedStore struct {
	backend Backend
	client  redis.Cmdable
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type CacheOption func(*CachedStore)

func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *CachedStore) {
		c.logger = logger
	}
}

func WithCacheMetrics(m *metrics.Metrics) CacheOption {
	return func(c *CachedStore) {
		c.metrics = m
	}
}

func NewCached(backend Backend, client redis.Cmdable, ttl time.Duration, opts ...CacheOption) *CachedStore {
	c := &CachedStore{backend: backend, client: client, ttl: ttl, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CachedStore) Get(ctx context.Context, key string) (*models.Setting, error) {
	raw, err := c.client.Get(ctx, cacheKeyPrefix+key).Bytes()
	switch {
	case err == nil:
		var setting models.Setting
		if jsonErr := json.Unmarshal(raw, &setting); jsonErr == nil {
			c.count("hit")
			return &setting, nil
		}
		c.count("error")
	case errors.Is(err, redis.Nil):
		c.count("miss")
	default:
		c.count("error")
		c.logger.WarnContext(ctx, "settings cache read failed", "key", key, "error", err)
	}

	setting, err := c.backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if encoded, jsonErr := json.Marshal(setting); jsonErr == nil {
		if setErr := c.client.Set(ctx, cacheKeyPrefix+key, encoded, c.ttl).Err(); setErr != nil {
			c.logger.WarnContext(ctx, "settings cache write failed", "key", key, "error", setErr)
		}
	}
	return setting, nil
}

// Upsert writes through to the backend and drops the cached entry. A reader
// racing an uncommitted write can re-cache the old value for at most one TTL.
func (c *CachedStore) Upsert(ctx context.Context, setting *models.Setting) error {
	if err := c.backend.Upsert(ctx, setting); err != nil {
		return err
	}
	c.Invalidate(ctx, setting.Key)
	return nil
}

// Invalidate removes a key from the cache.
func (c *CachedStore) Invalidate(ctx context.Context, key string) {
	if err := c.client.Del(ctx, cacheKeyPrefix+key).Err(); err != nil {
		c.logger.WarnContext(ctx, "settings cache invalidation failed", "key", key, "error", err)
	}
}

func (c *CachedStore) count(result string) {
	if c.metrics != nil {
		c.metrics.IncrementSettingsCache(result)
	}
}
