package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/oguz-kara/pos-app-sub001/internal/logging"
)

const viewPrefix = "views"

func NewRedisClient(addr string, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// RedisViewCache stores views under versioned keys. Invalidate bumps a view's
// version so older entries are never read again and age out through TTL.
// Redis read and write failures fall back to the loader.
type RedisViewCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

func NewRedisViewCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisViewCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisViewCache{client: client, ttl: ttl, logger: logging.OrDefault(logger)}
}

func (c *RedisViewCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisViewCache) Close() error {
	return c.client.Close()
}

func versionKey(view string) string {
	return fmt.Sprintf("%s:%s:version", viewPrefix, view)
}

// Version returns the current version of view, starting at 1.
func (c *RedisViewCache) Version(ctx context.Context, view string) (int64, error) {
	ver, err := c.client.Get(ctx, versionKey(view)).Int64()
	if err == redis.Nil {
		if err := c.client.SetNX(ctx, versionKey(view), 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, versionKey(view)).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

func (c *RedisViewCache) FetchJSON(ctx context.Context, view string, key string, dest any, loader Loader) error {
	if loader == nil {
		return ErrNoLoader
	}
	ver, err := c.Version(ctx, view)
	if err != nil {
		c.logger.Warn("view cache unavailable", "view", view, "error", err)
		return NoopViewCache{}.FetchJSON(ctx, view, key, dest, loader)
	}
	cacheKey := fmt.Sprintf("%s:%s:%s:%d", viewPrefix, view, key, ver)

	payload, err := c.client.Get(ctx, cacheKey).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if err != redis.Nil {
		c.logger.Warn("view cache read failed", "key", cacheKey, "error", err)
	}

	raw, err, _ := c.group.Do(cacheKey, func() (any, error) {
		raw, err := load(ctx, loader)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(ctx, cacheKey, raw, c.ttl).Err(); err != nil {
			c.logger.Warn("view cache write failed", "key", cacheKey, "error", err)
		}
		return raw, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw.([]byte), dest)
}

func (c *RedisViewCache) Invalidate(ctx context.Context, views ...string) error {
	if len(views) == 0 {
		return nil
	}
	pipe := c.client.TxPipeline()
	for _, view := range views {
		pipe.Incr(ctx, versionKey(view))
	}
	_, err := pipe.Exec(ctx)
	return err
}
