// Package rediscache is an entitlement.Cache backed by Redis.
//
// Results are stored as JSON under "<prefix>:<viewer>:<post>" with the TTL
// passed to Set, so Redis expires them. Invalidation scans the key space for
// the viewer or post and deletes the matches.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/patron/entitlement"
	"github.com/xraph/patron/id"
)

// DefaultPrefix namespaces the cache keys.
const DefaultPrefix = "patron:ent"

const scanBatch = 256

// Compile-time interface check.
var _ entitlement.Cache = (*Cache)(nil)

// Config holds the connection settings.
type Config struct {
	Addr        string        `mapstructure:"addr" yaml:"addr" env:"PATRON_REDIS_ADDR" env-default:"localhost:6379"`
	Username    string        `mapstructure:"username" yaml:"username" env:"PATRON_REDIS_USER"`
	Password    string        `mapstructure:"password" yaml:"password" env:"PATRON_REDIS_PASSWORD"`
	DB          int           `mapstructure:"db" yaml:"db" env:"PATRON_REDIS_DB" env-default:"0"`
	MaxRetries  int           `mapstructure:"max_retries" yaml:"max_retries" env-default:"3"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout" env-default:"5s"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout" env-default:"3s"`
}

type Cache struct {
	rdb    redis.UniversalClient
	prefix string
}

// Option configures a Cache.
type Option func(*Cache)

// WithPrefix replaces DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(c *Cache) { c.prefix = prefix }
}

// New wraps an existing client.
func New(rdb redis.UniversalClient, opts ...Option) *Cache {
	c := &Cache{rdb: rdb, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials Redis and pings it before returning.
func Connect(ctx context.Context, cfg Config, opts ...Option) (*Cache, error) {
	const op = "rediscache.Connect"
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return New(rdb, opts...), nil
}

// Close closes the underlying client.
func (c *Cache) Close() error { return c.rdb.Close() }

func (c *Cache) key(viewer, post string) string {
	return c.prefix + ":" + viewer + ":" + post
}

func (c *Cache) Get(ctx context.Context, viewerID id.ProfileID, postID id.PostID) (*entitlement.Result, error) {
	const op = "rediscache.Get"
	val, err := c.rdb.Get(ctx, c.key(viewerID.String(), postID.String())).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, entitlement.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var res entitlement.Result
	if err := json.Unmarshal(val, &res); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &res, nil
}

func (c *Cache) Set(ctx context.Context, result *entitlement.Result, ttl time.Duration) error {
	const op = "rediscache.Set"
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := c.rdb.Set(ctx, c.key(result.ViewerID.String(), result.PostID.String()), data, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *Cache) InvalidateViewer(ctx context.Context, viewerID id.ProfileID) error {
	return c.deleteMatching(ctx, c.key(viewerID.String(), "*"))
}

func (c *Cache) InvalidatePost(ctx context.Context, postID id.PostID) error {
	return c.deleteMatching(ctx, c.key("*", postID.String()))
}

func (c *Cache) deleteMatching(ctx context.Context, pattern string) error {
	const op = "rediscache.Invalidate"
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return fmt.Errorf("%s: scan %s: %w", op, pattern, err)
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("%s: del: %w", op, err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
