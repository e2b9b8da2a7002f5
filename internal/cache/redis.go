package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of *redis.Client the cache uses.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

// Redis shares cached results between processes under a key namespace.
type Redis struct {
	rdb    RedisClient
	prefix string
	ttl    time.Duration
}

var _ Cache = (*Redis)(nil)

// NewRedis returns a cache storing entries as "<prefix>:<key>" with ttl.
func NewRedis(rdb RedisClient, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = "bookly"
	}
	return &Redis{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (c *Redis) full(k Key) string { return c.prefix + ":" + k.String() }

// Get returns the entry for key; a missing key is a miss, not an error.
func (c *Redis) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	b, err := c.rdb.Get(ctx, c.full(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return b, true, nil
}

// Set stores val under key with the cache TTL.
func (c *Redis) Set(ctx context.Context, key Key, val []byte) error {
	if err := c.rdb.Set(ctx, c.full(key), val, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Invalidate deletes the exact key and everything below it.
func (c *Redis) Invalidate(ctx context.Context, prefix Key) error {
	base := c.full(prefix)
	doomed := []string{base}
	match := globEscape(base) + "/*"
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return fmt.Errorf("redis scan: %w", err)
		}
		doomed = append(doomed, keys...)
		if next == 0 {
			break
		}
		cursor = next
	}
	if err := c.rdb.Del(ctx, doomed...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

var globReplacer = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func globEscape(s string) string { return globReplacer.Replace(s) }
