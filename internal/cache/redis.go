package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	redis "github.com/go-redis/redis/v8"
)

// RedisCache stores entries in Redis under a common key prefix. The write
// time of each entry is kept alongside it so Updated works like a file mtime.
type RedisCache struct {
	conn   *redis.Client
	prefix string
}

func NewRedisCache(ctx context.Context, addr, prefix string) (*RedisCache, error) {
	opt, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &RedisCache{conn: client, prefix: prefix}, nil
}

func (rc *RedisCache) key(k string) string {
	return rc.prefix + k
}

func (rc *RedisCache) updatedKey(k string) string {
	return rc.prefix + k + ":updated"
}

// Set stores a value in the cache.
func (rc *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	_, err := rc.conn.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, rc.key(key), value, 0)
		p.Set(ctx, rc.updatedKey(key), time.Now().Unix(), 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing %q to redis: %w", key, err)
	}
	return nil
}

// Get retrieves a value from the cache.
func (rc *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := rc.conn.Get(ctx, rc.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%q: %w", key, ErrCacheMissing)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %q from redis: %w", key, err)
	}
	return value, nil
}

func (rc *RedisCache) Delete(ctx context.Context, key string) error {
	return rc.conn.Del(ctx, rc.key(key), rc.updatedKey(key)).Err()
}

func (rc *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := rc.conn.Exists(ctx, rc.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (rc *RedisCache) Updated(ctx context.Context, key string) (time.Time, error) {
	v, err := rc.conn.Get(ctx, rc.updatedKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, fmt.Errorf("%q: %w", key, ErrCacheMissing)
	}
	if err != nil {
		return time.Time{}, err
	}
	ts, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing update time of %q: %w", key, err)
	}
	return time.Unix(ts, 0), nil
}

// Close releases the underlying connection pool.
func (rc *RedisCache) Close() error {
	return rc.conn.Close()
}
