package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyNamespace = "mall-dashboard"

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
}

// Redis is a Cache shared between dashboard instances.
type Redis struct {
	store cmdable
	raw   *redis.Client
}

// NewRedis connects to rawURL (redis://host:port/db) and checks the server
// answers.
func NewRedis(ctx context.Context, rawURL string) (*Redis, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{store: raw, raw: raw}, nil
}

func namespaced(key string) string {
	return keyNamespace + ":" + key
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.store.Get(ctx, namespaced(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.store.Set(ctx, namespaced(key), value, ttl).Err()
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.store.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	if r.raw == nil {
		return nil
	}
	return r.raw.Close()
}
