package authmw

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Revocations remembers logged out token ids until the tokens expire.
type Revocations interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// NopRevocations is used when no redis is configured; logout then only
// clears the cookie.
type NopRevocations struct{}

func (NopRevocations) Revoke(context.Context, string, time.Time) error { return nil }

func (NopRevocations) IsRevoked(context.Context, string) (bool, error) { return false, nil }

type RedisRevocations struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisRevocations(ctx context.Context, url string) (*RedisRevocations, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisRevocations{client: client, prefix: "revoked:", now: time.Now}, nil
}

func (r *RedisRevocations) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := until.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, r.prefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, r.prefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists failed: %w", err)
	}
	return n > 0, nil
}

func (r *RedisRevocations) Close() error {
	return r.client.Close()
}
