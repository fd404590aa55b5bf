package speechcache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis implements Store on a shared Redis client. Entries carry a TTL so
// rarely spoken phrases age out; TTL 0 means keep forever.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisOptions configures the process-wide cache connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	TTL      time.Duration
}

// NewRedis opens a Redis-backed cache with a bounded connection pool.
func NewRedis(opts RedisOptions) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
			PoolSize: opts.PoolSize,
		}),
		ttl: opts.TTL,
	}
}

// Get implements Store. A missing key is (nil, nil), not an error.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Set implements Store.
func (r *Redis) Set(ctx context.Context, key string, audio []byte) error {
	return r.client.Set(ctx, key, audio, r.ttl).Err()
}

// Close implements Store.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Ping verifies connectivity at startup.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
