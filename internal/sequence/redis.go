package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/tendzd/settlement/internal/domain/ordernumber"
)

const keyNamespace = "tendzd:seq"

var _ ordernumber.Counter = (*Redis)(nil)

// incrementer is the subset of redis.Cmdable used by Redis.
type incrementer interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// Redis shares sequences between service instances using INCR.
type Redis struct {
	client incrementer
}

// NewRedis wraps an existing go-redis client.
func NewRedis(client incrementer) *Redis {
	return &Redis{client: client}
}

// Dial parses a redis:// URL, connects and verifies the connection.
func Dial(ctx context.Context, url string) (*Redis, *redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, errors.Wrap(err, "ping redis")
	}
	return NewRedis(client), client, nil
}

// Key returns the redis key holding the named sequence.
func Key(name string) string {
	return fmt.Sprintf("%s:%s", keyNamespace, name)
}

// Next atomically increments and returns the named sequence.
func (r *Redis) Next(ctx context.Context, name string) (uint64, error) {
	v, err := r.client.Incr(ctx, Key(name)).Result()
	if err != nil {
		return 0, errors.Wrapf(err, "incr %s", name)
	}
	if v < 0 {
		return 0, errors.Errorf("sequence %s is negative: %d", name, v)
	}
	return uint64(v), nil
}

// Hit counts an event under name. The key expires window after its first
// hit, so names embedding a window index form fixed-window rate counters.
func (r *Redis) Hit(ctx context.Context, name string, window time.Duration) (uint64, error) {
	key := Key(name)
	v, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, errors.Wrapf(err, "incr %s", name)
	}
	if v == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, errors.Wrapf(err, "expire %s", name)
		}
	}
	return uint64(v), nil
}

// Ping checks connectivity, for readiness probes.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
