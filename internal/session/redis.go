package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rendis/flowbridge/pkg/schema"
)

// DefaultRedisPrefix namespaces session keys.
const DefaultRedisPrefix = "flowbridge:session:"

// RedisClient is the subset of go-redis client methods used by RedisStore.
// Keeping it as an interface enables mocking in tests.
type RedisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// RedisConfig holds configuration for a RedisStore.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration // 0 keeps sessions forever
}

// RedisStore stores each session as one JSON blob with an optional TTL.
type RedisStore struct {
	cfg    RedisConfig
	client RedisClient
}

// NewRedisStore connects to Redis and verifies the connection with PING.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	opts := &redis.Options{
		Addr: cfg.Address,
		DB:   cfg.DB,
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("session redis %q: ping failed: %w", cfg.Address, err)
	}
	return NewRedisStoreWithClient(cfg, client), nil
}

// NewRedisStoreWithClient creates a RedisStore backed by a pre-built client.
func NewRedisStoreWithClient(cfg RedisConfig, client RedisClient) *RedisStore {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultRedisPrefix
	}
	return &RedisStore{cfg: cfg, client: client}
}

func (r *RedisStore) Load(ctx context.Context, id string) (*Data, error) {
	raw, err := r.client.Get(ctx, r.prefixed(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, NotFound(id)
	}
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "load session %q", id).WithCause(err)
	}

	var d Data
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "decode session %q", id).WithCause(err)
	}
	d.ID = id
	if d.Values == nil {
		d.Values = map[string]any{}
	}
	return &d, nil
}

func (r *RedisStore) Save(ctx context.Context, d *Data) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "encode session %q", d.ID).WithCause(err)
	}
	if err := r.client.Set(ctx, r.prefixed(d.ID), raw, r.cfg.TTL).Err(); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "save session %q", d.ID).WithCause(err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.prefixed(id)).Err(); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "delete session %q", id).WithCause(err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) prefixed(id string) string {
	return r.cfg.Prefix + id
}

var _ Store = (*RedisStore)(nil)
