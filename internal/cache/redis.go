package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dshills/amazonmart/pkg/types"
)

// Redis is a Cache shared between instances
type Redis struct {
	client      *redis.Client
	serviceName string
	ttl         time.Duration
}

// NewRedis creates a Redis-backed cache. Keys are namespaced by serviceName.
func NewRedis(addr, serviceName string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{
		client:      redis.NewClient(&redis.Options{Addr: addr}),
		serviceName: serviceName,
		ttl:         ttl,
	}
}

// Ping checks the connection
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// GenerateKey namespaces a key for this service
func (r *Redis) GenerateKey(operation, key string) string {
	return fmt.Sprintf("%s:%s:%s", r.serviceName, operation, key)
}

func (r *Redis) GetOptions(ctx context.Context, key string) ([]types.Option, bool, error) {
	raw, err := r.client.Get(ctx, r.GenerateKey("options", key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var options []types.Option
	if err := json.Unmarshal(raw, &options); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached %s: %w", key, err)
	}
	return options, true, nil
}

func (r *Redis) SetOptions(ctx context.Context, key string, options []types.Option) error {
	raw, err := json.Marshal(options)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.GenerateKey("options", key), raw, r.ttl).Err()
}

func (r *Redis) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	namespaced := make([]string, len(keys))
	for i, key := range keys {
		namespaced[i] = r.GenerateKey("options", key)
	}
	return r.client.Del(ctx, namespaced...).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
