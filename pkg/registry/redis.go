package registry

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tendant/myauth/pkg/domain"
)

// DefaultKeyPrefix namespaces registry keys.
const DefaultKeyPrefix = "myauth:rt:"

// Redis is a Registry shared by every server process. Each active token is a
// key with a TTL equal to the refresh-token lifetime, so SET, EXISTS and DEL
// are individually atomic and a completed Remove is visible to all readers.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedis creates a Redis-backed registry.
func NewRedis(client redis.UniversalClient, prefix string, ttl time.Duration) (*Redis, error) {
	if client == nil {
		return nil, errors.New("registry: redis client is required")
	}
	if ttl <= 0 {
		return nil, errors.New("registry: ttl must be positive")
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}, nil
}

func (r *Redis) key(token string) string {
	return r.prefix + HashToken(token)
}

func (r *Redis) Insert(ctx context.Context, token string) error {
	if err := r.client.Set(ctx, r.key(token), 1, r.ttl).Err(); err != nil {
		return domain.StorageError("registry insert", err)
	}
	return nil
}

func (r *Redis) Contains(ctx context.Context, token string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(token)).Result()
	if err != nil {
		return false, domain.StorageError("registry contains", err)
	}
	return n == 1, nil
}

func (r *Redis) Remove(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, r.key(token)).Err(); err != nil {
		return domain.StorageError("registry remove", err)
	}
	return nil
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return domain.StorageError("registry ping", err)
	}
	return nil
}
