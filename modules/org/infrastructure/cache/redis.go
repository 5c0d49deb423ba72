package cache

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore backs the cache with redis so eviction is visible across
// instances. A per-tenant set tracks live keys for PurgeTenant.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func tenantIndexKey(tenant string) string {
	return "org:index:" + tenant
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "redis get")
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, value, 0)
	if tenant := tenantOf(key); tenant != "" {
		pipe.SAdd(ctx, tenantIndexKey(tenant), key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, keys...)
	for _, key := range keys {
		if tenant := tenantOf(key); tenant != "" {
			pipe.SRem(ctx, tenantIndexKey(tenant), key)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "redis delete")
	}
	return nil
}

func (s *RedisStore) PurgeTenant(ctx context.Context, tenantID uuid.UUID) error {
	index := tenantIndexKey(tenantID.String())
	keys, err := s.client.SMembers(ctx, index).Result()
	if err != nil {
		return errors.Wrap(err, "redis purge tenant")
	}
	pipe := s.client.TxPipeline()
	if len(keys) > 0 {
		pipe.Del(ctx, keys...)
	}
	pipe.Del(ctx, index)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "redis purge tenant")
	}
	return nil
}
