package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/florist-storefront/pkg/redis"
)

type keyValue interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartSessionKey(name, shopperID string) string
}

// RedisBackend stores cart-session ids under fl:cart_session:<name>:<shopper>.
type RedisBackend struct {
	kv   keyValue
	name string
	ttl  time.Duration
}

func NewRedisBackend(kv keyValue, name string, ttl time.Duration) *RedisBackend {
	return &RedisBackend{kv: kv, name: name, ttl: ttl}
}

func (b *RedisBackend) For(shopperID string) Store {
	return &RedisStore{kv: b.kv, key: b.kv.CartSessionKey(b.name, shopperID), ttl: b.ttl}
}

// RedisStore is a Store backed by a single redis key.
type RedisStore struct {
	kv  keyValue
	key string
	ttl time.Duration
}

func (s *RedisStore) Load(ctx context.Context) (string, bool, error) {
	value, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	value = strings.TrimSpace(value)
	return value, value != "", nil
}

func (s *RedisStore) Save(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return s.kv.Del(ctx, s.key)
	}
	return s.kv.Set(ctx, s.key, id, s.ttl)
}
