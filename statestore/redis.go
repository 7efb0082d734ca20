package statestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Tab-scoped entries are flow state; cap their lifetime so abandoned
	// flows do not accumulate.
	defaultTabTTL = 30 * time.Minute

	// Device-scoped entries persist until replaced.
	defaultDeviceTTL = 0
)

// RedisStore is a Store backed by Redis, used so device-scoped state
// (cached credentials, redirect destinations) survives process restarts.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	tabTTL    time.Duration
	deviceTTL time.Duration
}

// RedisStoreOption defines a function type to modify the RedisStore instance.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix sets the namespace prefix for all keys.
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		s.keyPrefix = prefix
	}
}

// WithTabTTL sets the lifetime of tab-scoped entries.
func WithTabTTL(ttl time.Duration) RedisStoreOption {
	return func(s *RedisStore) {
		s.tabTTL = ttl
	}
}

// NewRedisStore creates a Store backed by the given Redis client.
func NewRedisStore(client *redis.Client, options ...RedisStoreOption) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("[NewRedisStore] client is required")
	}

	store := &RedisStore{
		client:    client,
		keyPrefix: "session-engine",
		tabTTL:    defaultTabTTL,
		deviceTTL: defaultDeviceTTL,
	}

	for _, opt := range options {
		opt(store)
	}

	return store, nil
}

func (s *RedisStore) key(scope Scope, key string) string {
	return fmt.Sprintf("%s:%s:%s", s.keyPrefix, scope, key)
}

func (s *RedisStore) ttl(scope Scope) time.Duration {
	if scope == ScopeTab {
		return s.tabTTL
	}
	return s.deviceTTL
}

// Get retrieves a value by scope and key
func (s *RedisStore) Get(ctx context.Context, scope Scope, key string) (string, bool, error) {
	if key == "" {
		return "", false, errors.New("key cannot be empty")
	}

	value, err := s.client.Get(ctx, s.key(scope, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("[RedisStore.Get] %w", err)
	}
	return value, true, nil
}

// Set stores or replaces a value
func (s *RedisStore) Set(ctx context.Context, scope Scope, key, value string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}

	if err := s.client.Set(ctx, s.key(scope, key), value, s.ttl(scope)).Err(); err != nil {
		return fmt.Errorf("[RedisStore.Set] %w", err)
	}
	return nil
}

// Delete removes a key; deleting a missing key is not an error
func (s *RedisStore) Delete(ctx context.Context, scope Scope, key string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}

	if err := s.client.Del(ctx, s.key(scope, key)).Err(); err != nil {
		return fmt.Errorf("[RedisStore.Delete] %w", err)
	}
	return nil
}

// ClearScope removes every key in the scope
func (s *RedisStore) ClearScope(ctx context.Context, scope Scope) error {
	iter := s.client.Scan(ctx, 0, s.key(scope, "*"), 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("[RedisStore.ClearScope] %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("[RedisStore.ClearScope] scan: %w", err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
