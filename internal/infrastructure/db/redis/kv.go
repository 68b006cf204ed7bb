package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyValueStore implements ports.KeyValueStore on Redis. Every key lives
// under prefix and expires ttl after its last write, so storage abandoned by
// a browser is reclaimed.
// Key format: <prefix>:<key>
type KeyValueStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewKeyValueStore creates a store; ttl <= 0 keeps keys until removed.
func NewKeyValueStore(client *redis.Client, prefix string, ttl time.Duration) *KeyValueStore {
	return &KeyValueStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *KeyValueStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv get: %w", err)
	}
	return v, true, nil
}

func (s *KeyValueStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("kv set: %w", err)
	}
	return nil
}

func (s *KeyValueStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("kv remove: %w", err)
	}
	return nil
}

func (s *KeyValueStore) key(k string) string {
	return s.prefix + ":" + k
}
