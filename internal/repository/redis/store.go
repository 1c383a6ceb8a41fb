package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/mallkit/passport/internal/core/port"
)

const defaultKeyPrefix = "passport"

// CredentialStore implements port.CredentialStore on Redis. Every
// ephemeral artifact of the authentication core (canonical tokens,
// OAuth2 state, QR status, verification codes, rate-limit markers)
// lives here under a shared key prefix.
type CredentialStore struct {
	client *red.Client
	prefix string
}

// NewCredentialStore constructs a store with the provided key prefix.
func NewCredentialStore(client *red.Client, keyPrefix string) *CredentialStore {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultKeyPrefix
	}

	return &CredentialStore{client: client, prefix: prefix}
}

// Set stores the value under the key with the supplied TTL.
func (s *CredentialStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("key is required")
	}

	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Get returns the stored value and whether the key exists.
func (s *CredentialStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, red.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}

	return value, true, nil
}

// Delete removes the key. Deleting a missing key is a no-op.
func (s *CredentialStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}

	return nil
}

// GetDelete atomically reads and removes the key.
func (s *CredentialStore) GetDelete(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.GetDel(ctx, s.key(key)).Result()
	if errors.Is(err, red.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis getdel: %w", err)
	}

	return value, true, nil
}

// DeletePattern removes every key sharing the prefix and returns the
// number of entries deleted.
func (s *CredentialStore) DeletePattern(ctx context.Context, prefix string) (int64, error) {
	pattern := s.key(prefix) + "*"

	var deleted int64
	iter := s.client.Scan(ctx, 0, pattern, 200).Iterator()
	for iter.Next(ctx) {
		n, err := s.client.Del(ctx, iter.Val()).Result()
		if err != nil {
			return deleted, fmt.Errorf("redis del: %w", err)
		}
		deleted += n
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("redis scan: %w", err)
	}

	return deleted, nil
}

func (s *CredentialStore) key(key string) string {
	return s.prefix + ":" + key
}

var _ port.CredentialStore = (*CredentialStore)(nil)
