package port

import (
	"context"
	"time"
)

// CredentialStore abstracts the TTL-capable key-value cache every
// component persists ephemeral state through: canonical tokens, OAuth2
// state, QR-code status, verification codes, and rate-limit markers.
// Structured payloads are stored as JSON strings.
type CredentialStore interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
	// GetDelete atomically reads and removes a key, enforcing one-shot
	// retrieval semantics for payload exchange.
	GetDelete(ctx context.Context, key string) (string, bool, error)
	// DeletePattern removes all keys sharing the prefix and returns the
	// number of entries deleted.
	DeletePattern(ctx context.Context, prefix string) (int64, error)
}
