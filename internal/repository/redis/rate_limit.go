package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"
)

// RateLimitRepository counts attempts per identifier in fixed windows.
// The first increment of a window stamps the TTL, so abandoned windows
// self-clean.
type RateLimitRepository struct {
	client *red.Client
	prefix string
}

// NewRateLimitRepository constructs a repository with the provided key prefix.
func NewRateLimitRepository(client *red.Client, keyPrefix string) *RateLimitRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = "ratelimit"
	}

	return &RateLimitRepository{client: client, prefix: prefix}
}

// Increment records an attempt and returns the count inside the active window.
func (r *RateLimitRepository) Increment(ctx context.Context, identifier string, window time.Duration) (int64, error) {
	key := fmt.Sprintf("%s:%s", r.prefix, identifier)

	pipe := r.client.TxPipeline()
	count := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis incr: %w", err)
	}

	return count.Val(), nil
}
