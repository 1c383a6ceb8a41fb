package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mallkit/passport/internal/core/domain"
	"github.com/mallkit/passport/internal/core/port"
	"github.com/mallkit/passport/internal/infra/security"
)

const (
	oauthStatePrefix = "oauth2:state:"

	defaultStateTTL = 10 * time.Minute
)

// OAuth2StateTracker binds CSRF state nonces to in-flight authorization
// requests. Each state is random, expires after a bounded TTL, and is
// consumed exactly once.
type OAuth2StateTracker struct {
	store port.CredentialStore
	ttl   time.Duration
}

// NewOAuth2StateTracker wires the tracker over the credential store.
func NewOAuth2StateTracker(store port.CredentialStore, ttl time.Duration) *OAuth2StateTracker {
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	return &OAuth2StateTracker{store: store, ttl: ttl}
}

// Create mints a fresh state nonce and stores the authorization request
// under it.
func (t *OAuth2StateTracker) Create(ctx context.Context, req domain.AuthorizationRequest) (string, error) {
	state, err := security.GenerateSecureToken(24)
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal authorization request: %w", err)
	}

	if err := t.store.Set(ctx, oauthStatePrefix+state, string(payload), t.ttl); err != nil {
		return "", fmt.Errorf("store authorization state: %w", err)
	}

	return state, nil
}

// Consume atomically retrieves and deletes the authorization request
// bound to the state. An unknown, expired, or already-consumed state
// fails closed with ErrStateInvalidOrExpired.
func (t *OAuth2StateTracker) Consume(ctx context.Context, state string) (*domain.AuthorizationRequest, error) {
	if state == "" {
		return nil, ErrStateInvalidOrExpired
	}

	payload, ok, err := t.store.GetDelete(ctx, oauthStatePrefix+state)
	if err != nil {
		return nil, fmt.Errorf("consume authorization state: %w", err)
	}
	if !ok {
		return nil, ErrStateInvalidOrExpired
	}

	var req domain.AuthorizationRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return nil, fmt.Errorf("unmarshal authorization request: %w", err)
	}

	return &req, nil
}
