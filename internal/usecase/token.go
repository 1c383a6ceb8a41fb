package usecase

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"

	"github.com/mallkit/passport/internal/core/domain"
	"github.com/mallkit/passport/internal/core/port"
	"github.com/mallkit/passport/internal/infra/config"
	"github.com/mallkit/passport/internal/infra/security"
)

const (
	canonicalTokenPrefix = "jwt:"
	refreshTokenPrefix   = "refresh:"

	defaultAccessTokenTTL  = 30 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// TokenService issues, parses, and refreshes signed access tokens, and
// manages the opaque rotating refresh tokens handed to members. The
// most recently issued access token per subject is the only valid one:
// every issue overwrites the canonical copy in the credential store.
type TokenService struct {
	codec      *security.TokenCodec
	store      port.CredentialStore
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenService constructs a TokenService from JWT settings.
func NewTokenService(codec *security.TokenCodec, store port.CredentialStore, cfg config.JWTSettings) *TokenService {
	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTokenTTL
	}
	refreshTTL := cfg.RefreshTokenTTL
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTokenTTL
	}

	return &TokenService{
		codec:      codec,
		store:      store,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// WithClock overrides the internal clock, used in tests. The codec
// validates claims against the same clock so minting and parsing agree
// on the current time.
func (s *TokenService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
		s.codec.WithClock(clock)
	}
}

// AccessTokenTTL returns the configured access token lifetime.
func (s *TokenService) AccessTokenTTL() time.Duration {
	return s.accessTTL
}

// RefreshTokenTTL returns the configured refresh token lifetime.
func (s *TokenService) RefreshTokenTTL() time.Duration {
	return s.refreshTTL
}

// Issue signs a token for the subject and stores it verbatim as the
// canonical copy under jwt:{subject}, invalidating any earlier session
// for the same subject.
func (s *TokenService) Issue(ctx context.Context, subject string, userType domain.UserType, extra map[string]string) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", fmt.Errorf("%w: subject is required", ErrInvalidArgument)
	}

	now := s.now().UTC()

	var extraCopy map[string]string
	if len(extra) > 0 {
		extraCopy = make(map[string]string, len(extra))
		for k, v := range extra {
			extraCopy[k] = v
		}
	}

	claims := &security.AccessTokenClaims{
		UserType: string(userType),
		Extra:    extraCopy,
	}
	claims.Subject = subject
	claims.Issuer = s.codec.Issuer()
	claims.ID = uuid.NewString()
	claims.IssuedAt = security.NewNumericDate(now)
	claims.NotBefore = security.NewNumericDate(now)
	claims.ExpiresAt = security.NewNumericDate(now.Add(s.accessTTL))

	signed, err := s.codec.Sign(claims)
	if err != nil {
		return "", err
	}

	if err := s.store.Set(ctx, canonicalTokenPrefix+subject, signed, s.accessTTL); err != nil {
		return "", fmt.Errorf("store canonical token: %w", err)
	}

	return signed, nil
}

// Parse verifies the token and returns its claims, distinguishing
// expiry from tampering from structural corruption.
func (s *TokenService) Parse(token string) (*security.AccessTokenClaims, error) {
	return s.codec.Parse(token)
}

// IsExpired reports whether the token verifies but has elapsed its
// validity window. Unparseable tokens are not "expired", just invalid.
func (s *TokenService) IsExpired(token string) bool {
	_, err := s.codec.Parse(token)
	return err == security.ErrTokenExpired
}

// Validate reports whether the token parses, matches the expected
// subject, has not expired, and is the canonical copy for the subject.
// Parse failures of any kind read as invalid.
func (s *TokenService) Validate(ctx context.Context, token, expectedSubject string) bool {
	claims, err := s.codec.Parse(token)
	if err != nil {
		return false
	}
	if claims.Subject != expectedSubject {
		return false
	}

	canonical, ok, err := s.store.Get(ctx, canonicalTokenPrefix+expectedSubject)
	if err != nil || !ok {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(canonical), []byte(token)) == 1
}

// Refresh re-signs the claim set of the presented token with updated
// issue and expiry timestamps. Refresh is opportunistic: an expired but
// structurally valid token still refreshes, and a token that fails to
// parse yields ("", nil) rather than an error.
func (s *TokenService) Refresh(ctx context.Context, oldToken string) (string, error) {
	claims, err := s.codec.ParseIgnoringExpiry(oldToken)
	if err != nil {
		return "", nil
	}

	now := s.now().UTC()
	claims.IssuedAt = security.NewNumericDate(now)
	claims.NotBefore = security.NewNumericDate(now)
	claims.ExpiresAt = security.NewNumericDate(now.Add(s.accessTTL))

	signed, err := s.codec.Sign(claims)
	if err != nil {
		return "", err
	}

	if err := s.store.Set(ctx, canonicalTokenPrefix+claims.Subject, signed, s.accessTTL); err != nil {
		return "", fmt.Errorf("store canonical token: %w", err)
	}

	return signed, nil
}

// RevokeCanonical deletes the canonical token for the subject,
// terminating its session.
func (s *TokenService) RevokeCanonical(ctx context.Context, subject string) error {
	if strings.TrimSpace(subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidArgument)
	}

	return s.store.Delete(ctx, canonicalTokenPrefix+subject)
}

// IssueRefreshToken creates an opaque one-time refresh token mapped to
// the member. The cache keys the record by the token's SHA-256 digest,
// so the raw value exists only in the caller's hands.
func (s *TokenService) IssueRefreshToken(ctx context.Context, memberID string) (string, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return "", fmt.Errorf("%w: member id is required", ErrInvalidArgument)
	}

	raw, err := security.GenerateSecureToken(32)
	if err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}

	now := s.now().UTC()
	record := domain.RefreshTokenRecord{
		MemberID:  memberID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.refreshTTL),
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal refresh token record: %w", err)
	}

	if err := s.store.Set(ctx, refreshTokenPrefix+security.HashToken(raw), string(payload), s.refreshTTL); err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}

	return raw, nil
}

// ConsumeRefreshToken validates and deletes the refresh token, returning
// the member it belonged to. Every successful consumption removes the
// token; the caller is expected to issue a replacement.
func (s *TokenService) ConsumeRefreshToken(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("%w: refresh token is required", ErrInvalidArgument)
	}

	payload, ok, err := s.store.GetDelete(ctx, refreshTokenPrefix+security.HashToken(token))
	if err != nil {
		return "", fmt.Errorf("consume refresh token: %w", err)
	}
	if !ok {
		return "", ErrBadCredentials
	}

	var record domain.RefreshTokenRecord
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return "", fmt.Errorf("unmarshal refresh token record: %w", err)
	}

	if record.IsExpired(s.now().UTC()) {
		return "", ErrBadCredentials
	}

	return record.MemberID, nil
}

// DeleteRefreshToken removes a refresh token without consuming it,
// used on logout. Idempotent.
func (s *TokenService) DeleteRefreshToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}

	return s.store.Delete(ctx, refreshTokenPrefix+security.HashToken(token))
}
