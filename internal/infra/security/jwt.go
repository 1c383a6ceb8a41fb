package security

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired indicates the token parsed and verified but its
	// validity window has elapsed.
	ErrTokenExpired = errors.New("jwt: token expired")
	// ErrTokenMalformed indicates the token is structurally corrupt.
	ErrTokenMalformed = errors.New("jwt: token malformed")
	// ErrTokenSignature indicates the signature does not verify.
	ErrTokenSignature = errors.New("jwt: bad signature")
	// ErrTokenInvalid covers every other verification failure.
	ErrTokenInvalid = errors.New("jwt: token invalid")
)

// AccessTokenClaims carries the subject, the user-type discriminator,
// and free-form business claims alongside the registered claim set.
type AccessTokenClaims struct {
	UserType string            `json:"userType,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies access tokens with a process-wide
// symmetric key derived once from the configured secret.
type TokenCodec struct {
	key    []byte
	issuer string
	now    func() time.Time
}

// NewTokenCodec derives the HS256 signing key from the secret.
func NewTokenCodec(secret, issuer string) (*TokenCodec, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("jwt: signing secret is required")
	}

	sum := sha256.Sum256([]byte(secret))
	return &TokenCodec{key: sum[:], issuer: issuer, now: time.Now}, nil
}

// WithClock overrides the clock used for claim validation, used in
// tests. Minting and validation must share one clock or tokens issued
// against a shifted clock fail their own expiry checks.
func (c *TokenCodec) WithClock(clock func() time.Time) {
	if clock != nil {
		c.now = clock
	}
}

// Sign produces the signed compact serialization of the claims.
func (c *TokenCodec) Sign(claims *AccessTokenClaims) (string, error) {
	if claims == nil {
		return "", fmt.Errorf("jwt: claims required")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}

	return signed, nil
}

// Parse verifies the token and returns its claims. The error
// distinguishes expiry from tampering from structural corruption so
// callers can report precisely.
func (c *TokenCodec) Parse(token string) (*AccessTokenClaims, error) {
	return c.parse(token, false)
}

// ParseIgnoringExpiry verifies the signature and structure but skips
// claim validation, so an expired token still yields its claims.
func (c *TokenCodec) ParseIgnoringExpiry(token string) (*AccessTokenClaims, error) {
	return c.parse(token, true)
}

func (c *TokenCodec) parse(token string, ignoreExpiry bool) (*AccessTokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenMalformed
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	}
	if ignoreExpiry {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	claims := &AccessTokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return c.key, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrTokenMalformed
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenSignature
		default:
			return nil, ErrTokenInvalid
		}
	}

	if parsed == nil || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// Issuer returns the issuer stamped on minted claims.
func (c *TokenCodec) Issuer() string {
	return c.issuer
}

// NewNumericDate wraps a time in the claim representation.
func NewNumericDate(t time.Time) *jwt.NumericDate {
	return jwt.NewNumericDate(t)
}
