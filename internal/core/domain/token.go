package domain

import "time"

// TokenTypeBearer is the token type reported to HTTP callers.
const TokenTypeBearer = "Bearer"

// LoginResult carries the credentials minted after a successful login.
// Member-facing flows additionally receive a rotating refresh token.
type LoginResult struct {
	Subject          string   `json:"subject"`
	UserType         UserType `json:"userType"`
	Token            string   `json:"token"`
	TokenType        string   `json:"tokenType"`
	ExpiresIn        int64    `json:"expiresIn"`
	RefreshToken     string   `json:"refreshToken,omitempty"`
	RefreshExpiresIn int64    `json:"refreshExpiresIn,omitempty"`
}

// RefreshTokenRecord maps an opaque refresh token to its member. The
// record lives in the credential store keyed by the token value itself
// and is deleted on every successful rotation (one-time use).
type RefreshTokenRecord struct {
	MemberID  string    `json:"memberId"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// IsExpired reports whether the refresh token elapsed its validity window.
func (r RefreshTokenRecord) IsExpired(at time.Time) bool {
	return !r.ExpiresAt.After(at)
}
