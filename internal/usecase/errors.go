package usecase

import "errors"

var (
	// ErrInvalidArgument indicates a malformed identifier or missing field.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrBadCredentials indicates a wrong password, code, or token. When
	// enumeration hiding is enabled it also covers unknown accounts.
	ErrBadCredentials = errors.New("bad credentials")
	// ErrUserNotFound indicates the identifier resolved no account. Only
	// surfaced when enumeration hiding is disabled.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountDisabled indicates an administratively disabled account.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrRateLimited indicates a resend was attempted inside the window.
	ErrRateLimited = errors.New("rate limited")
	// ErrStateInvalidOrExpired indicates an OAuth2/QR flow replay or
	// timeout. Always fail-closed.
	ErrStateInvalidOrExpired = errors.New("state invalid or expired")
	// ErrProviderFailure indicates the third-party API returned a
	// provider-specific error shape.
	ErrProviderFailure = errors.New("provider error")
	// ErrNoProviderForUserType indicates no user-lookup back end serves
	// the attempted user type.
	ErrNoProviderForUserType = errors.New("no provider for user type")
	// ErrNoStrategyForProvider indicates an unknown provider registration.
	ErrNoStrategyForProvider = errors.New("no strategy for provider")
)
