package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mallkit/passport/internal/core/domain"
	"github.com/mallkit/passport/internal/core/port"
	"github.com/mallkit/passport/internal/infra/security"
	"github.com/mallkit/passport/internal/repository"
)

// CredentialDispatcher routes an authentication attempt to the first
// user-lookup back end supporting the attempted user type and verifies
// the presented password there. Unknown accounts and wrong passwords
// take the same code path, so neither response shape nor timing reveals
// which occurred.
type CredentialDispatcher struct {
	lookups      []port.UserLookupService
	hideNotFound bool
	log          *zap.Logger
}

// NewCredentialDispatcher wires the lookup back ends in consultation
// order.
func NewCredentialDispatcher(hideNotFound bool, log *zap.Logger, lookups ...port.UserLookupService) *CredentialDispatcher {
	return &CredentialDispatcher{
		lookups:      lookups,
		hideNotFound: hideNotFound,
		log:          log,
	}
}

// Resolve loads the principal without verifying credentials, used by
// flows that authenticate through a channel other than the password
// (SMS codes, QR authorization).
func (d *CredentialDispatcher) Resolve(ctx context.Context, userType domain.UserType, identifier string) (*domain.Principal, error) {
	principal, err := d.lookup(ctx, userType, identifier)
	if err != nil {
		return nil, err
	}
	if !principal.Enabled {
		return nil, ErrAccountDisabled
	}
	return principal, nil
}

// Authenticate resolves the principal and verifies the password with a
// constant-time comparison. When the account does not exist, or exists
// without a usable hash, a dummy hash is verified instead so the
// failure takes as long as a genuine mismatch.
func (d *CredentialDispatcher) Authenticate(ctx context.Context, userType domain.UserType, identifier, password string) (*domain.Principal, error) {
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidArgument)
	}

	principal, err := d.lookup(ctx, userType, identifier)
	if err != nil {
		if errors.Is(err, ErrBadCredentials) || errors.Is(err, ErrUserNotFound) {
			_, _ = security.VerifyPassword(password, security.DummyHash())
		}
		return nil, err
	}

	if !principal.Enabled {
		return nil, ErrAccountDisabled
	}

	hash := principal.CredentialsHash
	if hash == "" {
		_, _ = security.VerifyPassword(password, security.DummyHash())
		return nil, ErrBadCredentials
	}

	match, err := security.VerifyPassword(password, hash)
	if err != nil {
		d.log.Warn("stored credential hash unreadable",
			zap.String("user_type", string(userType)),
			zap.Error(err))
		return nil, ErrBadCredentials
	}
	if !match {
		return nil, ErrBadCredentials
	}

	return principal, nil
}

func (d *CredentialDispatcher) lookup(ctx context.Context, userType domain.UserType, identifier string) (*domain.Principal, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || !userType.Valid() {
		return nil, fmt.Errorf("%w: user type and identifier are required", ErrInvalidArgument)
	}

	var backend port.UserLookupService
	for _, l := range d.lookups {
		if l.Supports(userType) {
			backend = l
			break
		}
	}
	if backend == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoProviderForUserType, userType)
	}

	principal, err := backend.LoadByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			if d.hideNotFound {
				return nil, ErrBadCredentials
			}
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load principal: %w", err)
	}

	return principal, nil
}
