package port

import (
	"context"

	"github.com/mallkit/passport/internal/core/domain"
)

// UserLookupService resolves principals for one user population. The
// credential dispatcher selects the first registered back end whose
// Supports returns true for the attempted user type.
type UserLookupService interface {
	Supports(userType domain.UserType) bool
	// LoadByIdentifier resolves a principal by account, email, or phone.
	// Returns repository.ErrNotFound when no account matches.
	LoadByIdentifier(ctx context.Context, identifier string) (*domain.Principal, error)
}
