package port

import (
	"context"

	"github.com/mallkit/passport/internal/core/domain"
)

// EventPublisher publishes authentication events to the message bus.
// This is the typed hook business modules register against instead of
// the core depending on their entities.
type EventPublisher interface {
	PublishUserLoggedIn(ctx context.Context, event domain.UserLoggedInEvent) error
	PublishOAuthUserLoaded(ctx context.Context, event domain.OAuthUserLoadedEvent) error
}
