package kafka

import (
	"context"

	"go.uber.org/zap"

	"github.com/mallkit/passport/internal/core/domain"
	"github.com/mallkit/passport/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

// PublishUserLoggedIn logs auth.user.logged_in events.
func (p *StubPublisher) PublishUserLoggedIn(_ context.Context, event domain.UserLoggedInEvent) error {
	p.logger.Info("stub event published",
		zap.String("event_type", eventTypeUserLoggedIn),
		zap.String("subject_id", event.SubjectID),
		zap.String("user_type", string(event.UserType)),
		zap.String("method", event.Method),
	)
	return nil
}

// PublishOAuthUserLoaded logs auth.oauth.user_loaded events.
func (p *StubPublisher) PublishOAuthUserLoaded(_ context.Context, event domain.OAuthUserLoadedEvent) error {
	p.logger.Info("stub event published",
		zap.String("event_type", eventTypeOAuthUserLoaded),
		zap.String("registration_id", event.RegistrationID),
		zap.String("provider", event.Provider),
		zap.String("open_id", event.OpenID),
	)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
