package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mallkit/passport/internal/core/domain"
	"github.com/mallkit/passport/internal/core/port"
	"github.com/mallkit/passport/internal/infra/config"
	"github.com/mallkit/passport/internal/infra/wechat"
)

// OAuth2LoginService drives third-party login: it builds authorization
// URLs bound to one-time states, and on callback exchanges the code and
// normalizes the provider profile.
type OAuth2LoginService struct {
	registry      *ProviderStrategyRegistry
	states        *OAuth2StateTracker
	registrations map[string]config.OAuth2ProviderSettings
	events        port.EventPublisher
	log           *zap.Logger
	now           func() time.Time
}

// NewOAuth2LoginService wires the configured provider registrations.
func NewOAuth2LoginService(
	cfg config.OAuth2Settings,
	registry *ProviderStrategyRegistry,
	states *OAuth2StateTracker,
	events port.EventPublisher,
	log *zap.Logger,
) *OAuth2LoginService {
	registrations := make(map[string]config.OAuth2ProviderSettings, len(cfg.Providers))
	for _, p := range cfg.Providers {
		registrations[p.RegistrationID] = p
	}

	return &OAuth2LoginService{
		registry:      registry,
		states:        states,
		registrations: registrations,
		events:        events,
		log:           log,
		now:           time.Now,
	}
}

// BuildAuthorizationPrompt mints a state for the registration and
// returns the provider authorization URL together with the state and
// the URL's notable components. Unknown and disabled registrations are
// indistinguishable to callers.
func (s *OAuth2LoginService) BuildAuthorizationPrompt(ctx context.Context, registrationID string) (*domain.AuthorizationPrompt, error) {
	registration, ok := s.registrations[registrationID]
	if !ok || !registration.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrNoStrategyForProvider, registrationID)
	}

	strategy, err := s.registry.Resolve(registrationID)
	if err != nil {
		return nil, err
	}

	state, err := s.states.Create(ctx, domain.AuthorizationRequest{
		RegistrationID: registration.RegistrationID,
		ClientID:       registration.ClientID,
		RedirectURI:    registration.RedirectURL,
		Scopes:         registration.Scopes,
		AccountID:      registration.AppID,
	})
	if err != nil {
		return nil, err
	}

	authorizeURL, err := strategy.AuthorizeURL(registration, state)
	if err != nil {
		return nil, err
	}

	return &domain.AuthorizationPrompt{
		URL:         authorizeURL,
		State:       state,
		AppID:       registration.AppID,
		RedirectURI: registration.RedirectURL,
		Scope:       strings.Join(registration.Scopes, " "),
	}, nil
}

// LoadUser consumes the callback state, exchanges the code through the
// owning strategy, and publishes the normalized profile.
func (s *OAuth2LoginService) LoadUser(ctx context.Context, state, code string) (*domain.ProviderUserInfo, error) {
	request, err := s.states.Consume(ctx, state)
	if err != nil {
		return nil, err
	}

	registration, ok := s.registrations[request.RegistrationID]
	if !ok || !registration.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrNoStrategyForProvider, request.RegistrationID)
	}

	strategy, err := s.registry.Resolve(request.RegistrationID)
	if err != nil {
		return nil, err
	}

	info, err := strategy.LoadUser(ctx, registration, code)
	if err != nil {
		var apiErr *wechat.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("%w: %s", ErrProviderFailure, apiErr)
		}
		if errors.Is(err, ErrProviderFailure) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrProviderFailure, err)
	}

	if info.RawAttributes == nil {
		info.RawAttributes = map[string]any{}
	}
	info.RawAttributes["registrationId"] = request.RegistrationID

	event := domain.OAuthUserLoadedEvent{
		EventID:        uuid.NewString(),
		RegistrationID: request.RegistrationID,
		Provider:       info.Provider,
		OpenID:         info.OpenID,
		UnionID:        info.UnionID,
		Nickname:       info.Nickname,
		Email:          info.Email,
		OccurredAt:     s.now().UTC(),
	}
	if err := s.events.PublishOAuthUserLoaded(ctx, event); err != nil {
		s.log.Warn("publish oauth user loaded failed",
			zap.String("registration_id", request.RegistrationID),
			zap.Error(err))
	}

	return info, nil
}
