package usecase

import (
	"context"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mallkit/passport/internal/core/domain"
	"github.com/mallkit/passport/internal/core/port"
	"github.com/mallkit/passport/internal/infra/logger"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// LoginService orchestrates every authentication flow: it dispatches
// credentials, mints session material, records metrics, and publishes
// login events.
type LoginService struct {
	dispatcher *CredentialDispatcher
	tokens     *TokenService
	codes      *VerificationCodeService
	qrcodes    *QrcodeLoginService
	oauth      *OAuth2LoginService
	events     port.EventPublisher
	metrics    port.MetricsSink
	log        *zap.Logger
	now        func() time.Time
}

// NewLoginService wires the orchestrator.
func NewLoginService(
	dispatcher *CredentialDispatcher,
	tokens *TokenService,
	codes *VerificationCodeService,
	qrcodes *QrcodeLoginService,
	oauth *OAuth2LoginService,
	events port.EventPublisher,
	metrics port.MetricsSink,
	log *zap.Logger,
) *LoginService {
	return &LoginService{
		dispatcher: dispatcher,
		tokens:     tokens,
		codes:      codes,
		qrcodes:    qrcodes,
		oauth:      oauth,
		events:     events,
		metrics:    metrics,
		log:        log,
		now:        time.Now,
	}
}

// LoginWithPassword authenticates an identifier/password pair for the
// user type and mints a session.
func (s *LoginService) LoginWithPassword(ctx context.Context, userType domain.UserType, identifier, password string) (*domain.LoginResult, error) {
	principal, err := s.dispatcher.Authenticate(ctx, userType, identifier, password)
	if err != nil {
		s.recordFailure(userType, domain.LoginMethodPassword, identifier, err)
		return nil, err
	}

	return s.issue(ctx, principal.SubjectID, principal.UserType, domain.LoginMethodPassword)
}

// LoginWithCode authenticates through a previously sent verification
// code. The code is consumed on match; when the account is then
// rejected, any remaining code is cleared so the attempt cannot be
// replayed.
func (s *LoginService) LoginWithCode(ctx context.Context, userType domain.UserType, identifier, code string) (*domain.LoginResult, error) {
	if err := s.codes.Verify(ctx, userType, identifier, code); err != nil {
		s.recordFailure(userType, domain.LoginMethodSMSCode, identifier, err)
		return nil, err
	}

	principal, err := s.dispatcher.Resolve(ctx, userType, identifier)
	if err != nil {
		if clearErr := s.codes.Clear(ctx, userType, identifier); clearErr != nil {
			s.log.Warn("clear verification code failed", zap.Error(clearErr))
		}
		s.recordFailure(userType, domain.LoginMethodSMSCode, identifier, err)
		return nil, err
	}

	return s.issue(ctx, principal.SubjectID, principal.UserType, domain.LoginMethodSMSCode)
}

// RefreshSession rotates a member refresh token: the presented token is
// consumed and a fresh access/refresh pair is minted.
func (s *LoginService) RefreshSession(ctx context.Context, refreshToken string) (*domain.LoginResult, error) {
	memberID, err := s.tokens.ConsumeRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	return s.buildResult(ctx, memberID, domain.UserTypeMember)
}

// IssueForSubject mints a session for an already-authenticated subject,
// used when authentication happened out of band (QR authorization,
// OAuth2 callback).
func (s *LoginService) IssueForSubject(ctx context.Context, subject string, userType domain.UserType, method string) (*domain.LoginResult, error) {
	return s.issue(ctx, subject, userType, method)
}

// CompleteOAuthLogin finishes the third-party flow: the callback state
// and code resolve to a normalized profile, and a member session is
// minted for the provider-scoped subject.
func (s *LoginService) CompleteOAuthLogin(ctx context.Context, state, code string) (*domain.LoginResult, error) {
	info, err := s.oauth.LoadUser(ctx, state, code)
	if err != nil {
		s.metrics.LoginAttempt(string(domain.UserTypeMember), domain.LoginMethodOAuth2, outcomeFailure)
		return nil, err
	}

	subject := info.Provider + ":" + info.OpenID
	return s.issue(ctx, subject, domain.UserTypeMember, domain.LoginMethodOAuth2)
}

// AuthorizeQrcode completes a scanned QR scene on behalf of the member
// confirming from the app: a session is minted and parked as the
// scene's one-shot payload.
func (s *LoginService) AuthorizeQrcode(ctx context.Context, sceneID, memberID string) (*domain.LoginResult, error) {
	if memberID == "" {
		return nil, fmt.Errorf("%w: member id is required", ErrInvalidArgument)
	}

	result, err := s.issue(ctx, memberID, domain.UserTypeMember, domain.LoginMethodQrcode)
	if err != nil {
		return nil, err
	}

	if err := s.qrcodes.Authorize(ctx, sceneID, result); err != nil {
		return nil, err
	}

	return result, nil
}

// Logout revokes the canonical token and drops the refresh token.
// Idempotent; an unknown refresh token is not an error.
func (s *LoginService) Logout(ctx context.Context, subject, refreshToken string) error {
	if err := s.tokens.RevokeCanonical(ctx, subject); err != nil {
		return err
	}
	return s.tokens.DeleteRefreshToken(ctx, refreshToken)
}

func (s *LoginService) issue(ctx context.Context, subject string, userType domain.UserType, method string) (*domain.LoginResult, error) {
	result, err := s.buildResult(ctx, subject, userType)
	if err != nil {
		s.metrics.LoginAttempt(string(userType), method, outcomeFailure)
		return nil, err
	}

	s.metrics.LoginAttempt(string(userType), method, outcomeSuccess)

	event := domain.UserLoggedInEvent{
		EventID:    uuid.NewString(),
		SubjectID:  subject,
		UserType:   userType,
		Method:     method,
		OccurredAt: s.now().UTC(),
	}
	if err := s.events.PublishUserLoggedIn(ctx, event); err != nil {
		s.log.Warn("publish user logged in failed",
			zap.String("subject", subject),
			zap.Error(err))
	}

	return result, nil
}

func (s *LoginService) buildResult(ctx context.Context, subject string, userType domain.UserType) (*domain.LoginResult, error) {
	token, err := s.tokens.Issue(ctx, subject, userType, nil)
	if err != nil {
		return nil, err
	}

	result := &domain.LoginResult{
		Subject:   subject,
		UserType:  userType,
		Token:     token,
		TokenType: domain.TokenTypeBearer,
		ExpiresIn: int64(s.tokens.AccessTokenTTL().Seconds()),
	}

	if userType == domain.UserTypeMember {
		refreshToken, err := s.tokens.IssueRefreshToken(ctx, subject)
		if err != nil {
			return nil, err
		}
		result.RefreshToken = refreshToken
		result.RefreshExpiresIn = int64(s.tokens.RefreshTokenTTL().Seconds())
	}

	return result, nil
}

func (s *LoginService) recordFailure(userType domain.UserType, method, identifier string, err error) {
	s.metrics.LoginAttempt(string(userType), method, outcomeFailure)
	s.log.Info("login rejected",
		zap.String("user_type", string(userType)),
		zap.String("method", method),
		zap.String("identifier", logger.MaskIdentifier(identifier)),
		zap.Error(err))
}
