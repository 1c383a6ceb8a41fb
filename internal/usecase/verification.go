package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mallkit/passport/internal/core/domain"
	"github.com/mallkit/passport/internal/core/port"
	"github.com/mallkit/passport/internal/infra/config"
	"github.com/mallkit/passport/internal/infra/logger"
	"github.com/mallkit/passport/internal/infra/security"
)

const (
	smsCodePrefix  = "sms:code:"
	smsLimitPrefix = "sms:sendlimit:"

	defaultCodeLength     = 6
	defaultCodeTTL        = 5 * time.Minute
	defaultResendInterval = time.Minute
)

// VerificationCodeService issues and checks one-time numeric codes
// delivered over SMS. A code is bound to (user type, identifier), lives
// for a bounded TTL, and is removed on its first successful match.
type VerificationCodeService struct {
	store          port.CredentialStore
	sender         port.NotificationSender
	metrics        port.MetricsSink
	log            *zap.Logger
	codeLength     int
	codeTTL        time.Duration
	resendInterval time.Duration
	echoCodes      bool
}

// NewVerificationCodeService wires code issuance. Outside production the
// generated code is echoed back to the caller for test convenience.
func NewVerificationCodeService(
	store port.CredentialStore,
	sender port.NotificationSender,
	metrics port.MetricsSink,
	log *zap.Logger,
	cfg config.SMSSettings,
	production bool,
) *VerificationCodeService {
	codeLength := cfg.CodeLength
	if codeLength <= 0 {
		codeLength = defaultCodeLength
	}
	codeTTL := cfg.CodeTTL
	if codeTTL <= 0 {
		codeTTL = defaultCodeTTL
	}
	resendInterval := cfg.ResendInterval
	if resendInterval <= 0 {
		resendInterval = defaultResendInterval
	}

	return &VerificationCodeService{
		store:          store,
		sender:         sender,
		metrics:        metrics,
		log:            log,
		codeLength:     codeLength,
		codeTTL:        codeTTL,
		resendInterval: resendInterval,
		echoCodes:      !production,
	}
}

// SendCode generates and dispatches a fresh code. A resend inside the
// rate-limit window fails with ErrRateLimited without touching the
// previously issued code. The returned string is empty in production.
func (s *VerificationCodeService) SendCode(ctx context.Context, userType domain.UserType, identifier string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || !userType.Valid() {
		return "", fmt.Errorf("%w: user type and identifier are required", ErrInvalidArgument)
	}

	limitKey := smsLimitPrefix + string(userType) + ":" + identifier
	if _, exists, err := s.store.Get(ctx, limitKey); err != nil {
		return "", fmt.Errorf("check resend window: %w", err)
	} else if exists {
		return "", ErrRateLimited
	}

	code, err := security.GenerateNumericCode(s.codeLength)
	if err != nil {
		return "", err
	}

	if err := s.store.Set(ctx, s.codeKey(userType, identifier), code, s.codeTTL); err != nil {
		return "", fmt.Errorf("store verification code: %w", err)
	}
	if err := s.store.Set(ctx, limitKey, "1", s.resendInterval); err != nil {
		return "", fmt.Errorf("store resend marker: %w", err)
	}

	// Delivery is best effort; the code stays valid either way.
	if err := s.sender.SendCode(ctx, identifier, code); err != nil {
		s.log.Warn("verification code delivery failed",
			zap.String("identifier", logger.MaskIdentifier(identifier)),
			zap.Error(err))
	}

	s.metrics.CodeSent(string(userType))

	if s.echoCodes {
		return code, nil
	}
	return "", nil
}

// Verify checks the presented code case-insensitively against the
// stored one and consumes it on a match. A missing, expired, or
// mismatched code reads as bad credentials.
func (s *VerificationCodeService) Verify(ctx context.Context, userType domain.UserType, identifier, code string) error {
	identifier = strings.TrimSpace(identifier)
	code = strings.TrimSpace(code)
	if identifier == "" || code == "" || !userType.Valid() {
		return fmt.Errorf("%w: user type, identifier, and code are required", ErrInvalidArgument)
	}

	key := s.codeKey(userType, identifier)
	stored, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("load verification code: %w", err)
	}
	if !ok || !strings.EqualFold(stored, code) {
		return ErrBadCredentials
	}

	if err := s.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("consume verification code: %w", err)
	}

	return nil
}

// Clear drops any outstanding code for the identifier. Called when an
// SMS login is rejected after the code already matched, so the matched
// code cannot be replayed. Idempotent.
func (s *VerificationCodeService) Clear(ctx context.Context, userType domain.UserType, identifier string) error {
	return s.store.Delete(ctx, s.codeKey(userType, identifier))
}

func (s *VerificationCodeService) codeKey(userType domain.UserType, identifier string) string {
	return smsCodePrefix + string(userType) + ":" + identifier
}
