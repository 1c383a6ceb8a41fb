package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mallkit/passport/internal/core/domain"
	"github.com/mallkit/passport/internal/core/port"
	"github.com/mallkit/passport/internal/infra/config"
)

const (
	qrcodeScenePrefix = "qrcode:scene:"

	defaultQrcodeExpireSeconds = 120
	defaultQrcodePayloadTTL    = 2 * time.Minute

	// qrcodeStateGrace keeps the state record around past its logical
	// expiry so pollers observe EXPIRED instead of NOT_FOUND.
	qrcodeStateGrace = 5 * time.Minute
)

// All keys of one scene share a prefix so a spent scene can be purged
// with a single prefix delete.
func qrcodeStateKey(sceneID string) string {
	return qrcodeScenePrefix + sceneID + ":state"
}

func qrcodePayloadKey(sceneID string) string {
	return qrcodeScenePrefix + sceneID + ":payload"
}

// qrcodeStateRecord is the JSON value stored per scene. The logical
// expiry lives inside the record; the cache TTL runs longer by the
// grace window.
type qrcodeStateRecord struct {
	State     domain.QrcodeState `json:"state"`
	ExpiresAt time.Time          `json:"expiresAt"`
}

// QrcodeLoginService runs the scan-to-login state machine. A scene
// moves waiting -> scanned -> authorized, may be canceled from waiting
// or scanned, and expires if not completed in time. The login payload
// stored at authorization is handed to the poller exactly once.
type QrcodeLoginService struct {
	store         port.CredentialStore
	provider      port.QrcodeProvider
	metrics       port.MetricsSink
	log           *zap.Logger
	expireSeconds int
	payloadTTL    time.Duration
	now           func() time.Time
}

// NewQrcodeLoginService wires the state machine over the credential
// store and the external QR provider.
func NewQrcodeLoginService(
	store port.CredentialStore,
	provider port.QrcodeProvider,
	metrics port.MetricsSink,
	log *zap.Logger,
	cfg config.QrcodeSettings,
) *QrcodeLoginService {
	expireSeconds := cfg.ExpireSeconds
	if expireSeconds <= 0 {
		expireSeconds = defaultQrcodeExpireSeconds
	}
	payloadTTL := cfg.PayloadTTL
	if payloadTTL <= 0 {
		payloadTTL = defaultQrcodePayloadTTL
	}

	return &QrcodeLoginService{
		store:         store,
		provider:      provider,
		metrics:       metrics,
		log:           log,
		expireSeconds: expireSeconds,
		payloadTTL:    payloadTTL,
		now:           time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *QrcodeLoginService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Create requests a fresh QR ticket and registers its scene in the
// waiting state.
func (s *QrcodeLoginService) Create(ctx context.Context, accountID string) (*domain.QrcodeTicket, error) {
	sceneID := uuid.NewString()

	ticket, err := s.provider.CreateQrcode(ctx, accountID, sceneID, s.expireSeconds)
	if err != nil {
		return nil, fmt.Errorf("%w: create qrcode: %s", ErrProviderFailure, err)
	}

	expiry := time.Duration(s.expireSeconds) * time.Second
	record := qrcodeStateRecord{
		State:     domain.QrcodeStateWaiting,
		ExpiresAt: s.now().UTC().Add(expiry),
	}
	if err := s.saveState(ctx, sceneID, record, expiry+qrcodeStateGrace); err != nil {
		return nil, err
	}

	return ticket, nil
}

// Status reports the current state of the scene. When the scene has
// been authorized, the stored login payload is returned alongside the
// state and removed, so only the first poll after authorization
// receives credentials.
func (s *QrcodeLoginService) Status(ctx context.Context, sceneID string) (domain.QrcodeState, *domain.LoginResult, error) {
	record, ok, err := s.loadState(ctx, sceneID)
	if err != nil {
		return domain.QrcodeStateNotFound, nil, err
	}
	if !ok {
		s.metrics.QrcodePoll(domain.QrcodeStateNotFound.String())
		return domain.QrcodeStateNotFound, nil, nil
	}

	state := s.effectiveState(record)
	s.metrics.QrcodePoll(state.String())

	if state != domain.QrcodeStateAuthorized {
		return state, nil, nil
	}

	payload, ok, err := s.store.GetDelete(ctx, qrcodePayloadKey(sceneID))
	if err != nil {
		return state, nil, fmt.Errorf("load login payload: %w", err)
	}
	if !ok {
		// Payload already handed out or lapsed; the scene is spent.
		return domain.QrcodeStateNotFound, nil, nil
	}

	if _, err := s.store.DeletePattern(ctx, qrcodeScenePrefix+sceneID+":"); err != nil {
		s.log.Warn("purge spent qrcode scene failed", zap.String("scene_id", sceneID), zap.Error(err))
	}

	var result domain.LoginResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return state, nil, fmt.Errorf("unmarshal login payload: %w", err)
	}

	return state, &result, nil
}

// MarkScanned transitions the scene from waiting to scanned. Repeated
// scans of an already-scanned scene are accepted without effect.
func (s *QrcodeLoginService) MarkScanned(ctx context.Context, sceneID string) error {
	record, err := s.loadLive(ctx, sceneID)
	if err != nil {
		return err
	}

	switch record.State {
	case domain.QrcodeStateScanned:
		return nil
	case domain.QrcodeStateWaiting:
	default:
		return ErrStateInvalidOrExpired
	}

	record.State = domain.QrcodeStateScanned
	return s.saveState(ctx, sceneID, record, s.remainingTTL(record))
}

// Authorize transitions a scanned scene to authorized and parks the
// login payload for the poller.
func (s *QrcodeLoginService) Authorize(ctx context.Context, sceneID string, result *domain.LoginResult) error {
	if result == nil {
		return fmt.Errorf("%w: login payload is required", ErrInvalidArgument)
	}

	record, err := s.loadLive(ctx, sceneID)
	if err != nil {
		return err
	}
	if record.State != domain.QrcodeStateScanned {
		return ErrStateInvalidOrExpired
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal login payload: %w", err)
	}

	if err := s.store.Set(ctx, qrcodePayloadKey(sceneID), string(payload), s.payloadTTL); err != nil {
		return fmt.Errorf("store login payload: %w", err)
	}

	record.State = domain.QrcodeStateAuthorized
	record.ExpiresAt = s.now().UTC().Add(s.payloadTTL)
	return s.saveState(ctx, sceneID, record, s.payloadTTL+qrcodeStateGrace)
}

// Cancel marks a pending scene as canceled. Only waiting and scanned
// scenes can be canceled.
func (s *QrcodeLoginService) Cancel(ctx context.Context, sceneID string) error {
	record, err := s.loadLive(ctx, sceneID)
	if err != nil {
		return err
	}

	switch record.State {
	case domain.QrcodeStateWaiting, domain.QrcodeStateScanned:
	default:
		return ErrStateInvalidOrExpired
	}

	record.State = domain.QrcodeStateCanceled
	return s.saveState(ctx, sceneID, record, s.remainingTTL(record))
}

// loadLive resolves the scene record and rejects missing or expired
// scenes.
func (s *QrcodeLoginService) loadLive(ctx context.Context, sceneID string) (qrcodeStateRecord, error) {
	record, ok, err := s.loadState(ctx, sceneID)
	if err != nil {
		return qrcodeStateRecord{}, err
	}
	if !ok || s.effectiveState(record) == domain.QrcodeStateExpired {
		return qrcodeStateRecord{}, ErrStateInvalidOrExpired
	}
	return record, nil
}

// effectiveState folds the logical expiry into the stored state: a
// pending scene past its deadline reads as expired.
func (s *QrcodeLoginService) effectiveState(record qrcodeStateRecord) domain.QrcodeState {
	switch record.State {
	case domain.QrcodeStateWaiting, domain.QrcodeStateScanned:
		if !record.ExpiresAt.After(s.now().UTC()) {
			return domain.QrcodeStateExpired
		}
	}
	return record.State
}

func (s *QrcodeLoginService) remainingTTL(record qrcodeStateRecord) time.Duration {
	remaining := record.ExpiresAt.Sub(s.now().UTC())
	if remaining < 0 {
		remaining = 0
	}
	return remaining + qrcodeStateGrace
}

func (s *QrcodeLoginService) loadState(ctx context.Context, sceneID string) (qrcodeStateRecord, bool, error) {
	sceneID = strings.TrimSpace(sceneID)
	if sceneID == "" {
		return qrcodeStateRecord{}, false, fmt.Errorf("%w: scene id is required", ErrInvalidArgument)
	}

	payload, ok, err := s.store.Get(ctx, qrcodeStateKey(sceneID))
	if err != nil {
		return qrcodeStateRecord{}, false, fmt.Errorf("load qrcode state: %w", err)
	}
	if !ok {
		return qrcodeStateRecord{}, false, nil
	}

	var record qrcodeStateRecord
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return qrcodeStateRecord{}, false, fmt.Errorf("unmarshal qrcode state: %w", err)
	}

	return record, true, nil
}

func (s *QrcodeLoginService) saveState(ctx context.Context, sceneID string, record qrcodeStateRecord, ttl time.Duration) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal qrcode state: %w", err)
	}

	if err := s.store.Set(ctx, qrcodeStateKey(sceneID), string(payload), ttl); err != nil {
		return fmt.Errorf("store qrcode state: %w", err)
	}

	return nil
}
