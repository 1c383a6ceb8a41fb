package usecase

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mallkit/passport/internal/core/domain"
	"github.com/mallkit/passport/internal/infra/config"
)

func newQrcodeService(clock *fakeClock) *QrcodeLoginService {
	svc := NewQrcodeLoginService(newFakeStore(clock), &fakeQrcodeProvider{}, nopMetrics{}, zap.NewNop(), config.QrcodeSettings{
		ExpireSeconds: 120,
		PayloadTTL:    2 * time.Minute,
	})
	svc.WithClock(clock.Now)
	return svc
}

func createScene(t *testing.T, svc *QrcodeLoginService) string {
	t.Helper()
	ticket, err := svc.Create(context.Background(), "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return ticket.SceneID
}

func TestQrcodeLifecycle(t *testing.T) {
	clock := newFakeClock()
	svc := newQrcodeService(clock)
	ctx := context.Background()

	sceneID := createScene(t, svc)

	state, result, err := svc.Status(ctx, sceneID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if state != domain.QrcodeStateWaiting || result != nil {
		t.Fatalf("state = %v, result = %v; want waiting with no payload", state, result)
	}

	if err := svc.MarkScanned(ctx, sceneID); err != nil {
		t.Fatalf("MarkScanned: %v", err)
	}

	state, _, err = svc.Status(ctx, sceneID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if state != domain.QrcodeStateScanned {
		t.Fatalf("state = %v, want scanned", state)
	}

	login := &domain.LoginResult{Subject: "member-1", UserType: domain.UserTypeMember, Token: "jwt", TokenType: domain.TokenTypeBearer}
	if err := svc.Authorize(ctx, sceneID, login); err != nil {
		t.Fatalf("Authorize: %v", err)
	}

	state, result, err = svc.Status(ctx, sceneID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if state != domain.QrcodeStateAuthorized {
		t.Fatalf("state = %v, want authorized", state)
	}
	if result == nil || result.Subject != "member-1" {
		t.Fatalf("payload = %+v, want the parked login", result)
	}

	// One-shot exchange: the payload and the scene are spent.
	state, result, err = svc.Status(ctx, sceneID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if state != domain.QrcodeStateNotFound || result != nil {
		t.Fatalf("second poll state = %v result = %v; want not-found with no payload", state, result)
	}
}

func TestQrcodeUnknownScene(t *testing.T) {
	clock := newFakeClock()
	svc := newQrcodeService(clock)

	state, result, err := svc.Status(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if state != domain.QrcodeStateNotFound || result != nil {
		t.Fatalf("state = %v, want not-found", state)
	}
}

func TestQrcodeExpiryIsDistinctFromNotFound(t *testing.T) {
	clock := newFakeClock()
	svc := newQrcodeService(clock)
	ctx := context.Background()

	sceneID := createScene(t, svc)

	clock.Advance(3 * time.Minute)

	state, _, err := svc.Status(ctx, sceneID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if state != domain.QrcodeStateExpired {
		t.Fatalf("state = %v, want expired", state)
	}

	if err := svc.MarkScanned(ctx, sceneID); err != ErrStateInvalidOrExpired {
		t.Fatalf("scan expired err = %v, want ErrStateInvalidOrExpired", err)
	}
}

func TestQrcodeInvalidTransitions(t *testing.T) {
	clock := newFakeClock()
	svc := newQrcodeService(clock)
	ctx := context.Background()

	sceneID := createScene(t, svc)
	login := &domain.LoginResult{Subject: "member-1"}

	// Authorize straight from waiting skips the scan step.
	if err := svc.Authorize(ctx, sceneID, login); err != ErrStateInvalidOrExpired {
		t.Fatalf("authorize from waiting err = %v, want ErrStateInvalidOrExpired", err)
	}

	if err := svc.MarkScanned(ctx, sceneID); err != nil {
		t.Fatalf("MarkScanned: %v", err)
	}
	// A second scan is tolerated.
	if err := svc.MarkScanned(ctx, sceneID); err != nil {
		t.Fatalf("repeat scan: %v", err)
	}

	if err := svc.Authorize(ctx, sceneID, login); err != nil {
		t.Fatalf("Authorize: %v", err)
	}

	// Terminal states accept no further transitions.
	if err := svc.MarkScanned(ctx, sceneID); err != ErrStateInvalidOrExpired {
		t.Fatalf("scan after authorize err = %v, want ErrStateInvalidOrExpired", err)
	}
	if err := svc.Cancel(ctx, sceneID); err != ErrStateInvalidOrExpired {
		t.Fatalf("cancel after authorize err = %v, want ErrStateInvalidOrExpired", err)
	}
}

func TestQrcodeCancel(t *testing.T) {
	clock := newFakeClock()
	svc := newQrcodeService(clock)
	ctx := context.Background()

	sceneID := createScene(t, svc)

	if err := svc.Cancel(ctx, sceneID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	state, _, err := svc.Status(ctx, sceneID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if state != domain.QrcodeStateCanceled {
		t.Fatalf("state = %v, want canceled", state)
	}

	if err := svc.Authorize(ctx, sceneID, &domain.LoginResult{Subject: "x"}); err != ErrStateInvalidOrExpired {
		t.Fatalf("authorize canceled err = %v, want ErrStateInvalidOrExpired", err)
	}
}
