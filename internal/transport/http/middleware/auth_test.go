package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	red "github.com/redis/go-redis/v9"

	"github.com/mallkit/passport/internal/core/domain"
	"github.com/mallkit/passport/internal/infra/config"
	"github.com/mallkit/passport/internal/infra/security"
	redisrepo "github.com/mallkit/passport/internal/repository/redis"
	"github.com/mallkit/passport/internal/usecase"
)

func newAuthFixture(t *testing.T) (*usecase.TokenService, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := red.NewClient(&red.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})

	codec, err := security.NewTokenCodec("test-secret", "passport-test")
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}

	tokens := usecase.NewTokenService(codec, redisrepo.NewCredentialStore(client, "passport"), config.JWTSettings{
		AccessTokenTTL:  30 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})

	router := gin.New()
	router.GET("/protected", RequireAuth(tokens), func(c *gin.Context) {
		subject, _ := AuthenticatedSubject(c)
		c.JSON(http.StatusOK, gin.H{"subject": subject})
	})
	router.GET("/member-only", RequireAuth(tokens), RequireUserType("member"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	return tokens, router
}

func doRequest(router *gin.Engine, path, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRequireAuthAcceptsCanonicalToken(t *testing.T) {
	tokens, router := newAuthFixture(t)

	token, err := tokens.Issue(context.Background(), "member-1", domain.UserTypeMember, nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	rec := doRequest(router, "/protected", "Bearer "+token)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestRequireAuthRejectsMissingHeader(t *testing.T) {
	_, router := newAuthFixture(t)

	if rec := doRequest(router, "/protected", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if rec := doRequest(router, "/protected", "Token abc"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for non-bearer scheme", rec.Code)
	}
}

func TestRequireAuthRejectsSupersededSession(t *testing.T) {
	tokens, router := newAuthFixture(t)
	ctx := context.Background()

	first, err := tokens.Issue(ctx, "member-1", domain.UserTypeMember, nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := tokens.Issue(ctx, "member-1", domain.UserTypeMember, nil); err != nil {
		t.Fatalf("Issue second: %v", err)
	}

	rec := doRequest(router, "/protected", "Bearer "+first)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for superseded session", rec.Code)
	}
}

func TestRequireAuthRejectsRevokedSession(t *testing.T) {
	tokens, router := newAuthFixture(t)
	ctx := context.Background()

	token, err := tokens.Issue(ctx, "member-1", domain.UserTypeMember, nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := tokens.RevokeCanonical(ctx, "member-1"); err != nil {
		t.Fatalf("RevokeCanonical: %v", err)
	}

	rec := doRequest(router, "/protected", "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for revoked session", rec.Code)
	}
}

func TestRequireUserType(t *testing.T) {
	tokens, router := newAuthFixture(t)
	ctx := context.Background()

	memberToken, err := tokens.Issue(ctx, "member-1", domain.UserTypeMember, nil)
	if err != nil {
		t.Fatalf("Issue member: %v", err)
	}
	if rec := doRequest(router, "/member-only", "Bearer "+memberToken); rec.Code != http.StatusOK {
		t.Fatalf("member status = %d, want 200", rec.Code)
	}

	systemToken, err := tokens.Issue(ctx, "sys-1", domain.UserTypeSystem, nil)
	if err != nil {
		t.Fatalf("Issue system: %v", err)
	}
	if rec := doRequest(router, "/member-only", "Bearer "+systemToken); rec.Code != http.StatusForbidden {
		t.Fatalf("system status = %d, want 403", rec.Code)
	}
}
