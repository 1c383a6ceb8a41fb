package wechat

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{
		AppID:       "wx123",
		Secret:      "secret",
		AuthURL:     srv.URL + "/connect/oauth2/authorize",
		TokenURL:    srv.URL + "/sns/oauth2/access_token",
		UserInfoURL: srv.URL + "/sns/userinfo",
		RedirectURL: "https://app.example.com/callback",
		Scopes:      []string{ScopeUserInfo},
		APIBaseURL:  srv.URL,
	}, srv.Client(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	return client, srv
}

func TestExchangeDecodesTextPlainJSON(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sns/oauth2/access_token", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("appid") != "wx123" || q.Get("secret") != "secret" {
			t.Errorf("missing credentials in query: %s", r.URL.RawQuery)
		}
		if q.Get("grant_type") != "authorization_code" {
			t.Errorf("grant_type = %q", q.Get("grant_type"))
		}
		// WeChat serves JSON under text/plain and omits token_type.
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(`{"access_token":"at-1","expires_in":7200,"refresh_token":"rt-1","openid":"open-1","unionid":"union-1","scope":"snsapi_userinfo"}`))
	})

	client, _ := newTestClient(t, mux)

	token, err := client.Exchange(context.Background(), "code-1")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}

	if token.AccessToken != "at-1" || token.OpenID != "open-1" || token.UnionID != "union-1" {
		t.Fatalf("token = %+v", token)
	}
	if token.TokenType != "bearer" {
		t.Fatalf("token_type = %q, want synthesized bearer", token.TokenType)
	}
}

func TestExchangeDetectsProviderError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sns/oauth2/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(`{"errcode":40029,"errmsg":"invalid code"}`))
	})

	client, _ := newTestClient(t, mux)

	_, err := client.Exchange(context.Background(), "bad-code")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Code != 40029 || apiErr.Message != "invalid code" {
		t.Fatalf("apiErr = %+v", apiErr)
	}
}

func TestExchangeRequiresCode(t *testing.T) {
	client, _ := newTestClient(t, http.NewServeMux())

	if _, err := client.Exchange(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty authorization code")
	}
}

func TestAuthorizeURLCarriesAppIDAndFragment(t *testing.T) {
	client, _ := newTestClient(t, http.NewServeMux())

	authorizeURL := client.AuthorizeURL("state-1")

	if !strings.Contains(authorizeURL, "appid=wx123") {
		t.Errorf("url missing appid: %s", authorizeURL)
	}
	if !strings.Contains(authorizeURL, "state=state-1") {
		t.Errorf("url missing state: %s", authorizeURL)
	}
	if !strings.HasSuffix(authorizeURL, "#wechat_redirect") {
		t.Errorf("url missing #wechat_redirect fragment: %s", authorizeURL)
	}
}

func TestAuthorizeURLWithoutUserInfoScope(t *testing.T) {
	srv := httptest.NewServer(http.NewServeMux())
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{
		AppID:   "wx123",
		Secret:  "secret",
		AuthURL: srv.URL + "/connect/oauth2/authorize",
		Scopes:  []string{"snsapi_base"},
	}, srv.Client(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if authorizeURL := client.AuthorizeURL("s"); strings.Contains(authorizeURL, "#wechat_redirect") {
		t.Errorf("base scope must not carry the fragment: %s", authorizeURL)
	}
}

func TestFetchUserInfo(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sns/userinfo", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("access_token") != "at-1" || q.Get("openid") != "open-1" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(`{"openid":"open-1","nickname":"Alice","headimgurl":"https://img.example.com/a.png"}`))
	})

	client, _ := newTestClient(t, mux)

	profile, err := client.FetchUserInfo(context.Background(), "at-1", "open-1")
	if err != nil {
		t.Fatalf("FetchUserInfo: %v", err)
	}
	if profile["nickname"] != "Alice" {
		t.Fatalf("profile = %v", profile)
	}
}

func TestCreateQrcode(t *testing.T) {
	tokenCalls := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/cgi-bin/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		if r.URL.Query().Get("grant_type") != "client_credential" {
			t.Errorf("grant_type = %q", r.URL.Query().Get("grant_type"))
		}
		_, _ = w.Write([]byte(`{"access_token":"api-token","expires_in":7200}`))
	})
	mux.HandleFunc("/cgi-bin/qrcode/create", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("access_token") != "api-token" {
			t.Errorf("access_token = %q", r.URL.Query().Get("access_token"))
		}
		_, _ = w.Write([]byte(`{"ticket":"tkt-1","expire_seconds":120,"url":"https://weixin.qq.com/q/tkt-1"}`))
	})

	client, _ := newTestClient(t, mux)
	ctx := context.Background()

	ticket, err := client.CreateQrcode(ctx, "", "scene-1", 120)
	if err != nil {
		t.Fatalf("CreateQrcode: %v", err)
	}
	if ticket.SceneID != "scene-1" || ticket.Ticket != "tkt-1" || ticket.ExpireSeconds != 120 {
		t.Fatalf("ticket = %+v", ticket)
	}

	// The client-credential token is cached across calls.
	if _, err := client.CreateQrcode(ctx, "", "scene-2", 120); err != nil {
		t.Fatalf("CreateQrcode second: %v", err)
	}
	if tokenCalls != 1 {
		t.Fatalf("token endpoint called %d times, want 1", tokenCalls)
	}
}

func TestCreateQrcodeProviderError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/cgi-bin/token", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"api-token","expires_in":7200}`))
	})
	mux.HandleFunc("/cgi-bin/qrcode/create", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errcode":40001,"errmsg":"invalid credential"}`))
	})

	client, _ := newTestClient(t, mux)

	_, err := client.CreateQrcode(context.Background(), "", "scene-1", 120)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != 40001 {
		t.Fatalf("err = %v, want *APIError with errcode 40001", err)
	}
}
