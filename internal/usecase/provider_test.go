package usecase

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/mallkit/passport/internal/infra/config"
)

func TestIsWeChatFamily(t *testing.T) {
	cases := []struct {
		id   string
		want bool
	}{
		{"wechat", true},
		{"wechat-app", true},
		{"company-weixin", true},
		{"wx1234567890", true},
		{"WX-MINI", true},
		{"github", false},
		{"google", false},
		{"wixsite", false},
	}

	for _, tc := range cases {
		if got := IsWeChatFamily(tc.id); got != tc.want {
			t.Errorf("IsWeChatFamily(%q) = %v, want %v", tc.id, got, tc.want)
		}
	}
}

func TestRegistryResolvesWeChatBeforeDefault(t *testing.T) {
	registry := NewProviderStrategyRegistry(
		NewDefaultStrategy(nil),
		NewWeChatStrategy(nil, zap.NewNop()),
	)

	strategy, err := registry.Resolve("wechat-app")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if strategy.Name() != "wechat" {
		t.Fatalf("strategy = %q, want wechat", strategy.Name())
	}

	strategy, err = registry.Resolve("github")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if strategy.Name() != "default" {
		t.Fatalf("strategy = %q, want default", strategy.Name())
	}
}

func TestRegistryIsDeterministicAcrossRegistrationOrder(t *testing.T) {
	forward := NewProviderStrategyRegistry(NewWeChatStrategy(nil, zap.NewNop()), NewDefaultStrategy(nil))
	reversed := NewProviderStrategyRegistry(NewDefaultStrategy(nil), NewWeChatStrategy(nil, zap.NewNop()))

	for _, id := range []string{"wechat-app", "wx987", "github"} {
		a, err := forward.Resolve(id)
		if err != nil {
			t.Fatalf("forward resolve %q: %v", id, err)
		}
		b, err := reversed.Resolve(id)
		if err != nil {
			t.Fatalf("reversed resolve %q: %v", id, err)
		}
		if a.Name() != b.Name() {
			t.Fatalf("resolve %q differs by registration order: %q vs %q", id, a.Name(), b.Name())
		}
	}
}

func TestRegistryNoStrategy(t *testing.T) {
	registry := NewProviderStrategyRegistry(NewWeChatStrategy(nil, zap.NewNop()))

	if _, err := registry.Resolve("github"); !errors.Is(err, ErrNoStrategyForProvider) {
		t.Fatalf("err = %v, want ErrNoStrategyForProvider", err)
	}
}

func TestWeChatAuthorizeURL(t *testing.T) {
	strategy := NewWeChatStrategy(nil, zap.NewNop())
	registration := config.OAuth2ProviderSettings{
		RegistrationID: "wechat-app",
		AppID:          "wx123",
		ClientSecret:   "secret",
		AuthURL:        "https://open.weixin.qq.com/connect/oauth2/authorize",
		RedirectURL:    "https://app.example.com/callback",
		Scopes:         []string{"snsapi_userinfo"},
	}

	authorizeURL, err := strategy.AuthorizeURL(registration, "state-1")
	if err != nil {
		t.Fatalf("AuthorizeURL: %v", err)
	}

	if !strings.Contains(authorizeURL, "appid=wx123") {
		t.Errorf("url missing appid parameter: %s", authorizeURL)
	}
	if !strings.HasSuffix(authorizeURL, "#wechat_redirect") {
		t.Errorf("url missing #wechat_redirect fragment: %s", authorizeURL)
	}
	if !strings.Contains(authorizeURL, "state=state-1") {
		t.Errorf("url missing state: %s", authorizeURL)
	}
}

func TestDefaultAuthorizeURL(t *testing.T) {
	strategy := NewDefaultStrategy(nil)
	registration := config.OAuth2ProviderSettings{
		RegistrationID: "github",
		ClientID:       "client-1",
		ClientSecret:   "secret",
		AuthURL:        "https://github.com/login/oauth/authorize",
		TokenURL:       "https://github.com/login/oauth/access_token",
		RedirectURL:    "https://app.example.com/callback",
		Scopes:         []string{"user:email"},
	}

	authorizeURL, err := strategy.AuthorizeURL(registration, "state-2")
	if err != nil {
		t.Fatalf("AuthorizeURL: %v", err)
	}

	if !strings.Contains(authorizeURL, "client_id=client-1") {
		t.Errorf("url missing client_id: %s", authorizeURL)
	}
	if !strings.Contains(authorizeURL, "state=state-2") {
		t.Errorf("url missing state: %s", authorizeURL)
	}
	if strings.Contains(authorizeURL, "wechat_redirect") {
		t.Errorf("generic url must not carry the wechat fragment: %s", authorizeURL)
	}
}
