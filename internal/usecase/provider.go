package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/mallkit/passport/internal/core/domain"
	"github.com/mallkit/passport/internal/infra/config"
	"github.com/mallkit/passport/internal/infra/wechat"
)

// ProviderStrategy handles the wire protocol of one provider family.
// Strategies are consulted in ascending Order; the first whose Supports
// accepts the registration id wins.
type ProviderStrategy interface {
	Name() string
	Order() int
	Supports(registrationID string) bool
	AuthorizeURL(registration config.OAuth2ProviderSettings, state string) (string, error)
	// LoadUser exchanges the authorization code and reduces the raw
	// profile to the normalized shape.
	LoadUser(ctx context.Context, registration config.OAuth2ProviderSettings, code string) (*domain.ProviderUserInfo, error)
}

// IsWeChatFamily reports whether the registration id names a WeChat
// application: the id contains "wechat" or "weixin", or starts with
// the conventional "wx" app prefix.
func IsWeChatFamily(registrationID string) bool {
	id := strings.ToLower(registrationID)
	return strings.Contains(id, "wechat") ||
		strings.Contains(id, "weixin") ||
		strings.HasPrefix(id, "wx")
}

// ProviderStrategyRegistry holds the registered strategies sorted by
// their declared order.
type ProviderStrategyRegistry struct {
	strategies []ProviderStrategy
}

// NewProviderStrategyRegistry builds a registry from the given
// strategies.
func NewProviderStrategyRegistry(strategies ...ProviderStrategy) *ProviderStrategyRegistry {
	r := &ProviderStrategyRegistry{}
	for _, s := range strategies {
		r.Register(s)
	}
	return r
}

// Register adds a strategy, keeping the consultation order stable.
func (r *ProviderStrategyRegistry) Register(s ProviderStrategy) {
	r.strategies = append(r.strategies, s)
	sort.SliceStable(r.strategies, func(i, j int) bool {
		return r.strategies[i].Order() < r.strategies[j].Order()
	})
}

// Resolve returns the first strategy supporting the registration id.
func (r *ProviderStrategyRegistry) Resolve(registrationID string) (ProviderStrategy, error) {
	for _, s := range r.strategies {
		if s.Supports(registrationID) {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoStrategyForProvider, registrationID)
}

// WeChatStrategy serves every WeChat-family registration through the
// deviation-aware WeChat client.
type WeChatStrategy struct {
	http *http.Client
	log  *zap.Logger

	mu      sync.Mutex
	clients map[string]*wechat.Client
}

// NewWeChatStrategy builds the WeChat strategy. A nil http client falls
// back to a bounded-timeout default.
func NewWeChatStrategy(httpClient *http.Client, log *zap.Logger) *WeChatStrategy {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &WeChatStrategy{
		http:    httpClient,
		log:     log,
		clients: make(map[string]*wechat.Client),
	}
}

func (s *WeChatStrategy) Name() string { return "wechat" }

// Order places WeChat ahead of the generic strategy so family ids are
// never served generically.
func (s *WeChatStrategy) Order() int { return 50 }

func (s *WeChatStrategy) Supports(registrationID string) bool {
	return IsWeChatFamily(registrationID)
}

func (s *WeChatStrategy) AuthorizeURL(registration config.OAuth2ProviderSettings, state string) (string, error) {
	client, err := s.client(registration)
	if err != nil {
		return "", err
	}
	return client.AuthorizeURL(state), nil
}

func (s *WeChatStrategy) LoadUser(ctx context.Context, registration config.OAuth2ProviderSettings, code string) (*domain.ProviderUserInfo, error) {
	client, err := s.client(registration)
	if err != nil {
		return nil, err
	}

	token, err := client.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	info := &domain.ProviderUserInfo{
		Provider: s.Name(),
		OpenID:   token.OpenID,
		UnionID:  token.UnionID,
	}

	// Profile details require the userinfo consent scope; the base scope
	// only yields the openid carried on the token response.
	if strings.Contains(token.Scope, wechat.ScopeUserInfo) {
		profile, err := client.FetchUserInfo(ctx, token.AccessToken, token.OpenID)
		if err != nil {
			return nil, err
		}
		applyWeChatProfile(info, profile)
	}

	if info.OpenID == "" {
		return nil, fmt.Errorf("%w: wechat response carried no openid", ErrProviderFailure)
	}

	return info, nil
}

// client returns the cached per-registration WeChat client, so the
// client-credential token cache survives across calls.
func (s *WeChatStrategy) client(registration config.OAuth2ProviderSettings) (*wechat.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if client, ok := s.clients[registration.RegistrationID]; ok {
		return client, nil
	}

	appID := registration.AppID
	if appID == "" {
		appID = registration.ClientID
	}

	client, err := wechat.NewClient(wechat.Config{
		AppID:       appID,
		Secret:      registration.ClientSecret,
		AuthURL:     registration.AuthURL,
		TokenURL:    registration.TokenURL,
		UserInfoURL: registration.UserInfoURL,
		RedirectURL: registration.RedirectURL,
		Scopes:      registration.Scopes,
		APIBaseURL:  registration.APIBaseURL,
	}, s.http, s.log)
	if err != nil {
		return nil, err
	}

	s.clients[registration.RegistrationID] = client
	return client, nil
}

func applyWeChatProfile(info *domain.ProviderUserInfo, profile map[string]any) {
	if profile == nil {
		return
	}
	if v, ok := profile["openid"].(string); ok && v != "" {
		info.OpenID = v
	}
	if v, ok := profile["unionid"].(string); ok && v != "" {
		info.UnionID = v
	}
	if v, ok := profile["nickname"].(string); ok {
		info.Nickname = v
	}
	if v, ok := profile["headimgurl"].(string); ok {
		info.AvatarURL = v
	}
	info.RawAttributes = profile
}

// DefaultStrategy serves spec-conforming providers through the standard
// authorization-code flow.
type DefaultStrategy struct {
	http *http.Client
}

// NewDefaultStrategy builds the generic strategy. A nil http client
// falls back to a bounded-timeout default.
func NewDefaultStrategy(httpClient *http.Client) *DefaultStrategy {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &DefaultStrategy{http: httpClient}
}

func (s *DefaultStrategy) Name() string { return "default" }

// Order places the generic strategy last; it accepts everything.
func (s *DefaultStrategy) Order() int { return 60 }

func (s *DefaultStrategy) Supports(string) bool { return true }

func (s *DefaultStrategy) AuthorizeURL(registration config.OAuth2ProviderSettings, state string) (string, error) {
	return s.oauthConfig(registration).AuthCodeURL(state), nil
}

func (s *DefaultStrategy) LoadUser(ctx context.Context, registration config.OAuth2ProviderSettings, code string) (*domain.ProviderUserInfo, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.http)

	conf := s.oauthConfig(registration)
	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}

	profile, err := s.fetchProfile(ctx, conf, token, registration.UserInfoURL)
	if err != nil {
		return nil, err
	}

	info := &domain.ProviderUserInfo{
		Provider:      registration.RegistrationID,
		RawAttributes: profile,
	}
	applyGenericProfile(info, profile)

	if info.OpenID == "" {
		return nil, fmt.Errorf("%w: user info carried no stable identifier", ErrProviderFailure)
	}

	return info, nil
}

func (s *DefaultStrategy) oauthConfig(registration config.OAuth2ProviderSettings) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     registration.ClientID,
		ClientSecret: registration.ClientSecret,
		RedirectURL:  registration.RedirectURL,
		Scopes:       registration.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  registration.AuthURL,
			TokenURL: registration.TokenURL,
		},
	}
}

func (s *DefaultStrategy) fetchProfile(ctx context.Context, conf *oauth2.Config, token *oauth2.Token, userInfoURL string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build user info request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := conf.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read user info: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: user info endpoint returned status %d", ErrProviderFailure, resp.StatusCode)
	}

	var profile map[string]any
	if err := json.Unmarshal(payload, &profile); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}

	return profile, nil
}

func applyGenericProfile(info *domain.ProviderUserInfo, profile map[string]any) {
	stringAttr := func(keys ...string) string {
		for _, key := range keys {
			switch v := profile[key].(type) {
			case string:
				if v != "" {
					return v
				}
			case json.Number:
				return v.String()
			case float64:
				return fmt.Sprintf("%.0f", v)
			}
		}
		return ""
	}

	info.OpenID = stringAttr("sub", "id", "openid", "user_id")
	info.Nickname = stringAttr("nickname", "name", "login")
	info.Email = stringAttr("email")
	info.AvatarURL = stringAttr("avatar_url", "picture")
}
