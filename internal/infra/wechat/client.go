package wechat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mallkit/passport/internal/core/domain"
	"github.com/mallkit/passport/internal/core/port"
)

// ScopeUserInfo is the consent scope requiring the #wechat_redirect
// fragment on authorization URLs.
const ScopeUserInfo = "snsapi_userinfo"

// APIError is the provider-specific error shape carried in WeChat
// responses. It must be detected before generic response conversion.
type APIError struct {
	Code    int64  `json:"errcode"`
	Message string `json:"errmsg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wechat: errcode=%d errmsg=%s", e.Code, e.Message)
}

// Config describes one WeChat application registration.
type Config struct {
	AppID       string
	Secret      string
	AuthURL     string
	TokenURL    string
	UserInfoURL string
	RedirectURL string
	Scopes      []string
	// APIBaseURL is the API root for non-OAuth calls (QR tickets,
	// client-credential tokens).
	APIBaseURL string
}

// TokenResponse is the normalized token-endpoint payload after the
// WeChat deviations have been smoothed out.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	OpenID       string `json:"openid"`
	UnionID      string `json:"unionid"`
	Scope        string `json:"scope"`
}

// Client talks to the WeChat open-platform endpoints. The token
// endpoint returns JSON under Content-Type text/plain, omits
// token_type, and signals errors with {errcode, errmsg}; every request
// path here accounts for that.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger

	mu          sync.Mutex
	apiToken    string
	apiTokenExp time.Time
}

// NewClient constructs a WeChat client for one application registration.
func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.AppID) == "" {
		return nil, fmt.Errorf("wechat: app id is required")
	}
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, fmt.Errorf("wechat: secret is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Client{cfg: cfg, http: httpClient, logger: logger}, nil
}

// AuthorizeURL builds the authorization URL. WeChat requires the appid
// parameter in addition to the generic client_id, and the userinfo
// consent scope demands a #wechat_redirect fragment after the query.
func (c *Client) AuthorizeURL(state string) string {
	scope := strings.Join(c.cfg.Scopes, ",")

	q := url.Values{}
	q.Set("appid", c.cfg.AppID)
	q.Set("client_id", c.cfg.AppID)
	q.Set("redirect_uri", c.cfg.RedirectURL)
	q.Set("response_type", "code")
	if scope != "" {
		q.Set("scope", scope)
	}
	q.Set("state", state)

	authorizeURL := c.cfg.AuthURL + "?" + q.Encode()
	if strings.Contains(scope, ScopeUserInfo) {
		authorizeURL += "#wechat_redirect"
	}

	return authorizeURL
}

// Exchange swaps an authorization code for tokens. WeChat deviates from
// RFC 6749: credentials travel as query parameters and the response
// carries openid/unionid alongside the token.
func (c *Client) Exchange(ctx context.Context, code string) (*TokenResponse, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("wechat: authorization code is required")
	}

	q := url.Values{}
	q.Set("appid", c.cfg.AppID)
	q.Set("secret", c.cfg.Secret)
	q.Set("code", code)
	q.Set("grant_type", "authorization_code")

	var token TokenResponse
	if err := c.getJSON(ctx, c.cfg.TokenURL+"?"+q.Encode(), &token); err != nil {
		return nil, err
	}

	if token.AccessToken == "" {
		return nil, fmt.Errorf("wechat: token response missing access_token")
	}
	// The response omits token_type; synthesize it before anything
	// downstream applies generic OAuth2 handling.
	if token.TokenType == "" {
		token.TokenType = "bearer"
	}

	return &token, nil
}

// FetchUserInfo retrieves the raw profile payload for the openid.
func (c *Client) FetchUserInfo(ctx context.Context, accessToken, openID string) (map[string]any, error) {
	q := url.Values{}
	q.Set("access_token", accessToken)
	q.Set("openid", openID)
	q.Set("lang", "zh_CN")

	var profile map[string]any
	if err := c.getJSON(ctx, c.cfg.UserInfoURL+"?"+q.Encode(), &profile); err != nil {
		return nil, err
	}

	return profile, nil
}

type qrcodeRequest struct {
	ExpireSeconds int    `json:"expire_seconds"`
	ActionName    string `json:"action_name"`
	ActionInfo    struct {
		Scene struct {
			SceneStr string `json:"scene_str"`
		} `json:"scene"`
	} `json:"action_info"`
}

type qrcodeResponse struct {
	Ticket        string `json:"ticket"`
	ExpireSeconds int    `json:"expire_seconds"`
	URL           string `json:"url"`
}

// CreateQrcode requests a temporary scene ticket for scan-to-login.
func (c *Client) CreateQrcode(ctx context.Context, _ string, sceneID string, expireSeconds int) (*domain.QrcodeTicket, error) {
	if strings.TrimSpace(sceneID) == "" {
		return nil, fmt.Errorf("wechat: scene id is required")
	}

	apiToken, err := c.clientCredentialToken(ctx)
	if err != nil {
		return nil, err
	}

	req := qrcodeRequest{ExpireSeconds: expireSeconds, ActionName: "QR_STR_SCENE"}
	req.ActionInfo.Scene.SceneStr = sceneID

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("wechat: marshal qrcode request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.APIBaseURL, "/") + "/cgi-bin/qrcode/create?access_token=" + url.QueryEscape(apiToken)

	var resp qrcodeResponse
	if err := c.postJSON(ctx, endpoint, body, &resp); err != nil {
		return nil, err
	}

	return &domain.QrcodeTicket{
		SceneID:       sceneID,
		URL:           resp.URL,
		Ticket:        resp.Ticket,
		ExpireSeconds: resp.ExpireSeconds,
	}, nil
}

type clientCredentialResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// clientCredentialToken returns the cached API access token, refreshing
// it through the client_credential grant when stale.
func (c *Client) clientCredentialToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.apiToken != "" && time.Now().Before(c.apiTokenExp) {
		return c.apiToken, nil
	}

	q := url.Values{}
	q.Set("grant_type", "client_credential")
	q.Set("appid", c.cfg.AppID)
	q.Set("secret", c.cfg.Secret)

	endpoint := strings.TrimRight(c.cfg.APIBaseURL, "/") + "/cgi-bin/token?" + q.Encode()

	var resp clientCredentialResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("wechat: client credential response missing access_token")
	}

	// Refresh one minute ahead of the reported expiry.
	c.apiToken = resp.AccessToken
	c.apiTokenExp = time.Now().Add(time.Duration(resp.ExpiresIn)*time.Second - time.Minute)

	return c.apiToken, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("wechat: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	return c.doJSON(req, out)
}

func (c *Client) postJSON(ctx context.Context, endpoint string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("wechat: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.doJSON(req, out)
}

// doJSON executes the request and decodes the body as JSON regardless
// of the reported content type: WeChat serves JSON as text/plain.
func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("wechat: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("wechat: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wechat: %s returned status %d: %s", req.URL.Path, resp.StatusCode, string(payload))
	}

	// Detect the provider error shape before decoding into the caller's
	// structure: errcode is absent (or zero) on success.
	var apiErr APIError
	if err := json.Unmarshal(payload, &apiErr); err == nil && apiErr.Code != 0 {
		return &apiErr
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("wechat: decode response: %w", err)
	}

	return nil
}

var _ port.QrcodeProvider = (*Client)(nil)
