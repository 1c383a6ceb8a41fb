package qrcode

import (
	"context"
	"net/url"
	"strings"

	"github.com/mallkit/passport/internal/core/domain"
	"github.com/mallkit/passport/internal/core/port"
)

// LocalProvider mints scan-to-login URLs without an external provider.
// The companion app opens the URL and drives the scene through its
// scan and authorize transitions. Used when no WeChat application is
// registered.
type LocalProvider struct {
	baseURL string
}

// NewLocalProvider constructs the provider. The base URL is the
// deep-link root the QR content points at.
func NewLocalProvider(baseURL string) *LocalProvider {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "passport://qrcode/login"
	}
	return &LocalProvider{baseURL: baseURL}
}

// CreateQrcode builds the scene deep link.
func (p *LocalProvider) CreateQrcode(_ context.Context, _ string, sceneID string, expireSeconds int) (*domain.QrcodeTicket, error) {
	return &domain.QrcodeTicket{
		SceneID:       sceneID,
		URL:           p.baseURL + "?scene=" + url.QueryEscape(sceneID),
		ExpireSeconds: expireSeconds,
	}, nil
}

var _ port.QrcodeProvider = (*LocalProvider)(nil)
