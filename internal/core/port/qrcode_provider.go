package port

import (
	"context"

	"github.com/mallkit/passport/internal/core/domain"
)

// QrcodeProvider generates login QR codes through an external provider
// API (e.g. the WeChat temporary-scene ticket endpoint).
type QrcodeProvider interface {
	CreateQrcode(ctx context.Context, accountID, sceneID string, expireSeconds int) (*domain.QrcodeTicket, error)
}
