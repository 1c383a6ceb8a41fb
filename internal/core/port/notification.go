package port

import "context"

// NotificationSender dispatches verification codes over an external
// channel (SMS or email). Delivery is fire-and-forget: failures are
// logged by the caller and never retried inside the core.
type NotificationSender interface {
	SendCode(ctx context.Context, identifier, code string) error
}
