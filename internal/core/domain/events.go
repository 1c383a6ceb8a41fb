package domain

import "time"

// UserLoggedInEvent is published after a successful authentication.
type UserLoggedInEvent struct {
	EventID    string    `json:"event_id"`
	SubjectID  string    `json:"subject_id"`
	UserType   UserType  `json:"user_type"`
	Method     string    `json:"method"`
	OccurredAt time.Time `json:"occurred_at"`
}

// LoginMethod values recorded on UserLoggedInEvent.
const (
	LoginMethodPassword = "password"
	LoginMethodSMSCode  = "sms_code"
	LoginMethodOAuth2   = "oauth2"
	LoginMethodQrcode   = "qrcode"
)

// OAuthUserLoadedEvent is published once a third-party profile has been
// normalized. The owning business module subscribes to it to provision
// or link local accounts; the authentication core never references
// business entities directly.
type OAuthUserLoadedEvent struct {
	EventID        string    `json:"event_id"`
	RegistrationID string    `json:"registration_id"`
	Provider       string    `json:"provider"`
	OpenID         string    `json:"open_id"`
	UnionID        string    `json:"union_id,omitempty"`
	Nickname       string    `json:"nickname,omitempty"`
	Email          string    `json:"email,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}
