package domain

// AuthorizationRequest is the in-flight OAuth2 authorization payload bound
// to a state nonce for the duration of the redirect round trip.
type AuthorizationRequest struct {
	RegistrationID string   `json:"registrationId"`
	ClientID       string   `json:"clientId"`
	RedirectURI    string   `json:"redirectUri"`
	Scopes         []string `json:"scopes,omitempty"`
	// AccountID disambiguates among multiple configured provider
	// accounts sharing one provider family (e.g. several WeChat apps).
	AccountID string `json:"accountId,omitempty"`
}

// AuthorizationPrompt is what a client needs to start the redirect:
// the assembled authorization URL plus the components a non-browser
// caller renders itself (native WeChat SDKs take the app id and scope
// rather than a URL).
type AuthorizationPrompt struct {
	URL         string
	State       string
	AppID       string
	RedirectURI string
	Scope       string
}

// ProviderUserInfo is the normalized user-info shape every provider
// strategy reduces its raw profile payload to.
type ProviderUserInfo struct {
	Provider  string         `json:"provider"`
	OpenID    string         `json:"openId"`
	UnionID   string         `json:"unionId,omitempty"`
	Nickname  string         `json:"nickname,omitempty"`
	Email     string         `json:"email,omitempty"`
	AvatarURL string         `json:"avatarUrl,omitempty"`
	// RawAttributes retains the provider-specific fields, annotated with
	// the originating registration id for downstream disambiguation.
	RawAttributes map[string]any `json:"rawAttributes,omitempty"`
}
