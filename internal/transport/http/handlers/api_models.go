package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/mallkit/passport/internal/core/domain"
	"github.com/mallkit/passport/internal/infra/logger"
)

// ErrorResponse represents a generic error payload with the request
// identifier for correlation.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// NewErrorResponse creates an error response with the request id from context.
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	requestID, _ := c.Request.Context().Value(logger.RequestIDKey{}).(string)

	return ErrorResponse{
		Error:     errorMsg,
		RequestID: requestID,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// PasswordLoginRequest defines the payload for the password login endpoint.
type PasswordLoginRequest struct {
	UserType   string `json:"user_type" binding:"required"`
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// CodeSendRequest defines the payload requesting a verification code.
type CodeSendRequest struct {
	UserType   string `json:"user_type" binding:"required"`
	Identifier string `json:"identifier" binding:"required"`
}

// CodeSendResponse acknowledges code dispatch. Code is only populated
// outside production.
type CodeSendResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// CodeLoginRequest defines the payload for the SMS code login endpoint.
type CodeLoginRequest struct {
	UserType   string `json:"user_type" binding:"required"`
	Identifier string `json:"identifier" binding:"required"`
	Code       string `json:"code" binding:"required"`
}

// TokenRefreshRequest represents the payload to rotate a refresh token.
type TokenRefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// TokenValidateRequest asks whether a token is the live session for a subject.
type TokenValidateRequest struct {
	Token   string `json:"token" binding:"required"`
	Subject string `json:"subject" binding:"required"`
}

// TokenValidateResponse reports the validation verdict.
type TokenValidateResponse struct {
	Valid bool `json:"valid"`
}

// LogoutRequest carries the optional refresh token to revoke alongside
// the session.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LoginResponse is the session material returned by every login flow.
type LoginResponse struct {
	Subject          string `json:"subject"`
	UserType         string `json:"user_type"`
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int64  `json:"expires_in"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	RefreshExpiresIn int64  `json:"refresh_expires_in,omitempty"`
}

func newLoginResponse(result *domain.LoginResult) LoginResponse {
	return LoginResponse{
		Subject:          result.Subject,
		UserType:         string(result.UserType),
		AccessToken:      result.Token,
		TokenType:        result.TokenType,
		ExpiresIn:        result.ExpiresIn,
		RefreshToken:     result.RefreshToken,
		RefreshExpiresIn: result.RefreshExpiresIn,
	}
}

// AuthorizeURLResponse returns the provider redirect target along with
// the state and URL components for clients that assemble the request
// themselves.
type AuthorizeURLResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
	AppID            string `json:"app_id,omitempty"`
	RedirectURI      string `json:"redirect_uri,omitempty"`
	Scope            string `json:"scope,omitempty"`
}

// QrcodeCreateResponse returns the freshly minted QR ticket.
type QrcodeCreateResponse struct {
	SceneID       string `json:"scene_id"`
	QrcodeURL     string `json:"qrcode_url"`
	Ticket        string `json:"ticket,omitempty"`
	ExpireSeconds int    `json:"expire_seconds"`
}

// QrcodeStatusResponse reports the polling state and, exactly once
// after authorization, the session material.
type QrcodeStatusResponse struct {
	State int            `json:"qrcode_state"`
	Login *LoginResponse `json:"login,omitempty"`
}
