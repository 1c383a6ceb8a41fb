package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mallkit/passport/internal/usecase"
)

// OAuthHandler exposes the third-party login flow: authorization URL
// issuance and the provider callback.
type OAuthHandler struct {
	oauth *usecase.OAuth2LoginService
	login *usecase.LoginService
}

// NewOAuthHandler constructs OAuthHandler.
func NewOAuthHandler(oauth *usecase.OAuth2LoginService, login *usecase.LoginService) *OAuthHandler {
	return &OAuthHandler{oauth: oauth, login: login}
}

// RegisterRoutes binds OAuth2 routes.
func (h *OAuthHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/authorize/:registrationId", h.authorize)
	r.GET("/callback", h.callback)
}

var oauthErrorCases = []ErrorCase{
	{Err: usecase.ErrNoStrategyForProvider, Status: http.StatusNotFound, Message: "unknown provider"},
	{Err: usecase.ErrStateInvalidOrExpired, Status: http.StatusUnauthorized, Message: "state invalid or expired"},
	{Err: usecase.ErrProviderFailure, Status: http.StatusBadGateway, Message: "provider request failed"},
}

// authorize redirects the browser to the provider authorization page.
// Clients that cannot follow redirects may pass ?redirect=false to
// receive the URL in the body instead.
func (h *OAuthHandler) authorize(c *gin.Context) {
	registrationID := c.Param("registrationId")

	prompt, err := h.oauth.BuildAuthorizationPrompt(c.Request.Context(), registrationID)
	if err != nil {
		RespondWithMappedError(c, err, oauthErrorCases, http.StatusInternalServerError, "authorization failed")
		return
	}

	if c.Query("redirect") == "false" {
		c.JSON(http.StatusOK, AuthorizeURLResponse{
			AuthorizationURL: prompt.URL,
			State:            prompt.State,
			AppID:            prompt.AppID,
			RedirectURI:      prompt.RedirectURI,
			Scope:            prompt.Scope,
		})
		return
	}

	c.Redirect(http.StatusFound, prompt.URL)
}

func (h *OAuthHandler) callback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "state and code are required"))
		return
	}

	result, err := h.login.CompleteOAuthLogin(c.Request.Context(), state, code)
	if err != nil {
		RespondWithMappedError(c, err, oauthErrorCases, http.StatusInternalServerError, "login failed")
		return
	}

	c.JSON(http.StatusOK, newLoginResponse(result))
}
