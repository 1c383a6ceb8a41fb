package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mallkit/passport/internal/core/domain"
	"github.com/mallkit/passport/internal/transport/http/middleware"
	"github.com/mallkit/passport/internal/usecase"
)

// AuthHandler exposes the credential login, code login, refresh, and
// logout endpoints.
type AuthHandler struct {
	login  *usecase.LoginService
	codes  *usecase.VerificationCodeService
	tokens *usecase.TokenService
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(login *usecase.LoginService, codes *usecase.VerificationCodeService, tokens *usecase.TokenService) *AuthHandler {
	return &AuthHandler{login: login, codes: codes, tokens: tokens}
}

// RegisterRoutes binds authentication routes, applying optional middleware ahead of login handlers.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, loginMiddlewares ...gin.HandlerFunc) {
	r.POST("/login", withMiddlewares(loginMiddlewares, h.loginWithPassword)...)
	r.POST("/code/send", withMiddlewares(loginMiddlewares, h.sendCode)...)
	r.POST("/code/login", withMiddlewares(loginMiddlewares, h.loginWithCode)...)
	r.POST("/refresh", h.refresh)
	r.POST("/token/validate", h.validateToken)
	r.POST("/logout", middleware.RequireAuth(h.tokens), h.logout)
}

func withMiddlewares(middlewares []gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	chain := append([]gin.HandlerFunc{}, middlewares...)
	return append(chain, handler)
}

var loginErrorCases = []ErrorCase{
	{Err: usecase.ErrInvalidArgument, Status: http.StatusBadRequest, Message: "invalid login payload"},
	{Err: usecase.ErrBadCredentials, Status: http.StatusUnauthorized, Message: "invalid credentials"},
	{Err: usecase.ErrUserNotFound, Status: http.StatusUnauthorized, Message: "account not found"},
	{Err: usecase.ErrAccountDisabled, Status: http.StatusForbidden, Message: "account disabled"},
	{Err: usecase.ErrNoProviderForUserType, Status: http.StatusBadRequest, Message: "unsupported user type"},
}

func (h *AuthHandler) loginWithPassword(c *gin.Context) {
	var req PasswordLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	result, err := h.login.LoginWithPassword(c.Request.Context(), domain.UserType(req.UserType), req.Identifier, req.Password)
	if err != nil {
		RespondWithMappedError(c, err, loginErrorCases, http.StatusInternalServerError, "login failed")
		return
	}

	c.JSON(http.StatusOK, newLoginResponse(result))
}

func (h *AuthHandler) sendCode(c *gin.Context) {
	var req CodeSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	code, err := h.codes.SendCode(c.Request.Context(), domain.UserType(req.UserType), req.Identifier)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidArgument, Status: http.StatusBadRequest, Message: "invalid payload"},
			{Err: usecase.ErrRateLimited, Status: http.StatusTooManyRequests, Message: "code already sent, retry later"},
		}, http.StatusInternalServerError, "failed to send verification code")
		return
	}

	c.JSON(http.StatusOK, CodeSendResponse{Message: "verification code sent", Code: code})
}

func (h *AuthHandler) loginWithCode(c *gin.Context) {
	var req CodeLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	result, err := h.login.LoginWithCode(c.Request.Context(), domain.UserType(req.UserType), req.Identifier, req.Code)
	if err != nil {
		RespondWithMappedError(c, err, loginErrorCases, http.StatusInternalServerError, "login failed")
		return
	}

	c.JSON(http.StatusOK, newLoginResponse(result))
}

func (h *AuthHandler) refresh(c *gin.Context) {
	var req TokenRefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid refresh payload"))
		return
	}

	result, err := h.login.RefreshSession(c.Request.Context(), req.RefreshToken)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidArgument, Status: http.StatusBadRequest, Message: "invalid refresh payload"},
			{Err: usecase.ErrBadCredentials, Status: http.StatusUnauthorized, Message: "invalid refresh token"},
		}, http.StatusInternalServerError, "refresh failed")
		return
	}

	c.JSON(http.StatusOK, newLoginResponse(result))
}

func (h *AuthHandler) validateToken(c *gin.Context) {
	var req TokenValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid validation payload"))
		return
	}

	valid := h.tokens.Validate(c.Request.Context(), req.Token, req.Subject)
	c.JSON(http.StatusOK, TokenValidateResponse{Valid: valid})
}

func (h *AuthHandler) logout(c *gin.Context) {
	subject, ok := middleware.AuthenticatedSubject(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req LogoutRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.login.Logout(c.Request.Context(), subject, req.RefreshToken); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "logout failed"))
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "logged out"})
}
