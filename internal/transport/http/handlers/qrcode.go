package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mallkit/passport/internal/transport/http/middleware"
	"github.com/mallkit/passport/internal/usecase"
)

// QrcodeHandler exposes the scan-to-login flow: ticket creation, status
// polling by the web client, and scan/authorize/cancel transitions
// driven from the already-authenticated app.
type QrcodeHandler struct {
	qrcodes *usecase.QrcodeLoginService
	login   *usecase.LoginService
	tokens  *usecase.TokenService
}

// NewQrcodeHandler constructs QrcodeHandler.
func NewQrcodeHandler(qrcodes *usecase.QrcodeLoginService, login *usecase.LoginService, tokens *usecase.TokenService) *QrcodeHandler {
	return &QrcodeHandler{qrcodes: qrcodes, login: login, tokens: tokens}
}

// RegisterRoutes binds QR login routes. The confirm-side transitions
// require an authenticated member session.
func (h *QrcodeHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/create", h.create)
	r.GET("/status/:sceneId", h.status)

	authed := r.Group("")
	authed.Use(middleware.RequireAuth(h.tokens), middleware.RequireUserType("member"))
	authed.POST("/scan/:sceneId", h.scan)
	authed.POST("/authorize/:sceneId", h.authorize)
	authed.POST("/cancel/:sceneId", h.cancel)
}

var qrcodeErrorCases = []ErrorCase{
	{Err: usecase.ErrInvalidArgument, Status: http.StatusBadRequest, Message: "invalid scene"},
	{Err: usecase.ErrStateInvalidOrExpired, Status: http.StatusConflict, Message: "scene invalid or expired"},
	{Err: usecase.ErrProviderFailure, Status: http.StatusBadGateway, Message: "provider request failed"},
}

func (h *QrcodeHandler) create(c *gin.Context) {
	ticket, err := h.qrcodes.Create(c.Request.Context(), c.Query("account_id"))
	if err != nil {
		RespondWithMappedError(c, err, qrcodeErrorCases, http.StatusInternalServerError, "qrcode creation failed")
		return
	}

	c.JSON(http.StatusOK, QrcodeCreateResponse{
		SceneID:       ticket.SceneID,
		QrcodeURL:     ticket.URL,
		Ticket:        ticket.Ticket,
		ExpireSeconds: ticket.ExpireSeconds,
	})
}

func (h *QrcodeHandler) status(c *gin.Context) {
	state, result, err := h.qrcodes.Status(c.Request.Context(), c.Param("sceneId"))
	if err != nil {
		RespondWithMappedError(c, err, qrcodeErrorCases, http.StatusInternalServerError, "status check failed")
		return
	}

	resp := QrcodeStatusResponse{State: int(state)}
	if result != nil {
		login := newLoginResponse(result)
		resp.Login = &login
	}

	c.JSON(http.StatusOK, resp)
}

func (h *QrcodeHandler) scan(c *gin.Context) {
	if err := h.qrcodes.MarkScanned(c.Request.Context(), c.Param("sceneId")); err != nil {
		RespondWithMappedError(c, err, qrcodeErrorCases, http.StatusInternalServerError, "scan failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "scanned"})
}

func (h *QrcodeHandler) authorize(c *gin.Context) {
	subject, ok := middleware.AuthenticatedSubject(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if _, err := h.login.AuthorizeQrcode(c.Request.Context(), c.Param("sceneId"), subject); err != nil {
		RespondWithMappedError(c, err, qrcodeErrorCases, http.StatusInternalServerError, "authorization failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "authorized"})
}

func (h *QrcodeHandler) cancel(c *gin.Context) {
	if err := h.qrcodes.Cancel(c.Request.Context(), c.Param("sceneId")); err != nil {
		RespondWithMappedError(c, err, qrcodeErrorCases, http.StatusInternalServerError, "cancel failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "canceled"})
}
