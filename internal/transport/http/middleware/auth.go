package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mallkit/passport/internal/infra/security"
	"github.com/mallkit/passport/internal/usecase"
)

// Context keys set by RequireAuth.
const (
	SubjectKey  = "subject"
	UserTypeKey = "user_type"
	ClaimsKey   = "claims"
)

// ErrorResponse matches the handlers.ErrorResponse structure.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:     errorMsg,
		RequestID: requestIDFromContext(c.Request.Context()),
	}
}

// RequireAuth validates the Authorization header against the canonical
// session: the token must parse, and it must be the copy most recently
// issued for its subject.
func RequireAuth(tokens *usecase.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid authorization format: expected 'Bearer <token>'"))
			return
		}

		token := strings.TrimSpace(parts[1])
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing access token"))
			return
		}

		claims, err := tokens.Parse(token)
		if err != nil {
			switch err {
			case security.ErrTokenExpired:
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "access token expired"))
			default:
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "invalid access token"))
			}
			return
		}

		if !tokens.Validate(c.Request.Context(), token, claims.Subject) {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "session superseded or revoked"))
			return
		}

		c.Set(SubjectKey, claims.Subject)
		c.Set(UserTypeKey, claims.UserType)
		c.Set(ClaimsKey, claims)

		c.Next()
	}
}

// RequireUserType restricts a route to the named user populations.
func RequireUserType(userTypes ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(userTypes))
	for _, t := range userTypes {
		allowed[t] = true
	}

	return func(c *gin.Context) {
		value, exists := c.Get(UserTypeKey)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "authentication required"))
			return
		}

		userType, ok := value.(string)
		if !ok || !allowed[userType] {
			c.AbortWithStatusJSON(http.StatusForbidden,
				newErrorResponse(c, "insufficient permissions"))
			return
		}

		c.Next()
	}
}

// AuthenticatedSubject retrieves the subject set by RequireAuth.
func AuthenticatedSubject(c *gin.Context) (string, bool) {
	value, exists := c.Get(SubjectKey)
	if !exists {
		return "", false
	}

	subject, ok := value.(string)
	return subject, ok && subject != ""
}
