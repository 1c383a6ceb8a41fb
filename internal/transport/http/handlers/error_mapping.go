package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorCase maps a sentinel error to an HTTP status and message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// RespondWithMappedError matches the error against the cases in order
// and writes the first hit, falling back to the generic response.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, mapped := range cases {
		if mapped.Err != nil && errors.Is(err, mapped.Err) {
			c.JSON(mapped.Status, NewErrorResponse(c, mapped.Message))
			return
		}
	}

	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}
