// Package httpkit holds the gin helpers shared by every HTTP surface.
package httpkit

import (
	"errors"
	"net/http"

	"searchahouse/platform/apperr"

	"github.com/gin-gonic/gin"
)

// retryAfterSeconds is advertised on 503 responses caused by a dependency outage.
const retryAfterSeconds = "5"

type ErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

func JSON(c *gin.Context, status int, payload interface{}) {
	c.JSON(status, payload)
}

func OK(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusOK, payload)
}

func Error(c *gin.Context, status int, message string, details interface{}) {
	c.JSON(status, ErrorResponse{Error: message, Details: details})
}

// HandleError writes err as a JSON error body and reports whether it did.
// Typed errors keep their message and details; anything else becomes an
// opaque 500. The error is attached to the context for the request logger.
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	_ = c.Error(err)

	var domainErr *apperr.Error
	if !errors.As(err, &domainErr) {
		Error(c, http.StatusInternalServerError, "internal error", nil)
		return true
	}
	if domainErr.Retryable() {
		c.Header("Retry-After", retryAfterSeconds)
	}
	Error(c, domainErr.HTTPStatus(), domainErr.Message, domainErr.Details)
	return true
}
