package api

import (
	"errors"
	"net/http"

	"ebike-booking/internal/service"
	"ebike-booking/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusFor maps a domain error kind to its HTTP status
func statusFor(kind error) int {
	switch {
	case errors.Is(kind, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(kind, service.ErrIdentityMismatch):
		return http.StatusForbidden
	case errors.Is(kind, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(kind, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(kind, service.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders {code, error, ...detail}
func writeError(c *gin.Context, err error) {
	var e *service.Error
	if !errors.As(err, &e) {
		util.LoggerFromContext(c.Request.Context()).Error("Unhandled error", zap.String("path", c.FullPath()), zap.Error(err))
		abortJSON(c, http.StatusInternalServerError, "internal", "internal server error")
		return
	}

	status := statusFor(e.Kind)
	if status >= http.StatusInternalServerError {
		util.LoggerFromContext(c.Request.Context()).Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}

	body := gin.H{"code": e.Code, "error": e.Reason}
	for k, v := range e.Detail {
		body[k] = v
	}
	c.AbortWithStatusJSON(status, body)
}

func abortJSON(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"code": code, "error": message})
}
