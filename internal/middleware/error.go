package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-sync/internal/handler"
	apperrors "github.com/jwalitptl/clinic-sync/pkg/errors"
)

// ErrorHandler logs the errors attached to the context. When the handler
// did not answer, the last error is written as a fail response.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		requestID := c.GetString(ContextRequestID)
		for _, e := range c.Errors {
			status := apperrors.HTTPStatus(e.Err)
			ev := log.Warn()
			if status >= http.StatusInternalServerError {
				ev = log.Error()
			}
			ev.Err(e.Err).
				Str("request_id", requestID).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Int("status", status).
				Msg("Request error")
		}

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last().Err
		status := http.StatusInternalServerError
		if err, ok := lastErr.(interface{ StatusCode() int }); ok {
			status = err.StatusCode()
		}
		message := http.StatusText(status)
		if appErr, ok := apperrors.As(lastErr); ok {
			message = appErr.Message
		}
		c.JSON(status, handler.NewErrorResponse(message))
	}
}
