package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-sync/internal/handler"
)

// SizeLimit rejects bodies larger than maxBytes. A body without a declared
// length is cut off by http.MaxBytesReader and fails to bind.
func SizeLimit(maxBytes int64) gin.HandlerFunc {
	msg := fmt.Sprintf("Request size exceeds limit: body size exceeds %d bytes", maxBytes)

	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, handler.NewErrorResponse(msg))
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
