package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

type CacheConfig struct {
	MaxAge  int
	Private bool
	Vary    []string
}

// cacheWriter picks the Cache-Control value once the status is known,
// right before the headers go out.
type cacheWriter struct {
	gin.ResponseWriter
	cacheControl string
	vary         string
	decided      bool
}

func (w *cacheWriter) decide() {
	if w.decided {
		return
	}
	w.decided = true

	status := w.Status()
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		w.Header().Set("Cache-Control", "no-store")
		return
	}
	w.Header().Set("Cache-Control", w.cacheControl)
	if w.vary != "" {
		w.Header().Set("Vary", w.vary)
	}
}

func (w *cacheWriter) WriteHeaderNow() {
	w.decide()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *cacheWriter) Write(data []byte) (int, error) {
	w.decide()
	return w.ResponseWriter.Write(data)
}

func (w *cacheWriter) WriteString(s string) (int, error) {
	w.decide()
	return w.ResponseWriter.WriteString(s)
}

// Cache sets Cache-Control on 2xx GET responses and no-store on everything else.
func Cache(config CacheConfig) gin.HandlerFunc {
	directives := []string{"public"}
	if config.Private {
		directives[0] = "private"
	}
	if config.MaxAge > 0 {
		directives = append(directives, "max-age="+strconv.Itoa(config.MaxAge))
	}
	cacheControl := strings.Join(directives, ", ")
	vary := strings.Join(config.Vary, ", ")

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Header("Cache-Control", "no-store")
			c.Next()
			return
		}

		w := &cacheWriter{ResponseWriter: c.Writer, cacheControl: cacheControl, vary: vary}
		c.Writer = w
		c.Next()
		if !w.Written() {
			w.decide()
		}
	}
}
