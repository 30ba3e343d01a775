package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	bld "github.com/openfoodhub/insight-server/builder/prometheus"
)

// Recovery turns handler panics into 500 responses and counts them.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				bld.HttpPanicsTotal.Inc()
				slog.ErrorContext(c.Request.Context(), "recovered from handler panic",
					slog.String("method", c.Request.Method),
					slog.String("url", c.Request.URL.RequestURI()),
					slog.Any("error", err),
					slog.String("stack", string(debug.Stack())),
				)
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}
