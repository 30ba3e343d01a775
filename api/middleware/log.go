package middleware

import (
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openfoodhub/insight-server/api/httpbase"
)

// Log emits one structured access log line per request on the default
// JSON handler, independent of the process-level log configuration.
func Log() gin.HandlerFunc {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	return func(ctx *gin.Context) {
		start := time.Now()

		ctx.Next()

		logger.InfoContext(ctx, "http request",
			slog.String("method", ctx.Request.Method),
			slog.String("url", ctx.Request.URL.RequestURI()),
			slog.Int("status", ctx.Writer.Status()),
			slog.Int64("latency_ms", time.Since(start).Milliseconds()),
			slog.String("ip", ctx.ClientIP()),
			slog.String("current_user", httpbase.GetCurrentUser(ctx)),
			slog.Any("auth_type", httpbase.GetAuthType(ctx)),
		)
	}
}
