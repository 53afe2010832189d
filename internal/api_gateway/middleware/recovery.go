package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// Recovery turns a panic into a 500 envelope and logs the stack
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				attrs := []any{
					"error", r,
					"stack", string(debug.Stack()),
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				}
				if correlationID := GetCorrelationID(c); correlationID != "" {
					attrs = append(attrs, "correlation_id", correlationID)
				}
				logger.Error("Panic recovered", attrs...)

				abortWithError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An internal server error occurred")
			}
		}()

		c.Next()
	}
}
