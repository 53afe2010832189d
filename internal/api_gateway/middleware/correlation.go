package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// CorrelationIDHeader carries the id in both directions
	CorrelationIDHeader = "X-Correlation-ID"
	// RequestIDHeader is honoured when a proxy sets it instead
	RequestIDHeader = "X-Request-ID"

	CorrelationIDKey = "correlation_id"

	maxCorrelationIDLen = 128
)

var correlationHeaders = []string{CorrelationIDHeader, RequestIDHeader}

// CorrelationID reuses a caller supplied id when it is safe to log, otherwise
// it mints a uuid. The id is echoed on the response and stored on the context.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := incomingCorrelationID(c)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(CorrelationIDKey, id)
		c.Header(CorrelationIDHeader, id)
		c.Next()
	}
}

func incomingCorrelationID(c *gin.Context) string {
	for _, header := range correlationHeaders {
		if id := c.GetHeader(header); validCorrelationID(id) {
			return id
		}
	}
	return ""
}

// validCorrelationID accepts short printable ASCII so the value can go into log lines as is
func validCorrelationID(id string) bool {
	if id == "" || len(id) > maxCorrelationIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

// GetCorrelationID returns the request's id, or "" outside the middleware
func GetCorrelationID(c *gin.Context) string {
	id, _ := c.Get(CorrelationIDKey)
	s, _ := id.(string)
	return s
}
