package response

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKeyRequestID is the Gin context key the response metadata builder
// reads the request ID from.
const ContextKeyRequestID = "request_id"

// requestIDHeader carries the ID on both sides: clients may supply their own
// for cross-system tracing, and every response echoes the effective one.
const requestIDHeader = "X-Request-ID"

// RequestIDMiddleware attaches a request ID to every request, minting one
// when the client did not send its own.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Set(ContextKeyRequestID, reqID)
		c.Header(requestIDHeader, reqID)
		c.Next()
	}
}
