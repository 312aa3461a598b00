package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/looplj/quotahub/internal/tracing"
)

// WithLoggingTracing saves the request id and operation name to the request context
// so every log line of the request carries them.
func WithLoggingTracing(config tracing.Config) gin.HandlerFunc {
	requestHeader := config.RequestHeader
	if requestHeader == "" {
		requestHeader = "QH-Request-Id"
	}

	return func(c *gin.Context) {
		requestID := c.GetHeader(requestHeader)
		if requestID == "" {
			requestID = tracing.GenerateRequestID()
		}

		c.Header(requestHeader, requestID)

		ctx := tracing.WithRequestID(c.Request.Context(), requestID)
		ctx = tracing.WithOperationName(ctx, fmt.Sprintf("%s %s", c.Request.Method, c.FullPath()))

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
