package middleware

import (
	"context"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AnTengye/contractscore/pkg/logger"
)

const RequestIDHeader = "X-Request-ID"

// incoming ids are echoed into logs and headers, so only simple tokens pass
var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._\-]{1,64}$`)

// RequestID reuses a well-formed X-Request-ID header or generates one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if !validRequestID.MatchString(requestID) {
			requestID = uuid.NewString()
		}

		c.Header(RequestIDHeader, requestID)
		c.Set("request_id", requestID)

		ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey, requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetRequestID gets the request ID from gin context
func GetRequestID(c *gin.Context) string {
	return c.GetString("request_id")
}
