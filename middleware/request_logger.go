package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/contractscore/pkg/logger"
)

// RequestLogger logs one line per request at a level chosen by status code.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"status", status,
			"method", c.Request.Method,
			"path", path,
			"route", c.FullPath(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"bytes", c.Writer.Size(),
		}
		if query != "" {
			attrs = append(attrs, "query", query)
		}
		if id := c.Param("id"); id != "" {
			attrs = append(attrs, "contract_id", id)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		// request_id and username come from the request context
		log := logger.WithContext(c.Request.Context())
		switch {
		case status >= 500:
			log.Error("request completed", attrs...)
		case status >= 400:
			log.Warn("request completed", attrs...)
		default:
			log.Info("request completed", attrs...)
		}
	}
}
