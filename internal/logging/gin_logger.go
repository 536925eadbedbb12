package logging

import (
	"errors"
	"net/http"
	"net/url"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// sensitiveQueryKeys are replaced before a callback URL is logged.
var sensitiveQueryKeys = []string{"code", "access_token", "accessToken"}

// GinLogrusLogger returns a Gin middleware that logs each callback request through
// logrus. Authorization codes in the query are masked.
//
// Output format: [2026-03-04 05:06:07] [debug] GET /callback?code=%2A%2A%2A%2A%2A 2ms path=/callback status=200
func GinLogrusLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		target := c.Request.URL.Path
		if raw := maskSensitiveQuery(c.Request.URL.RawQuery); raw != "" {
			target += "?" + raw
		}
		status := c.Writer.Status()
		entry := log.WithFields(log.Fields{
			"path":   c.Request.URL.Path,
			"status": status,
		})
		latency := time.Since(start).Truncate(time.Millisecond)

		if status >= http.StatusInternalServerError {
			entry.Errorf("%s %s %v", c.Request.Method, target, latency)
			return
		}
		entry.Debugf("%s %s %v", c.Request.Method, target, latency)
	}
}

// GinLogrusRecovery returns a Gin middleware that recovers from handler panics, logs
// them with the stack and answers 500.
func GinLogrusRecovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		if err, ok := recovered.(error); ok && errors.Is(err, http.ErrAbortHandler) {
			// net/http aborts the connection silently for this sentinel.
			panic(http.ErrAbortHandler)
		}

		log.WithFields(log.Fields{
			"path":  c.Request.URL.Path,
			"stack": string(debug.Stack()),
		}).Errorf("recovered from panic: %v", recovered)

		c.AbortWithStatus(http.StatusInternalServerError)
	})
}

func maskSensitiveQuery(raw string) string {
	if raw == "" {
		return ""
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return "<unparsable>"
	}
	for _, key := range sensitiveQueryKeys {
		if _, ok := values[key]; ok {
			values.Set(key, "*****")
		}
	}
	return values.Encode()
}
