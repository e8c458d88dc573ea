package api

import (
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"access-workflow/internal/common/auth"
	"access-workflow/internal/common/errors"
	"access-workflow/internal/common/logger"
	"access-workflow/internal/common/metrics"

	"github.com/gin-gonic/gin"
)

const callerKey = "caller"

// Authenticate resolves the bearer token into the caller identity. Missing
// or invalid tokens abort with 401.
func Authenticate(authenticator auth.Authenticator, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortWithError(c, errors.NewAuthenticationError("authorization header is required"))
			return
		}
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			abortWithError(c, errors.NewAuthenticationError("bearer token is malformed"))
			return
		}

		identity, err := authenticator.Authenticate(c.Request.Context(), token)
		if err != nil {
			log.Debug("Token rejected", map[string]interface{}{
				"path":  c.FullPath(),
				"error": err.Error(),
			})
			abortWithError(c, err)
			return
		}

		c.Set(callerKey, identity)
		c.Next()
	}
}

// CallerID returns the authenticated user id, or "" outside Authenticate.
func CallerID(c *gin.Context) string {
	v, ok := c.Get(callerKey)
	if !ok {
		return ""
	}
	if id, ok := v.(*auth.Identity); ok {
		return id.UserID
	}
	return ""
}

// Recovery turns a handler panic into a 500 and logs the stack.
func Recovery(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("Panic in HTTP handler", map[string]interface{}{
					"method": c.Request.Method,
					"path":   c.Request.URL.Path,
					"panic":  r,
					"stack":  string(debug.Stack()),
				})
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{
					Code:    string(errors.ErrCodeInternal),
					Message: "internal server error",
				})
			}
		}()
		c.Next()
	}
}

// RequestLogger logs every request and feeds the HTTP metrics.
func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)

		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(elapsed.Seconds())

		fields := map[string]interface{}{
			"method":    c.Request.Method,
			"route":     route,
			"status":    status,
			"latencyMs": elapsed.Milliseconds(),
		}
		if id := CallerID(c); id != "" {
			fields["callerId"] = id
		}
		if status >= http.StatusInternalServerError {
			log.Error("HTTP request failed", fields)
			return
		}
		log.Info("HTTP request", fields)
	}
}
