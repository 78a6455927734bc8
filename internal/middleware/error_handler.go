package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"cashledger/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrorHandler turns errors attached with c.Error into a generic 500 and logs
// the real cause. Handlers that already wrote a typed error (PERSISTENCE_ERROR)
// keep their body; only the log line is added.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last()
		requestEvent(log.Error(), c).Err(err.Err).Msg("unhandled error")

		if c.Writer.Written() {
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, apierror.New("Internal server error"))
	}
}

// Recovery converts panics into 500 responses. Deferred releases in the
// handlers (the closing gate among them) have already run by the time it
// recovers.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				requestEvent(log.Error(), c).
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, apierror.New("Internal server error"))
			}
		}()
		c.Next()
	}
}

// Logger writes one line per request. 4xx responses log at warn and 5xx at
// error so refused ledger writes (423, 409) stand out from normal traffic.
// Health probes are not logged.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := log.Info()
		switch {
		case status >= http.StatusInternalServerError:
			ev = log.Error()
		case status >= http.StatusBadRequest:
			ev = log.Warn()
		}
		requestEvent(ev, c).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

func requestEvent(ev *zerolog.Event, c *gin.Context) *zerolog.Event {
	ev = ev.Str("request_id", c.GetString(RequestIDKey)).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path)
	if id := c.Param("id"); id != "" {
		ev = ev.Str("register_id", id)
	}
	if v, ok := c.Get(ClaimsKey); ok {
		if claims, ok := v.(*JWTClaims); ok {
			ev = ev.Str("tenant_id", claims.TenantID).Str("actor", claims.ActingAs().DisplayName())
		}
	}
	return ev
}
