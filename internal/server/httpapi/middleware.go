package httpapi

import (
	"math"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/and161185/placement/internal/convert"
	"github.com/and161185/placement/internal/errs"
	"github.com/and161185/placement/internal/limiter"
	"github.com/and161185/placement/internal/metrics"
	"github.com/and161185/placement/internal/model"
)

// TokenParser turns a bearer token into the actor it was issued to.
type TokenParser interface {
	ParseToken(token string) (model.Actor, error)
}

// Logging logs one line per request. Only metadata is logged, never bodies.
func Logging(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		log.Info("http",
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("dur", time.Since(start)),
			zap.String("peer", c.ClientIP()),
		)
	}
}

// Recover turns a handler panic into a 500 and logs the stack.
func Recover(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic",
					zap.Any("reason", r),
					zap.ByteString("stack", debug.Stack()),
					zap.String("route", c.FullPath()),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, convert.Error{Error: "internal error"})
			}
		}()
		c.Next()
	}
}

// Instrument records request latency by matched route.
func Instrument(met *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		met.ObserveHTTP(route, c.Writer.Status(), time.Since(start))
	}
}

func bearerToken(h string) string {
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

// Authenticate requires a valid bearer token and stores its actor in the
// request context.
func Authenticate(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, convert.Error{Error: "missing bearer token"})
			return
		}
		actor, err := tokens.ParseToken(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, convert.Error{Error: errs.ErrUnauthorized.Error()})
			return
		}
		c.Request = c.Request.WithContext(WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

// OptionalAuthenticate is Authenticate for routes that also serve anonymous
// callers. A present but invalid token is still rejected.
func OptionalAuthenticate(tokens TokenParser) gin.HandlerFunc {
	strict := Authenticate(tokens)
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}
		strict(c)
	}
}

// retryAfter renders d as whole seconds, rounded up and at least one.
func retryAfter(d time.Duration) string {
	secs := int64(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}

// RateLimit rejects callers over the window limit, keyed by client IP.
func RateLimit(w limiter.Window) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !w.Allow(c.Request.Context(), c.ClientIP()) {
			c.Header("Retry-After", retryAfter(w.Period()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, convert.Error{Error: errs.ErrRateLimited.Error()})
			return
		}
		c.Next()
	}
}
