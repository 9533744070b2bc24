package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	obscontext "github.com/smallbiznis/tenantdesk/internal/observability/context"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	HeaderRequestID = "X-Request-Id"
	HeaderOperator  = "X-Operator"

	// RenewalIDKey is the gin context key route middleware uses to expose a renewal id.
	RenewalIDKey = "renewal_id"
)

// MiddlewareConfig controls request logging behavior.
type MiddlewareConfig struct {
	Debug bool
	// ErrorClassifier maps a handler error to its response type and code.
	ErrorClassifier func(err error) (string, string)
}

// GinMiddleware stamps each request with a request id and the console operator,
// then writes one http_request entry once the handler chain returns.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := requestIDFor(c)

		ctx := obscontext.WithRequestID(c.Request.Context(), requestID)
		ctx = obscontext.WithOperator(ctx, strings.TrimSpace(c.GetHeader(HeaderOperator)))
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		entry := requestEntry{
			route:  routeOf(c),
			status: c.Writer.Status(),
		}
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", entry.route),
			zap.Int("status", entry.status),
			zap.Duration("duration", time.Since(start)),
			zap.Int64("bytes_in", max(c.Request.ContentLength, 0)),
			zap.Int("bytes_out", max(c.Writer.Size(), 0)),
		}
		if renewalID := c.GetString(RenewalIDKey); renewalID != "" {
			fields = append(fields, zap.String("renewal_id", renewalID))
		}

		if lastErr := c.Errors.Last(); lastErr != nil {
			if cfg.ErrorClassifier != nil {
				entry.errorType, entry.errorCode = cfg.ErrorClassifier(lastErr.Err)
			}
			fields = append(fields,
				zap.String("error_type", entry.errorType),
				zap.String("error_code", entry.errorCode),
			)
			if cfg.Debug {
				fields = append(fields, zap.Error(lastErr.Err))
			}
		}

		if ce := FromContext(c.Request.Context()).Check(entry.level(), "http_request"); ce != nil {
			ce.Write(fields...)
		}
	}
}

type requestEntry struct {
	route     string
	status    int
	errorType string
	errorCode string
}

// level keeps probes and refused commits out of the info stream.
// An operator still collecting payment legs hits 422 on commit routinely.
func (e requestEntry) level() zapcore.Level {
	switch {
	case e.route == "/metrics", e.route == "/health":
		return zapcore.DebugLevel
	case e.status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case e.status == http.StatusUnprocessableEntity && e.errorType == "insufficient_payment" && strings.HasSuffix(e.route, "/commit"):
		return zapcore.DebugLevel
	case e.status == http.StatusConflict:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

func requestIDFor(c *gin.Context) string {
	// http.Header canonicalizes, so X-Request-ID and X-Request-Id are the same key.
	requestID := strings.TrimSpace(c.GetHeader(HeaderRequestID))
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set("request_id", requestID)
	c.Header(HeaderRequestID, requestID)
	return requestID
}

func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unknown"
}
