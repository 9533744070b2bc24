package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	obsmiddleware "github.com/smallbiznis/tenantdesk/internal/observability/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RenewalContext exposes the renewal id to the request log and the server span.
func RenewalContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := strings.TrimSpace(c.Param("id")); id != "" {
			c.Set(obsmiddleware.RenewalIDKey, id)
			trace.SpanFromContext(c.Request.Context()).SetAttributes(attribute.String("renewal_id", id))
		}
		c.Next()
	}
}
