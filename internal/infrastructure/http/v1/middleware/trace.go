package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	appctx "stockroom/internal/core/context"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderTraceID   = "X-Trace-ID"
)

// Trace attaches trace and request ids to the request context and echoes
// them in the response headers. An active otel span supplies the trace id
// when the caller sent none.
func Trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		traceID := c.GetHeader(HeaderTraceID)
		if traceID == "" {
			if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
				traceID = sc.TraceID().String()
			} else {
				traceID = uuid.NewString()
			}
		}

		c.Request = c.Request.WithContext(appctx.WithTrace(ctx, &appctx.TraceContext{
			TraceID:   traceID,
			RequestID: requestID,
		}))
		c.Set("request_id", requestID)

		c.Header(HeaderRequestID, requestID)
		c.Header(HeaderTraceID, traceID)
		c.Next()
	}
}
