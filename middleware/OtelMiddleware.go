package middleware

import (
	"bytes"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"go.nhat.io/otelsql/attribute"
	"go.opentelemetry.io/otel/metric"

	"git.sr.ht/~aondrejcak/policy-console/kernel"
)

const maxRecordedBody = 4 * 1024

// TracerMiddleware opens the request runtime every handler reads via c.MustGet("rt").
func TracerMiddleware(art *kernel.AppRuntime) gin.HandlerFunc {
	return func(c *gin.Context) {
		rt := kernel.InitRequest(art, c)

		requestId := c.GetHeader("X-Request-ID")
		if requestId == "" {
			requestId, _ = kernel.UuidV7()
		}
		c.Header("X-Request-ID", requestId)

		rt.Span.SetAttributes(
			attribute.KeyValue("http.method", c.Request.Method),
			attribute.KeyValue("http.url", c.Request.URL.String()),
			attribute.KeyValue("http.host", c.Request.Host),
			attribute.KeyValue("http.request_id", requestId),
		)

		if recordableBody(c) {
			bodyBytes, _ := c.GetRawData()
			rt.Span.SetAttributes(attribute.KeyValue("http.request_body", string(bodyBytes)))
			c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}

		c.Set("rt", rt)
		c.Next()

		status := c.Writer.Status()
		rt.Span.SetAttributes(
			attribute.KeyValue("http.status_code", status),
			attribute.KeyValue("http.response_size", c.Writer.Size()),
		)
		art.Diagnostic.CountRequest(rt.SpanContext, metric.WithAttributes(
			attribute.KeyValue("http.method", c.Request.Method),
			attribute.KeyValue("http.route", c.FullPath()),
			attribute.KeyValue("http.status_code", status),
		))

		rt.Finish()
	}
}

// Uploads and credentials stay out of spans.
func recordableBody(c *gin.Context) bool {
	if c.Request.Body == nil || c.Request.ContentLength <= 0 || c.Request.ContentLength > maxRecordedBody {
		return false
	}
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		return false
	}
	return c.FullPath() != kernel.LOGIN_PATH
}
