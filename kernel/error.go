package kernel

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.nhat.io/otelsql/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// MakeError records err on the current span, ends it and steps back to the parent.
func (rt *RequestRuntime) MakeError(err error) error {
	rt.RecordError(err)
	if rt.current > 0 {
		rt.EndBlock()
	}
	return err
}

func (rt *RequestRuntime) MakeErrorf(format string, args ...interface{}) error {
	return rt.MakeError(fmt.Errorf(format, args...))
}

// RecordError marks the current span as failed but keeps it open. Used for
// backend failures that are rendered inline instead of aborting the request.
func (rt *RequestRuntime) RecordError(err error) {
	rt.Span.RecordError(err)
	rt.Span.SetStatus(codes.Error, err.Error())
	rt.Error = err

	rt.AppRuntime.Diagnostic.CountError(rt.SpanContext, metric.WithAttributes(
		attribute.KeyValue("http.route", rt.RequestContext.FullPath()),
	))
}

func (rt *RequestRuntime) TraceID() string {
	return rt.Span.SpanContext().TraceID().String()
}

// E aborts the request. Browsers get the error page, API clients get JSON.
func (rt *RequestRuntime) E(code int, err error) *RequestRuntime {
	msg := rt.MakeError(err).Error()
	log.Error().Err(err).Int("status", code).Str("trace_id", rt.TraceID()).Msg("request failed")

	body := gin.H{
		"Title":   "Something went wrong",
		"error":   msg,
		"traceId": rt.TraceID(),
	}
	c := rt.RequestContext
	switch c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) {
	case gin.MIMEJSON:
		c.AbortWithStatusJSON(code, gin.H{"error": msg, "traceId": rt.TraceID()})
	default:
		body["Status"] = code
		c.HTML(code, "error.html", body)
		c.Abort()
	}
	return rt
}

func (rt *RequestRuntime) Ef(code int, format string, args ...interface{}) *RequestRuntime {
	return rt.E(code, fmt.Errorf(format, args...))
}
