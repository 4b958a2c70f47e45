package kernel

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"

	"git.sr.ht/~aondrejcak/policy-console/backend"
	"git.sr.ht/~aondrejcak/policy-console/models"
	"git.sr.ht/~aondrejcak/policy-console/store"
)

type spanCtxPair struct {
	span trace.Span
	ctx  context.Context
}

// RequestRuntime carries one request through the handlers. Spans form a stack:
// StepInto pushes a child of the current span, EndBlock and MakeError pop it.
type RequestRuntime struct {
	AppRuntime *AppRuntime
	Store      store.Store
	Backend    *backend.Client

	Session      *models.Session
	SessionToken string
	Operator     string

	RequestContext *gin.Context
	Span           trace.Span
	SpanContext    context.Context

	Error error

	pairs   []*spanCtxPair
	current int
}

func InitRequest(art *AppRuntime, rctx *gin.Context) *RequestRuntime {
	ctx := rctx.Request.Context()
	name := rctx.FullPath()
	if name == "" {
		name = "unmatched"
	}
	span, ctx := art.Diagnostic.BeginTracing(ctx, name)

	log.Debug().Str("method", rctx.Request.Method).Str("uri", rctx.Request.RequestURI).Msg("initializing request")

	rt := &RequestRuntime{
		AppRuntime: art,
		Store:      art.Store,
		Backend:    art.Backend,

		RequestContext: rctx,
		Span:           span,
		SpanContext:    ctx,

		pairs:   make([]*spanCtxPair, 0, 4),
		current: 0,
	}

	rt.pairs = append(rt.pairs, &spanCtxPair{span: span, ctx: ctx})

	return rt
}

// NewChildTracer starts a child of the current span without switching to it.
func (rt *RequestRuntime) NewChildTracer(spanName string) *RequestRuntime {
	ctx, span := rt.AppRuntime.Diagnostic.Tracer.Start(rt.SpanContext, spanName)
	log.Trace().Str("span", spanName).Str("span_id", span.SpanContext().SpanID().String()).Msg("child tracer")
	rt.pairs = append(rt.pairs[:rt.current+1], &spanCtxPair{span: span, ctx: ctx})
	return rt
}

func (rt *RequestRuntime) Advance() {
	if rt.current+1 >= len(rt.pairs) {
		log.Warn().Int("current", rt.current).Msg("trying to advance span stack out of bounds")
		return
	}
	rt.current++
	rt.load()
}

func (rt *RequestRuntime) StepInto(spanName string) {
	rt.NewChildTracer(spanName).Advance()
}

func (rt *RequestRuntime) StepBack() {
	if rt.current == 0 {
		log.Warn().Msg("trying to step back past the root span")
		return
	}
	rt.current--
	rt.load()
}

// End finishes the current span. The root span stays on the stack until Finish.
func (rt *RequestRuntime) End() *RequestRuntime {
	rt.Span.End()
	if rt.current > 0 {
		rt.pairs = rt.pairs[:rt.current]
	}
	return rt
}

func (rt *RequestRuntime) EndBlock() {
	rt.End().StepBack()
}

// Finish ends every span still open, innermost first.
func (rt *RequestRuntime) Finish() {
	for i := len(rt.pairs) - 1; i >= 0; i-- {
		rt.pairs[i].span.End()
	}
	rt.pairs = rt.pairs[:0]
	rt.current = 0
}

// Depth is the number of open spans, root included.
func (rt *RequestRuntime) Depth() int {
	return len(rt.pairs)
}

func (rt *RequestRuntime) load() {
	pair := rt.pairs[rt.current]
	rt.Span = pair.span
	rt.SpanContext = pair.ctx
}

func (rt *RequestRuntime) Context() context.Context {
	return rt.SpanContext
}
