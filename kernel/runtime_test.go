package kernel

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTracedRuntime(t *testing.T) (*RequestRuntime, *tracetest.InMemoryExporter) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	art := NewAppRuntime(map[string]string{})
	art.Diagnostic.Tracer = tp.Tracer("test")

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/policies", nil)

	return InitRequest(art, c), exporter
}

func spanNames(exporter *tracetest.InMemoryExporter) []string {
	var names []string
	for _, s := range exporter.GetSpans() {
		names = append(names, s.Name)
	}
	return names
}

func TestRequestRuntime_SpanStack(t *testing.T) {
	rt, exporter := newTracedRuntime(t)
	root := rt.Span

	rt.StepInto("list")
	rt.StepInto("render")
	assert.Equal(t, 3, rt.Depth())

	rt.EndBlock()
	rt.EndBlock()
	assert.Equal(t, 1, rt.Depth())
	assert.Equal(t, root, rt.Span)
	assert.Equal(t, []string{"render", "list"}, spanNames(exporter))

	rt.Finish()
	assert.Equal(t, []string{"render", "list", "unmatched"}, spanNames(exporter))
}

func TestRequestRuntime_StepBackAtRootIsIgnored(t *testing.T) {
	rt, _ := newTracedRuntime(t)
	root := rt.Span

	rt.StepBack()
	rt.Advance()
	assert.Equal(t, root, rt.Span)
}

func TestRequestRuntime_MakeErrorPopsSpan(t *testing.T) {
	rt, exporter := newTracedRuntime(t)

	rt.StepInto("backend call")
	err := rt.MakeError(errors.New("boom"))
	assert.EqualError(t, err, "boom")
	assert.Equal(t, 1, rt.Depth())
	assert.Equal(t, err, rt.Error)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "backend call", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
}

func TestRequestRuntime_FinishClosesOpenSpans(t *testing.T) {
	rt, exporter := newTracedRuntime(t)

	rt.StepInto("a")
	rt.StepInto("b")
	rt.Finish()

	assert.Equal(t, []string{"b", "a", "unmatched"}, spanNames(exporter))
	assert.Zero(t, rt.Depth())
}
