package kernel

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type AppDiagnostic struct {
	Tracer trace.Tracer
	Meter  metric.Meter

	RequestCounter metric.Int64Counter
	ErrorCounter   metric.Int64Counter
}

func (diag *AppDiagnostic) BeginTracing(ctx context.Context, spanName string) (trace.Span, context.Context) {
	ctx, span := diag.Tracer.Start(ctx, spanName)
	return span, ctx
}

// CountRequest is a no-op until SetupOtel has created the instruments.
func (diag *AppDiagnostic) CountRequest(ctx context.Context, opts ...metric.AddOption) {
	if diag.RequestCounter != nil {
		diag.RequestCounter.Add(ctx, 1, opts...)
	}
}

func (diag *AppDiagnostic) CountError(ctx context.Context, opts ...metric.AddOption) {
	if diag.ErrorCounter != nil {
		diag.ErrorCounter.Add(ctx, 1, opts...)
	}
}
