package kernel

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
)

const (
	METRICS_PROMETHEUS = "prometheus"
	METRICS_OTLP_HTTP  = "otlphttp"
	METRICS_OTLP_GRPC  = "otlpgrpc"
)

const shutdownTimeout = 5 * time.Second

// SetupLogging configures the global zerolog logger. Development gets the
// console writer, everything else JSON on stderr.
func (art *AppRuntime) SetupLogging() {
	level, err := zerolog.ParseLevel(strings.ToLower(art.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if !art.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	log.Logger = log.With().Str("service", art.ServiceName).Logger()
}

func (art *AppRuntime) SetupOtel() (func(), error) {
	res, err := resource.Merge(resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(art.ServiceName),
			semconv.ServiceVersion(art.ServiceVersion),
			semconv.DeploymentEnvironment(art.DeploymentEnvironment),
		))
	if err != nil {
		return nil, err
	}

	traceOpts := []trace.TracerProviderOption{trace.WithResource(res)}
	if art.JaegerEndpoint != "" {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(art.JaegerEndpoint)}
		if art.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		traceExporter, err := otlptracehttp.New(art.Context, opts...)
		if err != nil {
			return nil, fmt.Errorf("creating trace exporter: %w", err)
		}
		traceOpts = append(traceOpts, trace.WithBatcher(traceExporter))
	} else {
		log.Info().Msg("JAEGER_ENDPOINT not set, spans are not exported")
	}
	tracerProvider := trace.NewTracerProvider(traceOpts...)
	otel.SetTracerProvider(tracerProvider)

	reader, err := art.metricReader()
	if err != nil {
		return nil, err
	}
	metricProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(metricProvider)

	// Propagation
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	// Runtime metrics
	if err := runtime.Start(); err != nil {
		return nil, fmt.Errorf("starting runtime metrics: %w", err)
	}

	// The diagnostic was built against the global no-op providers.
	art.Diagnostic.Tracer = otel.Tracer(art.ServiceName + "-tracer")
	art.Diagnostic.Meter = otel.Meter(art.ServiceName + "-meter")
	if err := art.Diagnostic.createInstruments(); err != nil {
		return nil, err
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("tracer provider shutdown")
		}
		if err := metricProvider.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("meter provider shutdown")
		}
	}, nil
}

func (art *AppRuntime) metricReader() (sdkmetric.Reader, error) {
	switch art.MetricsExporter {
	case METRICS_PROMETHEUS:
		exporter, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("creating metric exporter: %w", err)
		}
		return exporter, nil

	case METRICS_OTLP_HTTP:
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(art.MetricsEndpoint)}
		if art.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exporter, err := otlpmetrichttp.New(art.Context, opts...)
		if err != nil {
			return nil, fmt.Errorf("creating metric exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exporter), nil

	case METRICS_OTLP_GRPC:
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(art.MetricsEndpoint),
			otlpmetricgrpc.WithDialOption(grpc.WithUserAgent(art.ServiceName + "/" + art.ServiceVersion)),
		}
		if art.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err := otlpmetricgrpc.New(art.Context, opts...)
		if err != nil {
			return nil, fmt.Errorf("creating metric exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exporter), nil
	}

	return nil, fmt.Errorf("unknown METRICS_EXPORTER %q", art.MetricsExporter)
}

func (diag *AppDiagnostic) createInstruments() error {
	counter, err := diag.Meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP requests"))
	if err != nil {
		return fmt.Errorf("creating request counter: %w", err)
	}
	diag.RequestCounter = counter

	errors, err := diag.Meter.Int64Counter("http_request_errors_total",
		metric.WithDescription("Requests that ended with a recorded error"))
	if err != nil {
		return fmt.Errorf("creating error counter: %w", err)
	}
	diag.ErrorCounter = errors

	return nil
}
