package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/jmgress/smartrecover/internal/config"
)

// InitTracing configures an OpenTelemetry tracer provider exporting spans
// via OTLP/HTTP, gated by cfg.Enabled. Metrics export and host-metrics
// instrumentation (present in the teacher) are dropped: SmartRecover has no
// metrics surface in its spec, only request/node tracing. Returns a
// shutdown func; when tracing is disabled it returns a no-op shutdown and a
// tracer that produces no-op spans.
func InitTracing(ctx context.Context, cfg config.TracingConfig) (func(context.Context) error, error) {
	if !cfg.Enabled || cfg.OTLPEndpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("init resource: %w", err)
	}

	exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("init trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}

var tracer = otel.Tracer("smartrecover")

// StartNodeSpan opens a span for one orchestrator graph node.
func StartNodeSpan(ctx context.Context, nodeName string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "orchestrator.node."+nodeName)
}

// StartCallSpan opens a span for one outbound connector or LLM call.
func StartCallSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}
