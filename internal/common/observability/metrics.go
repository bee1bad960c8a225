// internal/common/observability/metrics.go
package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Observability bundles the otel meter and tracer used around engine
// operations and worker jobs.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	tracer         trace.Tracer

	jobCounter    otelmetric.Int64Counter
	jobDuration   otelmetric.Float64Histogram
	notifyCounter otelmetric.Int64Counter
	transitions   otelmetric.Int64Counter
}

// New wires the prometheus exporter for metrics. Extra span processors
// (for example a tracetest.SpanRecorder) may be passed in.
func New(serviceName string, spanProcessors ...sdktrace.SpanProcessor) *Observability {
	opts := make([]sdktrace.TracerProviderOption, 0, len(spanProcessors))
	for _, sp := range spanProcessors {
		opts = append(opts, sdktrace.WithSpanProcessor(sp))
	}
	tp := sdktrace.NewTracerProvider(opts...)
	obs := &Observability{
		tracerProvider: tp,
		tracer:         tp.Tracer(serviceName),
	}

	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return obs
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	obs.meterProvider = provider
	obs.meter = provider.Meter(serviceName)

	obs.jobCounter, _ = obs.meter.Int64Counter(
		"jobs.processed",
		otelmetric.WithDescription("Number of jobs processed"),
	)
	obs.jobDuration, _ = obs.meter.Float64Histogram(
		"jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms"),
	)
	obs.notifyCounter, _ = obs.meter.Int64Counter(
		"notifications.dispatched",
		otelmetric.WithDescription("Status notifications by outcome"),
	)
	obs.transitions, _ = obs.meter.Int64Counter(
		"lifecycle.transitions",
		otelmetric.WithDescription("Lifecycle transitions by machine and status"),
	)

	return obs
}

// StartSpan starts a span named after the operation. A nil receiver
// returns a no-op span so callers need no guard.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if o == nil || o.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordJobProcessed(ctx context.Context, status string) {
	if o != nil && o.jobCounter != nil {
		o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordJobDuration(ctx context.Context, duration time.Duration, status string) {
	if o != nil && o.jobDuration != nil {
		o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

// RecordNotification counts one dispatch outcome: sent, failed or dropped.
func (o *Observability) RecordNotification(ctx context.Context, status, outcome string) {
	if o != nil && o.notifyCounter != nil {
		o.notifyCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("status", status),
			attribute.String("outcome", outcome),
		))
	}
}

func (o *Observability) RecordTransition(ctx context.Context, machine, status string) {
	if o != nil && o.transitions != nil {
		o.transitions.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("machine", machine),
			attribute.String("status", status),
		))
	}
}

func (o *Observability) Shutdown() {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
}
