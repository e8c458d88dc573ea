// internal/common/observability/observability.go
package observability

import (
	"context"
	"time"

	"access-workflow/internal/common/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Observability owns the otel meter and tracer providers for one process.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer

	jobCounter       otelmetric.Int64Counter
	jobDuration      otelmetric.Float64Histogram
	deliveryCounter  otelmetric.Int64Counter
	deliveryDuration otelmetric.Float64Histogram
}

// New registers a prometheus-backed meter provider and a sampling tracer
// provider as the otel globals. Instrument creation failures are logged and
// leave the corresponding recorder as a no-op.
func New(serviceName string, sampleRatio float64, log logger.Logger) *Observability {
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio))),
	)
	otel.SetTracerProvider(tp)

	o := &Observability{
		tracerProvider: tp,
		tracer:         tp.Tracer(serviceName),
	}

	exporter, err := prometheus.New()
	if err != nil {
		log.Warn("Failed to create Prometheus exporter", map[string]interface{}{"error": err.Error()})
		return o
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter), metric.WithResource(res))
	otel.SetMeterProvider(provider)
	o.meterProvider = provider

	meter := provider.Meter(serviceName)

	if o.jobCounter, err = meter.Int64Counter(
		"jobs.processed",
		otelmetric.WithDescription("Number of jobs processed"),
	); err != nil {
		log.Warn("Failed to create instrument", map[string]interface{}{"name": "jobs.processed", "error": err.Error()})
	}

	if o.jobDuration, err = meter.Float64Histogram(
		"jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms"),
	); err != nil {
		log.Warn("Failed to create instrument", map[string]interface{}{"name": "jobs.duration", "error": err.Error()})
	}

	if o.deliveryCounter, err = meter.Int64Counter(
		"notifications.deliveries",
		otelmetric.WithDescription("Channel delivery attempts"),
	); err != nil {
		log.Warn("Failed to create instrument", map[string]interface{}{"name": "notifications.deliveries", "error": err.Error()})
	}

	if o.deliveryDuration, err = meter.Float64Histogram(
		"notifications.delivery.duration",
		otelmetric.WithDescription("Channel delivery latency"),
		otelmetric.WithUnit("ms"),
	); err != nil {
		log.Warn("Failed to create instrument", map[string]interface{}{"name": "notifications.delivery.duration", "error": err.Error()})
	}

	return o
}

// Tracer returns the process tracer, or the global one when o is nil.
func (o *Observability) Tracer() trace.Tracer {
	if o == nil || o.tracer == nil {
		return otel.Tracer("access-workflow")
	}
	return o.tracer
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

// RecordDelivery counts one channel attempt and its latency.
func (o *Observability) RecordDelivery(ctx context.Context, channel, outcome string, latency time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("channel", channel),
		attribute.String("outcome", outcome),
	)
	if o.deliveryCounter != nil {
		o.deliveryCounter.Add(ctx, 1, attrs)
	}
	if o.deliveryDuration != nil {
		o.deliveryDuration.Record(ctx, float64(latency.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown(ctx context.Context) {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
}
