// internal/common/observability/metrics.go
package observability

import (
	"context"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Observability exposes OTel stage metrics through the Prometheus registry and
// wraps each stage in a span. The zero value and a nil pointer are no-ops.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	stageCounter   otelmetric.Int64Counter
	stageDuration  otelmetric.Float64Histogram
}

// New registers the OTel exporter on the default Prometheus registry.
func New(serviceName string) (*Observability, error) {
	return NewWithRegisterer(serviceName, promclient.DefaultRegisterer)
}

func NewWithRegisterer(serviceName string, reg promclient.Registerer) (*Observability, error) {
	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	meter := provider.Meter(serviceName)

	stageCounter, err := meter.Int64Counter(
		"pipeline.stages.processed",
		otelmetric.WithDescription("Number of pipeline stages executed"),
	)
	if err != nil {
		return nil, err
	}

	stageDuration, err := meter.Float64Histogram(
		"pipeline.stages.duration",
		otelmetric.WithDescription("Pipeline stage duration"),
		otelmetric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tracerProvider)

	return &Observability{
		meterProvider:  provider,
		tracerProvider: tracerProvider,
		tracer:         tracerProvider.Tracer(serviceName),
		stageCounter:   stageCounter,
		stageDuration:  stageDuration,
	}, nil
}

// StartStage opens a span for stage. The returned func records the outcome and must be called once.
func (o *Observability) StartStage(ctx context.Context, applicationID, stage string) (context.Context, func(err error)) {
	tracer := trace.Tracer(noop.NewTracerProvider().Tracer(""))
	if o != nil && o.tracer != nil {
		tracer = o.tracer
	}

	start := time.Now()
	ctx, span := tracer.Start(ctx, "pipeline."+stage, trace.WithAttributes(
		attribute.String("application.id", applicationID),
		attribute.String("pipeline.stage", stage),
	))

	return ctx, func(err error) {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		o.recordStage(ctx, stage, status, time.Since(start))
	}
}

func (o *Observability) recordStage(ctx context.Context, stage, status string, d time.Duration) {
	if o == nil || o.stageCounter == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("status", status),
	)
	o.stageCounter.Add(ctx, 1, attrs)
	o.stageDuration.Record(ctx, float64(d.Milliseconds()), attrs)
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var firstErr error
	if o.tracerProvider != nil {
		firstErr = o.tracerProvider.Shutdown(ctx)
	}
	if o.meterProvider != nil {
		if err := o.meterProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
