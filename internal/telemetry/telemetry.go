// Package telemetry connects nexis to OpenTelemetry: W3C trace propagation
// for every request, and OTLP/HTTP export of spans and assessment metrics
// when tracing is enabled.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/opensource-finance/nexis/internal/domain"
)

const (
	defaultServiceName = "nexis"
	exportInterval     = 15 * time.Second
	batchTimeout       = 5 * time.Second

	// AssessmentDurationMetric is the histogram recorded per scored assessment.
	AssessmentDurationMetric = "nexis.assessment.duration"
)

// assessmentDurationBuckets are in milliseconds. Scoring itself is well
// under a millisecond; the upper buckets catch storage and cache latency.
var assessmentDurationBuckets = []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500}

// Service identifies the running process on exported telemetry.
type Service struct {
	Version        string
	Tier           domain.Tier
	CatalogVersion string
}

// Shutdown flushes and stops the exporters.
type Shutdown func(ctx context.Context) error

// Init installs the W3C propagator unconditionally, so trace ids sent by
// callers reach logs and stored assessments even with export switched off.
// Tracer and meter providers are replaced only when cfg exports over OTLP.
func Init(ctx context.Context, cfg domain.TracingConfig, svc Service) (Shutdown, error) {
	otel.SetTextMapPropagator(Propagator())

	if !Exporting(cfg) {
		return func(context.Context) error { return nil }, nil
	}

	res, err := newResource(ctx, cfg, svc)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create resource: %w", err)
	}

	tp, err := newTracerProvider(ctx, cfg, res)
	if err != nil {
		return nil, err
	}

	metricOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
	}
	metricExp, err := otlpmetrichttp.New(ctx, metricOpts...)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("telemetry: create metric exporter: %w", err)
	}
	mp := newMeterProvider(sdkmetric.NewPeriodicReader(metricExp, sdkmetric.WithInterval(exportInterval)), res)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		return errors.Join(mp.Shutdown(ctx), tp.Shutdown(ctx))
	}, nil
}

// Exporting reports whether cfg sends telemetry anywhere.
func Exporting(cfg domain.TracingConfig) bool {
	return cfg.Enabled && cfg.ExporterType == "otlp" && cfg.Endpoint != ""
}

// Propagator carries W3C trace context and baggage.
func Propagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

func newResource(ctx context.Context, cfg domain.TracingConfig, svc Service) (*resource.Resource, error) {
	name := cfg.ServiceName
	if name == "" {
		name = defaultServiceName
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceName(name),
		semconv.ServiceVersion(svc.Version),
	}
	if svc.Tier != "" {
		attrs = append(attrs, attribute.String("nexis.tier", string(svc.Tier)))
	}
	if svc.CatalogVersion != "" {
		attrs = append(attrs, attribute.String("nexis.catalog.version", svc.CatalogVersion))
	}

	return resource.New(ctx,
		resource.WithAttributes(attrs...),
		resource.WithHost(),
		resource.WithProcessRuntimeVersion(),
	)
}

func newTracerProvider(ctx context.Context, cfg domain.TracingConfig, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create trace exporter: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(batchTimeout)),
		sdktrace.WithSampler(Sampler(cfg.SampleRatio)),
		sdktrace.WithResource(res),
	), nil
}

// Sampler samples root spans at ratio and follows the caller's decision
// for propagated traces.
func Sampler(ratio float64) sdktrace.Sampler {
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// newMeterProvider reads through reader with the assessment duration
// histogram bucketed for millisecond latencies.
func newMeterProvider(reader sdkmetric.Reader, res *resource.Resource) *sdkmetric.MeterProvider {
	durationView := sdkmetric.NewView(
		sdkmetric.Instrument{Name: AssessmentDurationMetric},
		sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
			Boundaries: assessmentDurationBuckets,
		}},
	)

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
		sdkmetric.WithView(durationView),
	)
}
