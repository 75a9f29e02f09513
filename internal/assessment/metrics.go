package assessment

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/opensource-finance/nexis/internal/domain"
	"github.com/opensource-finance/nexis/internal/telemetry"
)

type instruments struct {
	completed metric.Int64Counter
	rejected  metric.Int64Counter
	duration  metric.Float64Histogram
}

// Instruments bind to the global meter provider, which delegates to the
// provider installed by telemetry.Init.
var serviceInstruments = sync.OnceValue(func() instruments {
	meter := otel.Meter("github.com/opensource-finance/nexis/internal/assessment")

	completed, _ := meter.Int64Counter("nexis.assessments.completed",
		metric.WithDescription("Assessments scored and stored"))
	rejected, _ := meter.Int64Counter("nexis.assessments.rejected",
		metric.WithDescription("Assessment requests refused before scoring"))
	duration, _ := meter.Float64Histogram(telemetry.AssessmentDurationMetric,
		metric.WithDescription("End to end assessment time"),
		metric.WithUnit("ms"))

	return instruments{completed: completed, rejected: rejected, duration: duration}
})

func recordCompleted(ctx context.Context, a *domain.Assessment, elapsed time.Duration) {
	inst := serviceInstruments()
	attrs := metric.WithAttributes(
		attribute.String("risk_level", string(a.RiskLevel)),
		attribute.String("strength", string(a.AssessmentStrength)),
	)
	inst.completed.Add(ctx, 1, attrs)
	inst.duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
}

func recordRejected(ctx context.Context, reason string) {
	serviceInstruments().rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
