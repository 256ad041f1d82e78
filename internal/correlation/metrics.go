package correlation

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/thebtf/remote/pkg/models"
)

const meterName = "github.com/thebtf/remote/internal/correlation"

// Metrics holds the engine's OpenTelemetry instruments.
// Without a configured meter provider the global no-op provider is used.
type Metrics struct {
	pairs        metric.Int64Counter
	correlations metric.Int64Counter
	excluded     metric.Int64Counter
	runs         metric.Int64Counter
	duration     metric.Float64Histogram
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	pairs, err := meter.Int64Counter("correlation.pairs_scored",
		metric.WithDescription("Message/activity pairs scored"))
	if err != nil {
		return nil, err
	}
	correlations, err := meter.Int64Counter("correlation.results",
		metric.WithDescription("Correlations returned, by tier"))
	if err != nil {
		return nil, err
	}
	excluded, err := meter.Int64Counter("correlation.excluded",
		metric.WithDescription("Messages and activities excluded before scoring"))
	if err != nil {
		return nil, err
	}
	runs, err := meter.Int64Counter("correlation.runs",
		metric.WithDescription("Correlation runs, by outcome"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("correlation.run_duration",
		metric.WithDescription("Correlation run duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &Metrics{
		pairs:        pairs,
		correlations: correlations,
		excluded:     excluded,
		runs:         runs,
		duration:     duration,
	}, nil
}

func globalMetrics() *Metrics {
	m, err := NewMetrics(otel.Meter(meterName))
	if err != nil {
		return nil
	}
	return m
}

func (m *Metrics) recordRun(ctx context.Context, source string, elapsed time.Duration, pairs int, excludedMessages, excludedActivities int, results Results, err error) {
	if m == nil {
		return
	}
	// Cancelled runs are recorded too.
	ctx = context.WithoutCancel(ctx)
	src := attribute.String("source", source)

	outcome := "ok"
	if err != nil {
		outcome = "cancelled"
	}
	m.runs.Add(ctx, 1, metric.WithAttributes(src, attribute.String("outcome", outcome)))
	m.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(src))
	m.pairs.Add(ctx, int64(pairs), metric.WithAttributes(src))
	m.excluded.Add(ctx, int64(excludedMessages), metric.WithAttributes(src, attribute.String("kind", "message")))
	m.excluded.Add(ctx, int64(excludedActivities), metric.WithAttributes(src, attribute.String("kind", "activity")))

	counts := map[models.Tier]int64{}
	for _, list := range results {
		for _, r := range list {
			counts[r.Tier]++
		}
	}
	for tier, n := range counts {
		m.correlations.Add(ctx, n, metric.WithAttributes(src, attribute.String("tier", tier.String())))
	}
}
