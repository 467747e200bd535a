// Package observe records playback and catalog metrics through the
// OpenTelemetry Metrics API and serves them for Prometheus scraping.
//
// Tests should build [Metrics] with their own [metric.MeterProvider] via
// [NewMetrics] so readings do not leak between tests.
package observe

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/glizzus/cobot/internal/catalog"
	"github.com/glizzus/cobot/internal/playback"
)

const meterName = "github.com/glizzus/cobot"

// Metrics holds the instruments for the bot. It is safe for concurrent use.
type Metrics struct {
	// PlaybackRequests counts finished play requests. Attributes:
	//   attribute.String("outcome", ...), attribute.Bool("inferred", ...)
	PlaybackRequests metric.Int64Counter

	// StageDuration tracks how long a request spent in each playback state.
	// Attribute: attribute.String("state", ...)
	StageDuration metric.Float64Histogram

	// CatalogSounds reports the size of the current catalog snapshot.
	CatalogSounds metric.Int64ObservableGauge

	catalogSize atomic.Int64
}

// stageBuckets are histogram boundaries in seconds. Loudness analysis of a
// long clip dominates the upper end.
var stageBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	met := &Metrics{}
	var err error

	if met.PlaybackRequests, err = m.Int64Counter("cobot.playback.requests",
		metric.WithDescription("Play requests by terminal outcome."),
	); err != nil {
		return nil, err
	}
	if met.StageDuration, err = m.Float64Histogram("cobot.playback.stage.duration",
		metric.WithDescription("Time spent in each playback state."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CatalogSounds, err = m.Int64ObservableGauge("cobot.catalog.sounds",
		metric.WithDescription("Number of sounds in the current catalog."),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(met.catalogSize.Load())
			return nil
		}),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// Record implements playback.Recorder.
func (m *Metrics) Record(ctx context.Context, _ playback.Request, out playback.Outcome) {
	m.PlaybackRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", out.Label()),
		attribute.Bool("inferred", out.Inferred),
	))
	for _, stage := range out.Stages {
		m.StageDuration.Record(ctx, stage.Duration.Seconds(), metric.WithAttributes(
			attribute.String("state", stage.State.String()),
		))
	}
}

// CatalogReloaded is meant for catalog.Holder.OnReload.
func (m *Metrics) CatalogReloaded(c *catalog.Catalog) {
	m.catalogSize.Store(int64(c.Len()))
}

var _ playback.Recorder = (*Metrics)(nil)
