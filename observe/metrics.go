package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records cache and remote store metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordOperation records a refresh or remote call with duration and error status.
	RecordOperation(ctx context.Context, meta Meta, duration time.Duration, err error)

	// RecordLookup records a cached read, hit or miss.
	RecordLookup(ctx context.Context, meta Meta, hit bool)
}

type metricsImpl struct {
	meter        metric.Meter
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	keyCount     metric.Int64Counter
	lookupCount  metric.Int64Counter
	durationHist metric.Float64Histogram
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	totalCount, err := meter.Int64Counter(
		"paramcache.operation.total",
		metric.WithDescription("Total number of refreshes and remote store calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"paramcache.operation.errors",
		metric.WithDescription("Total number of failed refreshes and remote store calls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	keyCount, err := meter.Int64Counter(
		"paramcache.operation.keys",
		metric.WithDescription("Total number of keys requested from the remote store"),
		metric.WithUnit("{key}"),
	)
	if err != nil {
		return nil, err
	}

	lookupCount, err := meter.Int64Counter(
		"paramcache.lookup.total",
		metric.WithDescription("Total number of cached reads"),
		metric.WithUnit("{read}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"paramcache.operation.duration_ms",
		metric.WithDescription("Refresh and remote call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:        meter,
		totalCount:   totalCount,
		errorCount:   errorCount,
		keyCount:     keyCount,
		lookupCount:  lookupCount,
		durationHist: durationHist,
	}, nil
}

// RecordOperation records metrics for a refresh or remote call.
func (m *metricsImpl) RecordOperation(ctx context.Context, meta Meta, duration time.Duration, err error) {
	opt := metric.WithAttributes(meta.attributes()...)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	if meta.Keys > 0 {
		m.keyCount.Add(ctx, int64(meta.Keys), opt)
	}

	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

// RecordLookup counts a cached read, tagged with cache.hit.
func (m *metricsImpl) RecordLookup(ctx context.Context, meta Meta, hit bool) {
	attrs := append(meta.attributes(), attribute.Bool("cache.hit", hit))
	m.lookupCount.Add(ctx, 1, metric.WithAttributes(attrs...))
}

type noopMetrics struct{}

func (m *noopMetrics) RecordOperation(ctx context.Context, meta Meta, duration time.Duration, err error) {
}

func (m *noopMetrics) RecordLookup(ctx context.Context, meta Meta, hit bool) {}
