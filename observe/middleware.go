package observe

import (
	"context"
	"time"
)

// Middleware wraps refreshes and remote calls with tracing, metrics, and logging.
//
// Contract:
//   - Concurrency: all methods are safe for concurrent use.
//   - Context: Run propagates the span context to the wrapped function.
//   - Errors: errors from the wrapped function are recorded and returned unchanged.
//   - Nil: a nil *Middleware behaves like Nop().
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware with the given observability components.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = newNoopTracer()
	}
	if metrics == nil {
		metrics = &noopMetrics{}
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Nop returns a Middleware that records nothing.
func Nop() *Middleware {
	return NewMiddleware(nil, nil, nil)
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(newTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Run executes fn inside a span and records its duration and outcome.
func (m *Middleware) Run(ctx context.Context, meta Meta, fn func(context.Context) error) error {
	if m == nil {
		return fn(ctx)
	}

	ctx, span := m.tracer.StartSpan(ctx, meta)
	start := time.Now()

	err := fn(ctx)

	duration := time.Since(start)
	m.tracer.EndSpan(span, err)
	m.metrics.RecordOperation(ctx, meta, duration, err)

	fields := []Field{
		{Key: "operation", Value: meta.Operation},
		{Key: "duration_ms", Value: float64(duration.Milliseconds())},
	}
	if meta.Keys > 0 {
		fields = append(fields, Field{Key: "keys", Value: meta.Keys})
	}

	logger := m.logger.With(meta)
	if err != nil {
		fields = append(fields, Field{Key: "error", Value: err.Error()})
		logger.Error(ctx, meta.Operation+" failed", fields...)
	} else {
		logger.Debug(ctx, meta.Operation+" completed", fields...)
	}

	return err
}

// Lookup records a cached read.
func (m *Middleware) Lookup(ctx context.Context, meta Meta, hit bool) {
	if m == nil {
		return
	}
	m.metrics.RecordLookup(ctx, meta.WithOperation(OpLookup), hit)
}

// Logger returns the logger scoped to meta.
func (m *Middleware) Logger(meta Meta) Logger {
	if m == nil {
		return NopLogger()
	}
	return m.logger.With(meta)
}
