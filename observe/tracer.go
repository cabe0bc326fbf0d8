package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Kinds of observed components.
const (
	KindParameter = "parameter"
	KindGroup     = "group"
	KindStore     = "store"
)

// Operations recorded by the cache and the store decorators.
const (
	OpRefresh   = "refresh"
	OpLookup    = "lookup"
	OpFetchOne  = "fetch_one"
	OpFetchMany = "fetch_many"
)

// Meta identifies the cache component and operation being observed.
type Meta struct {
	Kind      string // parameter | group | store (required)
	Name      string // parameter name, group name, or store backend
	Operation string // refresh | lookup | fetch_one | fetch_many
	Keys      int    // number of keys involved (optional)
}

// SpanName returns the deterministic span name for this operation.
// Format: paramcache.<kind>.<operation>
func (m Meta) SpanName() string {
	if m.Operation == "" {
		return "paramcache." + m.Kind
	}
	return "paramcache." + m.Kind + "." + m.Operation
}

// WithOperation returns a copy of m for the given operation.
func (m Meta) WithOperation(op string) Meta {
	m.Operation = op
	return m
}

// WithKeys returns a copy of m carrying a key count.
func (m Meta) WithKeys(n int) Meta {
	m.Keys = n
	return m
}

// Validate reports whether m carries the required fields.
func (m Meta) Validate() error {
	if m.Kind == "" {
		return ErrMissingKind
	}
	return nil
}

func (m Meta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("cache.kind", m.Kind),
	}
	if m.Name != "" {
		attrs = append(attrs, attribute.String("cache.name", m.Name))
	}
	if m.Operation != "" {
		attrs = append(attrs, attribute.String("cache.operation", m.Operation))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with cache-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a cache operation.
	StartSpan(ctx context.Context, meta Meta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

func newTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with the operation metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta Meta) (context.Context, trace.Span) {
	attrs := append(meta.attributes(), attribute.Bool("cache.error", false))
	if meta.Keys > 0 {
		attrs = append(attrs, attribute.Int("cache.keys", meta.Keys))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(spanKind(meta)),
	)
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("cache.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// Remote store calls are client spans; everything else stays in-process.
func spanKind(meta Meta) trace.SpanKind {
	if meta.Kind == KindStore {
		return trace.SpanKindClient
	}
	return trace.SpanKindInternal
}

type noopTracer struct {
	noop trace.Tracer
}

func newNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta Meta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}
