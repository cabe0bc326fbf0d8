// Package observe provides observability primitives for the parameter cache.
//
// It is a pure instrumentation library: an Observer owns the OpenTelemetry
// tracer and meter providers plus a JSON structured Logger, and a Middleware
// built from it wraps refreshes and remote store calls. Parameter values are
// never passed to telemetry; the logger redacts well-known secret field keys
// as a second line of defence.
package observe
