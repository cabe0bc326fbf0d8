// Package store defines the boundary between the parameter cache and a
// remote key-value configuration store.
//
// A Store answers two questions: the value of one key, and the values of a
// small batch of keys together with the names the store does not know.
// Callers chunk batches to MaxBatchSize; Batches does that in insertion
// order.
//
// Backends register a Factory by name in a Registry. MemoryStore is built
// in; the ssm and redis subpackages register themselves on import.
//
// Two decorators wrap any Store:
//
//   - Instrument records a span, counters, and a log line per remote call.
//   - WithResilience runs remote calls through a resilience.Executor.
//     ErrKeyNotFound and ErrBatchTooLarge are never retried.
package store
