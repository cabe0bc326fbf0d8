// Package cache keeps values from a remote configuration store in memory and
// refreshes them on demand.
//
// A Parameter caches one key. A Group caches many keys and refreshes all of
// them together in batched remote calls. Both decide when to go back to the
// store with a RefreshPolicy: a value is fetched on first use and again once
// it is older than the configured max age. A zero max age means fetch once.
//
// RefreshOnError wraps an operation that depends on cached values. When the
// operation fails with a matching error it forces a refresh and retries the
// operation exactly once.
//
// Parameter values are never logged or attached to telemetry.
package cache
