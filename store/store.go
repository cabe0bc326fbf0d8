package store

import (
	"context"
	"slices"
)

// MaxBatchSize is the largest number of keys a single FetchMany may request.
const MaxBatchSize = 10

// Result is the outcome of a batched fetch.
type Result struct {
	// Found maps each known key to its value.
	Found map[string]string

	// Invalid lists requested keys the store does not know, in request order.
	Invalid []string
}

// Store reads values from a remote key-value configuration store.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: implementations must honor cancellation and deadlines.
// - FetchOne: returns ErrKeyNotFound (possibly wrapped) when the key is absent.
// - FetchMany: len(keys) <= MaxBatchSize, otherwise ErrBatchTooLarge. Unknown
//   keys are reported in Result.Invalid, not as an error. Every requested key
//   appears in exactly one of Found or Invalid.
// - Errors: transport and permission failures are returned as-is.
// - Decrypt: asks the store to decrypt encrypted values; stores without
//   encryption ignore it.
type Store interface {
	FetchOne(ctx context.Context, key string, decrypt bool) (string, error)
	FetchMany(ctx context.Context, keys []string, decrypt bool) (Result, error)
}

// Closer is implemented by stores that own network resources.
type Closer interface {
	Close(ctx context.Context) error
}

// Close releases s if it implements Closer.
func Close(ctx context.Context, s Store) error {
	if c, ok := s.(Closer); ok {
		return c.Close(ctx)
	}
	return nil
}

// Batches splits names into consecutive chunks of at most size keys,
// preserving order. A size outside 1..MaxBatchSize is clamped.
func Batches(names []string, size int) [][]string {
	if len(names) == 0 {
		return nil
	}
	size = ClampBatchSize(size)
	return slices.Collect(slices.Chunk(names, size))
}

// ClampBatchSize limits size to 1..MaxBatchSize. Zero or negative means MaxBatchSize.
func ClampBatchSize(size int) int {
	if size <= 0 || size > MaxBatchSize {
		return MaxBatchSize
	}
	return size
}
