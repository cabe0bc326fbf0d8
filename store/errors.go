package store

import "errors"

var (
	// ErrKeyNotFound is returned by FetchOne when the store has no such key.
	ErrKeyNotFound = errors.New("store: key not found")

	// ErrBatchTooLarge is returned by FetchMany when given more than MaxBatchSize keys.
	ErrBatchTooLarge = errors.New("store: batch exceeds maximum size")

	// ErrUnknownBackend is returned by Registry.Create for unregistered names.
	ErrUnknownBackend = errors.New("store: unknown backend")

	// ErrInvalidOption is returned when a backend option has the wrong type.
	ErrInvalidOption = errors.New("store: invalid option")
)
