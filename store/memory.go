package store

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore is an in-process Store backed by a map. It records every call,
// which makes it the store of choice for tests and local development.
type MemoryStore struct {
	mu             sync.RWMutex
	values         map[string]string
	onFetch        func(keys []string) error
	fetchOneCalls  int
	fetchManyCalls int
	batches        [][]string
	lastDecrypt    bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store holding a copy of values.
func NewMemoryStore(values map[string]string) *MemoryStore {
	m := &MemoryStore{values: make(map[string]string, len(values))}
	for k, v := range values {
		m.values[k] = v
	}
	return m
}

// Set stores value under key.
func (m *MemoryStore) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

// Delete removes key.
func (m *MemoryStore) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
}

// OnFetch installs a hook run before every fetch with the requested keys.
// A non-nil error from the hook fails the call. Pass nil to remove it.
func (m *MemoryStore) OnFetch(hook func(keys []string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onFetch = hook
}

// FetchOne returns the value of key or ErrKeyNotFound.
func (m *MemoryStore) FetchOne(ctx context.Context, key string, decrypt bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	m.fetchOneCalls++
	m.lastDecrypt = decrypt
	hook := m.onFetch
	m.mu.Unlock()

	if hook != nil {
		if err := hook([]string{key}); err != nil {
			return "", err
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

// FetchMany returns the known keys and lists the unknown ones.
func (m *MemoryStore) FetchMany(ctx context.Context, keys []string, decrypt bool) (Result, error) {
	if len(keys) > MaxBatchSize {
		return Result{}, ErrBatchTooLarge
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	m.mu.Lock()
	m.fetchManyCalls++
	m.lastDecrypt = decrypt
	m.batches = append(m.batches, slices.Clone(keys))
	hook := m.onFetch
	m.mu.Unlock()

	if hook != nil {
		if err := hook(keys); err != nil {
			return Result{}, err
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	res := Result{Found: make(map[string]string, len(keys))}
	for _, k := range keys {
		if v, ok := m.values[k]; ok {
			res.Found[k] = v
		} else {
			res.Invalid = append(res.Invalid, k)
		}
	}
	return res, nil
}

// Calls returns the number of FetchOne and FetchMany calls so far.
func (m *MemoryStore) Calls() (fetchOne, fetchMany int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fetchOneCalls, m.fetchManyCalls
}

// Batches returns the key lists of every FetchMany call, in call order.
func (m *MemoryStore) Batches() [][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][]string, len(m.batches))
	for i, b := range m.batches {
		out[i] = slices.Clone(b)
	}
	return out
}

// LastDecrypt reports the decrypt flag of the most recent call.
func (m *MemoryStore) LastDecrypt() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastDecrypt
}

// ResetCalls clears the recorded calls.
func (m *MemoryStore) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchOneCalls = 0
	m.fetchManyCalls = 0
	m.batches = nil
}
