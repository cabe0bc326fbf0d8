package store

import (
	"context"
	"errors"

	"github.com/jonwraymond/paramcache/resilience"
)

type resilient struct {
	next Store
	exec *resilience.Executor
}

// WithResilience runs every call to s through exec. Errors are returned
// exactly as s produced them, or as a resilience sentinel when the executor
// refused the call.
func WithResilience(s Store, exec *resilience.Executor) Store {
	return &resilient{next: s, exec: exec}
}

// permanent marks answers that a retry cannot change.
func permanent(err error) error {
	if errors.Is(err, ErrKeyNotFound) || errors.Is(err, ErrBatchTooLarge) {
		return resilience.Permanent(err)
	}
	return err
}

func (r *resilient) FetchOne(ctx context.Context, key string, decrypt bool) (string, error) {
	var value string
	err := r.exec.Execute(ctx, func(ctx context.Context) error {
		v, err := r.next.FetchOne(ctx, key, decrypt)
		value = v
		return permanent(err)
	})
	if err != nil {
		return "", err
	}
	return value, nil
}

func (r *resilient) FetchMany(ctx context.Context, keys []string, decrypt bool) (Result, error) {
	var res Result
	err := r.exec.Execute(ctx, func(ctx context.Context) error {
		var err error
		res, err = r.next.FetchMany(ctx, keys, decrypt)
		return permanent(err)
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func (r *resilient) Close(ctx context.Context) error {
	return Close(ctx, r.next)
}
