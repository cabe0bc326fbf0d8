package store

import (
	"context"
	"errors"

	"github.com/jonwraymond/paramcache/observe"
)

type instrumented struct {
	next    Store
	mw      *observe.Middleware
	backend string
}

// Instrument wraps s so that every remote call is traced, counted, and
// logged under the given backend name. A missing key is an answer, not a
// failure, and is not recorded as an error.
func Instrument(s Store, mw *observe.Middleware, backend string) Store {
	return &instrumented{next: s, mw: mw, backend: backend}
}

func (i *instrumented) FetchOne(ctx context.Context, key string, decrypt bool) (string, error) {
	meta := observe.Meta{Kind: observe.KindStore, Name: i.backend, Operation: observe.OpFetchOne, Keys: 1}

	var value string
	var missing error
	err := i.mw.Run(ctx, meta, func(ctx context.Context) error {
		v, err := i.next.FetchOne(ctx, key, decrypt)
		if errors.Is(err, ErrKeyNotFound) {
			missing = err
			return nil
		}
		value = v
		return err
	})
	if missing != nil {
		return "", missing
	}
	return value, err
}

func (i *instrumented) FetchMany(ctx context.Context, keys []string, decrypt bool) (Result, error) {
	meta := observe.Meta{Kind: observe.KindStore, Name: i.backend, Operation: observe.OpFetchMany, Keys: len(keys)}

	var res Result
	err := i.mw.Run(ctx, meta, func(ctx context.Context) error {
		var err error
		res, err = i.next.FetchMany(ctx, keys, decrypt)
		if err == nil && len(res.Invalid) > 0 {
			i.mw.Logger(meta).Debug(ctx, "store reported unknown keys",
				observe.Field{Key: "invalid", Value: res.Invalid})
		}
		return err
	})
	return res, err
}

func (i *instrumented) Close(ctx context.Context) error {
	return Close(ctx, i.next)
}
