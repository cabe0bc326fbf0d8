package cache

import (
	"context"
	"errors"

	"github.com/jonwraymond/paramcache/observe"
)

// Refresher is anything that can be forced to refresh: a Parameter or a Group.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Operation is a call that depends on cached values. isRetry is true on the
// single retry after a forced refresh.
type Operation[T any] func(ctx context.Context, isRetry bool) (T, error)

// RefreshOnErrorConfig configures RefreshOnError.
type RefreshOnErrorConfig struct {
	// RetryIf selects the errors that trigger a refresh and retry.
	// Default: every non-nil error.
	RetryIf func(err error) bool

	// OnError is called once per retry, after the forced refresh and before
	// the retry.
	OnError func()

	// Logger receives the refresh-and-retry events. Default: no logging.
	Logger observe.Logger
}

type retryKey struct{}

// IsRetry reports whether ctx belongs to the retry made by RefreshOnError.
func IsRetry(ctx context.Context) bool {
	v, _ := ctx.Value(retryKey{}).(bool)
	return v
}

// RefreshOnError returns a call that runs op and, when op fails with an
// error selected by cfg.RetryIf, forces r to refresh, calls cfg.OnError, and
// runs op exactly once more with isRetry set. The retry's result is returned
// as is; a second failure is never retried.
//
// If the forced refresh fails, its error is returned unchanged and neither
// the callback nor the retry runs.
func RefreshOnError[T any](r Refresher, op Operation[T], cfg RefreshOnErrorConfig) func(context.Context) (T, error) {
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = func(err error) bool { return err != nil }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observe.NopLogger()
	}

	return func(ctx context.Context) (T, error) {
		v, err := op(ctx, false)
		if err == nil || !retryIf(err) {
			return v, err
		}

		logger.Warn(ctx, "operation failed, refreshing cached values", observe.Field{Key: "error", Value: err.Error()})

		if rerr := r.Refresh(ctx); rerr != nil {
			logger.Warn(ctx, "refresh before retry failed", observe.Field{Key: "error", Value: rerr.Error()})
			var zero T
			return zero, rerr
		}

		if cfg.OnError != nil {
			cfg.OnError()
		}
		return op(context.WithValue(ctx, retryKey{}, true), true)
	}
}

// Wrap adapts a function that reads the retry flag from its context with
// IsRetry.
func Wrap(fn func(ctx context.Context) error) Operation[struct{}] {
	return func(ctx context.Context, _ bool) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}
}

// ErrorIs returns a RetryIf predicate matching any of targets with errors.Is.
func ErrorIs(targets ...error) func(error) bool {
	return func(err error) bool {
		for _, t := range targets {
			if errors.Is(err, t) {
				return true
			}
		}
		return false
	}
}

// ErrorAs returns a RetryIf predicate matching errors that errors.As can
// convert to E.
func ErrorAs[E error]() func(error) bool {
	return func(err error) bool {
		var target E
		return errors.As(err, &target)
	}
}

func discardValue(op func(ctx context.Context, isRetry bool) error) Operation[struct{}] {
	return func(ctx context.Context, isRetry bool) (struct{}, error) {
		return struct{}{}, op(ctx, isRetry)
	}
}

func discardResult(fn func(context.Context) (struct{}, error)) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := fn(ctx)
		return err
	}
}
