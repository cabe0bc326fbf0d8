package cache

import (
	"time"

	"github.com/jonwraymond/paramcache/observe"
	"github.com/jonwraymond/paramcache/store"
)

// Option configures a Parameter.
type Option func(*paramOptions)

type paramOptions struct {
	maxAge     time.Duration
	maxAgeSet  bool
	decrypt    bool
	decryptSet bool
	mw         *observe.Middleware
	now        func() time.Time
}

// WithMaxAge sets how long a standalone parameter's value stays fresh.
// Grouped parameters reject it; their max age is the group's.
func WithMaxAge(d time.Duration) Option {
	return func(o *paramOptions) {
		o.maxAge = d
		o.maxAgeSet = true
	}
}

// WithDecryption sets whether the store decrypts the value. Default: true,
// or the group's setting for grouped parameters.
func WithDecryption(decrypt bool) Option {
	return func(o *paramOptions) {
		o.decrypt = decrypt
		o.decryptSet = true
	}
}

// WithTelemetry records refreshes and lookups through mw.
func WithTelemetry(mw *observe.Middleware) Option {
	return func(o *paramOptions) { o.mw = mw }
}

// WithClock sets the time source of the parameter's policy.
func WithClock(now func() time.Time) Option {
	return func(o *paramOptions) { o.now = now }
}

// GroupOption configures a Group.
type GroupOption func(*groupOptions)

type groupOptions struct {
	name      string
	maxAge    time.Duration
	decrypt   bool
	batchSize int
	mw        *observe.Middleware
	now       func() time.Time
}

// WithGroupName names the group in logs, telemetry, and health reports.
func WithGroupName(name string) GroupOption {
	return func(o *groupOptions) { o.name = name }
}

// WithGroupMaxAge sets how long the group's values stay fresh.
func WithGroupMaxAge(d time.Duration) GroupOption {
	return func(o *groupOptions) { o.maxAge = d }
}

// WithGroupDecryption sets the decryption default for members. Default: true.
func WithGroupDecryption(decrypt bool) GroupOption {
	return func(o *groupOptions) { o.decrypt = decrypt }
}

// WithBatchSize sets the number of names per remote call, clamped to
// 1..store.MaxBatchSize.
func WithBatchSize(n int) GroupOption {
	return func(o *groupOptions) { o.batchSize = store.ClampBatchSize(n) }
}

// WithGroupTelemetry records refreshes and lookups through mw.
func WithGroupTelemetry(mw *observe.Middleware) GroupOption {
	return func(o *groupOptions) { o.mw = mw }
}

// WithGroupClock sets the time source of the group's policy.
func WithGroupClock(now func() time.Time) GroupOption {
	return func(o *groupOptions) { o.now = now }
}
