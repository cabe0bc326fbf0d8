package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/paramcache/observe"
	"github.com/jonwraymond/paramcache/store"
)

// Parameter caches the value of one key.
//
// A standalone parameter fetches its key alone. A parameter created by
// Group.Add belongs to that group for life: every refresh, forced or due,
// refreshes the whole group.
//
// Parameter is safe for concurrent use. Concurrent reads of a stale value
// share one remote call.
type Parameter struct {
	name    string
	decrypt bool
	store   store.Store
	policy  *RefreshPolicy
	group   *Group
	mw      *observe.Middleware

	mu      sync.RWMutex
	value   string
	set     bool
	lastErr error

	flight singleflight.Group
}

// New creates a standalone parameter for name.
func New(s store.Store, name string, opts ...Option) (*Parameter, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: store is nil", ErrConfig)
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	o := paramOptions{decrypt: true}
	for _, opt := range opts {
		opt(&o)
	}

	return &Parameter{
		name:    name,
		decrypt: o.decrypt,
		store:   s,
		policy:  NewRefreshPolicy(o.maxAge, WithPolicyClock(o.now)),
		mw:      o.mw,
	}, nil
}

// Name returns the parameter name.
func (p *Parameter) Name() string { return p.name }

// Decrypt reports whether the value is fetched with decryption.
func (p *Parameter) Decrypt() bool { return p.decrypt }

// Group returns the owning group, or nil for a standalone parameter.
func (p *Parameter) Group() *Group { return p.group }

// LastRefresh returns the time of the last refresh attempt. Grouped
// parameters report the group's.
func (p *Parameter) LastRefresh() time.Time {
	if p.group != nil {
		return p.group.LastRefresh()
	}
	return p.policy.LastRefresh()
}

// LastError returns the error of the last refresh attempt, or nil.
func (p *Parameter) LastError() error {
	if p.group != nil {
		return p.group.LastError()
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

// Value returns the cached value, refreshing it first when it has never been
// fetched or has expired.
//
// A missing key yields an *InvalidParamError. For a grouped parameter whose
// group refresh found this key but not some of its siblings, the value is
// returned along with that *InvalidParamError.
func (p *Parameter) Value(ctx context.Context) (string, error) {
	if p.group != nil {
		return p.group.valueOf(ctx, p)
	}

	meta := p.meta()
	if !p.isSet() || p.policy.ShouldRefresh() {
		p.mw.Lookup(ctx, meta, false)
		if err := shared(ctx, &p.flight, p.name, p.Refresh); err != nil {
			return "", err
		}
	} else {
		p.mw.Lookup(ctx, meta, true)
	}

	return p.current(), nil
}

// Refresh fetches the value unconditionally and marks the policy refreshed,
// whether or not the fetch succeeded. A grouped parameter refreshes its
// whole group.
func (p *Parameter) Refresh(ctx context.Context) error {
	if p.group != nil {
		return p.group.Refresh(ctx)
	}

	meta := p.meta().WithOperation(observe.OpRefresh).WithKeys(1)

	var invalid *InvalidParamError
	err := p.mw.Run(ctx, meta, func(ctx context.Context) error {
		v, err := p.store.FetchOne(ctx, p.name, p.decrypt)
		if errors.Is(err, store.ErrKeyNotFound) {
			invalid = &InvalidParamError{Names: []string{p.name}}
			return nil
		}
		if err != nil {
			return err
		}
		p.setValue(v)
		return nil
	})
	p.policy.MarkRefreshed()

	if invalid != nil {
		p.mw.Logger(meta).Warn(ctx, "parameter not found in store")
		err = invalid
	}

	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()
	return err
}

// RefreshOnError wraps op with RefreshOnError using this parameter as the
// refresher.
func (p *Parameter) RefreshOnError(op func(ctx context.Context, isRetry bool) error, cfg RefreshOnErrorConfig) func(context.Context) error {
	if cfg.Logger == nil {
		cfg.Logger = p.mw.Logger(p.meta())
	}
	return discardResult(RefreshOnError(p, discardValue(op), cfg))
}

func (p *Parameter) meta() observe.Meta {
	return observe.Meta{Kind: observe.KindParameter, Name: p.name}
}

func (p *Parameter) setValue(v string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value = v
	p.set = true
}

func (p *Parameter) current() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

func (p *Parameter) isSet() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.set
}

// shared runs fn once for all concurrent callers using key. The shared call
// is detached from the caller's cancellation; each caller stops waiting when
// its own ctx is done.
func shared(ctx context.Context, flight *singleflight.Group, key string, fn func(context.Context) error) error {
	ch := flight.DoChan(key, func() (any, error) {
		return nil, fn(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}
