package secret

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jonwraymond/paramcache/cache"
	"github.com/jonwraymond/paramcache/store"
)

// ParamProviderName is the provider name used in "secretref:param:<name>".
const ParamProviderName = "param"

// Lookup finds a configured parameter by name.
type Lookup func(name string) (*cache.Parameter, bool)

// ParamProviderOption configures a ParamProvider.
type ParamProviderOption func(*ParamProvider)

// WithFallbackStore lets the provider answer names that Lookup does not know
// by creating a standalone parameter on s with opts. Created parameters are
// kept and reused.
func WithFallbackStore(s store.Store, opts ...cache.Option) ParamProviderOption {
	return func(p *ParamProvider) {
		p.fallback = s
		p.fallbackOpts = opts
	}
}

// ParamProvider resolves references to cache.Parameter values.
type ParamProvider struct {
	name   string
	lookup Lookup

	fallback     store.Store
	fallbackOpts []cache.Option

	mu      sync.Mutex
	created map[string]*cache.Parameter
}

var _ Provider = (*ParamProvider)(nil)

// NewParamProvider creates a provider called name that reads parameters
// found by lookup. An empty name means ParamProviderName.
func NewParamProvider(name string, lookup Lookup, opts ...ParamProviderOption) *ParamProvider {
	if name == "" {
		name = ParamProviderName
	}
	p := &ParamProvider{
		name:    name,
		lookup:  lookup,
		created: make(map[string]*cache.Parameter),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider name.
func (p *ParamProvider) Name() string { return p.name }

// Resolve returns the cached value of the parameter named ref, refreshing it
// when its max age has passed. Group members other than ref being missing
// does not fail the resolution.
func (p *ParamProvider) Resolve(ctx context.Context, ref string) (string, error) {
	param, err := p.parameter(ref)
	if err != nil {
		return "", err
	}
	v, err := param.Value(ctx)
	if siblingsOnly(err, ref) {
		return v, nil
	}
	return v, err
}

// ResolveFresh refreshes the parameter named ref before reading it, for
// callers whose last attempt with the cached value was rejected.
func (p *ParamProvider) ResolveFresh(ctx context.Context, ref string) (string, error) {
	param, err := p.parameter(ref)
	if err != nil {
		return "", err
	}
	if err := param.Refresh(ctx); err != nil && !siblingsOnly(err, ref) {
		return "", err
	}
	return p.Resolve(ctx, ref)
}

// siblingsOnly reports whether err only names parameters other than ref.
func siblingsOnly(err error, ref string) bool {
	var invalid *cache.InvalidParamError
	return errors.As(err, &invalid) && !invalid.Contains(ref)
}

// Close releases nothing; parameters are owned by whoever built them.
func (p *ParamProvider) Close() error { return nil }

func (p *ParamProvider) parameter(name string) (*cache.Parameter, error) {
	if p.lookup != nil {
		if param, ok := p.lookup(name); ok {
			return param, nil
		}
	}
	if p.fallback == nil {
		return nil, fmt.Errorf("%w: parameter %q is not configured", ErrInvalidRef, name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if param, ok := p.created[name]; ok {
		return param, nil
	}
	param, err := cache.New(p.fallback, name, p.fallbackOpts...)
	if err != nil {
		return nil, err
	}
	p.created[name] = param
	return param, nil
}
