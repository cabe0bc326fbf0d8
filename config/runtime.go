package config

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/jonwraymond/paramcache/cache"
	"github.com/jonwraymond/paramcache/health"
	"github.com/jonwraymond/paramcache/observe"
	"github.com/jonwraymond/paramcache/resilience"
	"github.com/jonwraymond/paramcache/secret"
	"github.com/jonwraymond/paramcache/store"
)

// Runtime holds everything Build created from a Config.
type Runtime struct {
	cfg          *Config
	observer     observe.Observer
	ownsObserver bool
	mw           *observe.Middleware
	logger       observe.Logger
	store        store.Store
	executor     *resilience.Executor

	groups     map[string]*cache.Group
	groupOrder []string
	params     map[string]*cache.Parameter
	standalone []*cache.Parameter

	health   *health.Aggregator
	resolver *secret.Resolver
}

// Config returns the configuration the runtime was built from.
func (rt *Runtime) Config() *Config { return rt.cfg }

// Store returns the decorated store shared by every parameter.
func (rt *Runtime) Store() store.Store { return rt.store }

// Logger returns the runtime's logger.
func (rt *Runtime) Logger() observe.Logger { return rt.logger }

// Health returns the aggregator holding every configured check.
func (rt *Runtime) Health() *health.Aggregator { return rt.health }

// Resolver returns a resolver answering "secretref:param:<name>".
func (rt *Runtime) Resolver() *secret.Resolver { return rt.resolver }

// Group returns the group called name.
func (rt *Runtime) Group(name string) (*cache.Group, error) {
	g, ok := rt.groups[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, name)
	}
	return g, nil
}

// Groups returns the groups in file order.
func (rt *Runtime) Groups() []*cache.Group {
	out := make([]*cache.Group, 0, len(rt.groupOrder))
	for _, name := range rt.groupOrder {
		out = append(out, rt.groups[name])
	}
	return out
}

// Lookup finds a configured parameter, grouped or standalone.
func (rt *Runtime) Lookup(name string) (*cache.Parameter, bool) {
	p, ok := rt.params[name]
	return p, ok
}

// Names returns every configured parameter name, sorted.
func (rt *Runtime) Names() []string {
	names := make([]string, 0, len(rt.params))
	for n := range rt.params {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Values returns the values of names. Configured parameters are read
// through their cache; the rest are fetched together through a one-off
// group so they share batched calls. Missing names are reported in one
// *cache.InvalidParamError alongside the values that were found.
func (rt *Runtime) Values(ctx context.Context, names []string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	var invalid, adhoc []string
	seen := make(map[string]bool, len(names))

	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		p, ok := rt.Lookup(name)
		if !ok {
			adhoc = append(adhoc, name)
			continue
		}
		v, err := p.Value(ctx)
		var ipe *cache.InvalidParamError
		switch {
		case err == nil:
			out[name] = v
		case errors.As(err, &ipe) && !ipe.Contains(name):
			// Missing group siblings that were not asked for.
			out[name] = v
			rt.logger.Warn(ctx, "group members not found", observe.Field{Key: "names", Value: ipe.Names})
		case errors.As(err, &ipe):
			invalid = append(invalid, name)
		default:
			return nil, err
		}
	}

	if len(adhoc) > 0 {
		g, err := cache.NewGroup(rt.store, cache.WithGroupName("adhoc"), cache.WithGroupTelemetry(rt.mw))
		if err != nil {
			return nil, err
		}
		for _, name := range adhoc {
			if _, err := g.Add(name); err != nil {
				return nil, err
			}
		}
		vals, err := g.Values(ctx)
		var ipe *cache.InvalidParamError
		if err != nil && !errors.As(err, &ipe) {
			return nil, err
		}
		for k, v := range vals {
			out[k] = v
		}
		if ipe != nil {
			invalid = append(invalid, ipe.Names...)
		}
	}

	if len(invalid) > 0 {
		return out, &cache.InvalidParamError{Names: invalid}
	}
	return out, nil
}

// Warm refreshes every group and standalone parameter once. Invalid names
// are logged by the cache and not returned; other failures are joined.
func (rt *Runtime) Warm(ctx context.Context) error {
	var errs []error
	keep := func(err error) {
		if err != nil && !errors.Is(err, cache.ErrInvalidParam) {
			errs = append(errs, err)
		}
	}
	for _, g := range rt.Groups() {
		keep(g.Refresh(ctx))
	}
	for _, p := range rt.standalone {
		keep(p.Refresh(ctx))
	}
	return errors.Join(errs...)
}

// Close releases the store, the resolver's providers, and the observer if
// Build created it.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	if rt.resolver != nil {
		errs = append(errs, rt.resolver.Close())
	}
	if rt.store != nil {
		errs = append(errs, store.Close(ctx, rt.store))
	}
	if rt.observer != nil && rt.ownsObserver {
		errs = append(errs, rt.observer.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
