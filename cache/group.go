package cache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/paramcache/observe"
	"github.com/jonwraymond/paramcache/store"
)

// Group caches many keys behind one RefreshPolicy and refreshes them
// together, MaxBatchSize names per remote call.
//
// Members are created with Add and keep their insertion order, which fixes
// the batch layout. Group is safe for concurrent use.
type Group struct {
	name      string
	store     store.Store
	decrypt   bool
	batchSize int
	policy    *RefreshPolicy
	mw        *observe.Middleware

	mu      sync.RWMutex
	members map[string]*Parameter
	order   []string
	lastErr error

	flight singleflight.Group
}

// NewGroup creates an empty group reading from s.
func NewGroup(s store.Store, opts ...GroupOption) (*Group, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: store is nil", ErrConfig)
	}

	o := groupOptions{decrypt: true, batchSize: store.MaxBatchSize}
	for _, opt := range opts {
		opt(&o)
	}

	return &Group{
		name:      o.name,
		store:     s,
		decrypt:   o.decrypt,
		batchSize: o.batchSize,
		policy:    NewRefreshPolicy(o.maxAge, WithPolicyClock(o.now)),
		mw:        o.mw,
		members:   make(map[string]*Parameter),
	}, nil
}

// Add creates a member for name. The member inherits the group's decryption
// setting unless WithDecryption is given. WithMaxAge is rejected, as is a
// name that is already a member.
func (g *Group) Add(name string, opts ...Option) (*Parameter, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	o := paramOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxAgeSet {
		return nil, fmt.Errorf("%w: max age can't be set individually for grouped parameter %q", ErrConfig, name)
	}
	decrypt := g.decrypt
	if o.decryptSet {
		decrypt = o.decrypt
	}

	p := &Parameter{
		name:    name,
		decrypt: decrypt,
		store:   g.store,
		policy:  NewRefreshPolicy(0),
		group:   g,
		mw:      g.mw,
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.members[name]; exists {
		return nil, fmt.Errorf("%w: parameter %q already in group", ErrConfig, name)
	}
	g.members[name] = p
	g.order = append(g.order, name)
	return p, nil
}

// Name returns the group name given with WithGroupName.
func (g *Group) Name() string { return g.name }

// MaxAge returns the group's max age.
func (g *Group) MaxAge() time.Duration { return g.policy.MaxAge() }

// Names returns member names in insertion order.
func (g *Group) Names() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.order)
}

// Len returns the number of members.
func (g *Group) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.order)
}

// Parameter returns the member named name.
func (g *Group) Parameter(name string) (*Parameter, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.members[name]
	return p, ok
}

// LastRefresh returns the time of the last refresh attempt, or the zero time.
func (g *Group) LastRefresh() time.Time {
	return g.policy.LastRefresh()
}

// LastError returns the error of the last refresh attempt, or nil.
func (g *Group) LastError() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lastErr
}

// Refresh fetches every member unconditionally.
//
// Names are fetched in insertion order, one remote call per batch, with
// decryption on if any member wants it. Found values are stored as they
// arrive. Names the store does not know are collected across all batches
// and reported together as an *InvalidParamError once every batch has run.
// A transport error stops the refresh and is returned as is; members
// updated by earlier batches keep their new values.
//
// The policy is marked refreshed once, whatever the outcome. Refreshing an
// empty group does nothing.
func (g *Group) Refresh(ctx context.Context) error {
	g.mu.RLock()
	names := slices.Clone(g.order)
	members := make(map[string]*Parameter, len(g.members))
	decrypt := false
	for name, p := range g.members {
		members[name] = p
		decrypt = decrypt || p.decrypt
	}
	g.mu.RUnlock()

	if len(names) == 0 {
		g.policy.MarkRefreshed()
		g.mu.Lock()
		g.lastErr = nil
		g.mu.Unlock()
		return nil
	}

	batches := store.Batches(names, g.batchSize)
	meta := g.meta().WithOperation(observe.OpRefresh).WithKeys(len(names))
	logger := g.mw.Logger(meta)

	var invalid []string
	err := g.mw.Run(ctx, meta, func(ctx context.Context) error {
		for _, batch := range batches {
			res, err := g.store.FetchMany(ctx, batch, decrypt)
			if err != nil {
				return err
			}
			for name, v := range res.Found {
				if p, ok := members[name]; ok {
					p.setValue(v)
				}
			}
			invalid = append(invalid, res.Invalid...)
		}
		return nil
	})
	g.policy.MarkRefreshed()

	if err == nil {
		logger.Info(ctx, "group refreshed",
			observe.Field{Key: "batches", Value: len(batches)},
			observe.Field{Key: "invalid_count", Value: len(invalid)},
		)
		if len(invalid) > 0 {
			err = &InvalidParamError{Names: invalid}
			logger.Warn(ctx, "parameters not found in store", observe.Field{Key: "names", Value: invalid})
		}
	}

	g.mu.Lock()
	g.lastErr = err
	g.mu.Unlock()
	return err
}

// Values returns a snapshot of every member that has a value, refreshing
// the group first when any member is due. On an *InvalidParamError the
// snapshot of the members that do have values is returned with it.
func (g *Group) Values(ctx context.Context) (map[string]string, error) {
	var err error
	if g.due() {
		g.mw.Lookup(ctx, g.meta(), false)
		err = g.refreshShared(ctx)
		if err != nil && !errors.Is(err, ErrInvalidParam) {
			return nil, err
		}
	} else {
		g.mw.Lookup(ctx, g.meta(), true)
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string]string, len(g.order))
	for _, name := range g.order {
		p := g.members[name]
		if p.isSet() {
			out[name] = p.current()
		}
	}
	return out, err
}

// RefreshOnError wraps op with RefreshOnError using this group as the
// refresher.
func (g *Group) RefreshOnError(op func(ctx context.Context, isRetry bool) error, cfg RefreshOnErrorConfig) func(context.Context) error {
	if cfg.Logger == nil {
		cfg.Logger = g.mw.Logger(g.meta())
	}
	return discardResult(RefreshOnError(g, discardValue(op), cfg))
}

// valueOf serves Parameter.Value for members. When the refresh only
// reports other members missing, p's value is returned together with that
// error.
func (g *Group) valueOf(ctx context.Context, p *Parameter) (string, error) {
	if p.isSet() && !g.policy.ShouldRefresh() {
		g.mw.Lookup(ctx, p.meta(), true)
		return p.current(), nil
	}
	g.mw.Lookup(ctx, p.meta(), false)

	err := g.refreshShared(ctx)
	if !p.isSet() && (err == nil || siblingsOnly(err, p.name)) {
		// p joined after the shared refresh had taken its member snapshot.
		err = g.Refresh(ctx)
	}
	switch {
	case err == nil:
		return p.current(), nil
	case siblingsOnly(err, p.name) && p.isSet():
		return p.current(), err
	default:
		return "", err
	}
}

// siblingsOnly reports whether err lists missing names that do not include name.
func siblingsOnly(err error, name string) bool {
	var invalid *InvalidParamError
	return errors.As(err, &invalid) && !invalid.Contains(name)
}

// refreshShared coalesces concurrent demand-driven refreshes.
func (g *Group) refreshShared(ctx context.Context) error {
	return shared(ctx, &g.flight, "refresh", g.Refresh)
}

func (g *Group) due() bool {
	if g.policy.ShouldRefresh() {
		return true
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, p := range g.members {
		if !p.isSet() {
			return true
		}
	}
	return false
}

func (g *Group) meta() observe.Meta {
	return observe.Meta{Kind: observe.KindGroup, Name: g.name}
}
