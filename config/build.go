package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/paramcache/cache"
	"github.com/jonwraymond/paramcache/health"
	"github.com/jonwraymond/paramcache/observe"
	"github.com/jonwraymond/paramcache/resilience"
	"github.com/jonwraymond/paramcache/secret"
	"github.com/jonwraymond/paramcache/store"

	// Backends register themselves with store.DefaultRegistry.
	_ "github.com/jonwraymond/paramcache/store/redis"
	_ "github.com/jonwraymond/paramcache/store/ssm"
)

// BuildOption adjusts Build.
type BuildOption func(*buildOptions)

type buildOptions struct {
	registry *store.Registry
	observer observe.Observer
	now      func() time.Time
}

// WithRegistry creates the store from r instead of store.DefaultRegistry.
func WithRegistry(r *store.Registry) BuildOption {
	return func(o *buildOptions) { o.registry = r }
}

// WithObserver uses obs instead of building one from the observe section.
// The runtime does not shut obs down.
func WithObserver(obs observe.Observer) BuildOption {
	return func(o *buildOptions) { o.observer = obs }
}

// WithClock sets the time source of every refresh policy.
func WithClock(now func() time.Time) BuildOption {
	return func(o *buildOptions) { o.now = now }
}

// Build creates the store, groups, parameters, health checks, and secret
// resolver described by cfg. On error everything created so far is closed.
func Build(ctx context.Context, cfg *Config, opts ...BuildOption) (rt *Runtime, err error) {
	o := buildOptions{registry: store.DefaultRegistry}
	for _, opt := range opts {
		opt(&o)
	}

	rt = &Runtime{
		cfg:    cfg,
		groups: make(map[string]*cache.Group),
		params: make(map[string]*cache.Parameter),
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, rt.Close(context.WithoutCancel(ctx)))
			rt = nil
		}
	}()

	if o.observer != nil {
		rt.observer = o.observer
	} else {
		obs, err := observe.NewObserver(ctx, cfg.ObserverConfig())
		if err != nil {
			return rt, err
		}
		rt.observer = obs
		rt.ownsObserver = true
	}
	rt.mw, err = observe.MiddlewareFromObserver(rt.observer)
	if err != nil {
		return rt, err
	}
	rt.logger = rt.observer.Logger()

	raw, err := o.registry.Create(ctx, cfg.Store.Backend, cfg.Store.Options())
	if err != nil {
		return rt, fmt.Errorf("config: store %q: %w", cfg.Store.Backend, err)
	}
	rt.store = store.Instrument(raw, rt.mw, cfg.Store.Backend)
	if !cfg.Store.Resilience.Disabled {
		rt.executor = cfg.Store.Resilience.executor(rt.logger)
		rt.store = store.WithResilience(rt.store, rt.executor)
	}

	for _, gc := range cfg.Groups {
		if err := rt.addGroup(gc, o.now); err != nil {
			return rt, err
		}
	}
	for _, pc := range cfg.Parameters {
		if err := rt.addParameter(pc, o.now); err != nil {
			return rt, err
		}
	}

	rt.health = rt.buildHealth()
	rt.resolver = rt.buildResolver()

	rt.logger.Info(ctx, "runtime built",
		observe.Field{Key: "backend", Value: cfg.Store.Backend},
		observe.Field{Key: "groups", Value: len(rt.groupOrder)},
		observe.Field{Key: "parameters", Value: len(rt.params)},
	)
	return rt, nil
}

func (rt *Runtime) addGroup(gc GroupConfig, now func() time.Time) error {
	opts := []cache.GroupOption{
		cache.WithGroupName(gc.Name),
		cache.WithGroupMaxAge(gc.MaxAge),
		cache.WithGroupTelemetry(rt.mw),
	}
	if gc.Decrypt != nil {
		opts = append(opts, cache.WithGroupDecryption(*gc.Decrypt))
	}
	if gc.BatchSize > 0 {
		opts = append(opts, cache.WithBatchSize(gc.BatchSize))
	}
	if now != nil {
		opts = append(opts, cache.WithGroupClock(now))
	}

	g, err := cache.NewGroup(rt.store, opts...)
	if err != nil {
		return err
	}
	for _, pc := range gc.Parameters {
		var popts []cache.Option
		if pc.Decrypt != nil {
			popts = append(popts, cache.WithDecryption(*pc.Decrypt))
		}
		p, err := g.Add(pc.Name, popts...)
		if err != nil {
			return fmt.Errorf("config: group %q: %w", gc.Name, err)
		}
		rt.params[p.Name()] = p
	}
	rt.groups[gc.Name] = g
	rt.groupOrder = append(rt.groupOrder, gc.Name)
	return nil
}

func (rt *Runtime) addParameter(pc ParameterConfig, now func() time.Time) error {
	opts := []cache.Option{
		cache.WithMaxAge(pc.MaxAge),
		cache.WithTelemetry(rt.mw),
	}
	if pc.Decrypt != nil {
		opts = append(opts, cache.WithDecryption(*pc.Decrypt))
	}
	if now != nil {
		opts = append(opts, cache.WithClock(now))
	}

	p, err := cache.New(rt.store, pc.Name, opts...)
	if err != nil {
		return err
	}
	rt.params[p.Name()] = p
	rt.standalone = append(rt.standalone, p)
	return nil
}

func (rt *Runtime) buildHealth() *health.Aggregator {
	agg := health.NewAggregator(health.AggregatorConfig{
		Timeout: rt.cfg.Health.Timeout,
		Logger:  rt.logger,
	})
	for _, name := range rt.groupOrder {
		agg.Register(health.NewGroupChecker("group:"+name, rt.groups[name]))
	}
	for _, p := range rt.standalone {
		agg.Register(health.NewParameterChecker("parameter:"+p.Name(), p))
	}
	if rt.cfg.Health.ProbeKey != "" {
		agg.Register(health.NewStoreChecker("store:"+rt.cfg.Store.Backend, rt.store, rt.cfg.Health.ProbeKey))
	}
	if cb := rt.executor.CircuitBreaker(); cb != nil {
		agg.Register(health.NewCheckerFunc("circuit", func(context.Context) health.Result {
			m := cb.Metrics()
			details := map[string]any{"state": m.State.String(), "failures": m.Failures}
			switch m.State {
			case resilience.StateClosed:
				return health.Healthy("circuit closed").WithDetails(details)
			case resilience.StateHalfOpen:
				return health.Degraded("circuit probing", nil).WithDetails(details)
			default:
				return health.Unhealthy("circuit open", resilience.ErrCircuitOpen).WithDetails(details)
			}
		}))
	}
	return agg
}

func (rt *Runtime) buildResolver() *secret.Resolver {
	var popts []secret.ParamProviderOption
	if rt.cfg.Secrets.AllowUnlisted {
		popts = append(popts, secret.WithFallbackStore(rt.store, cache.WithTelemetry(rt.mw)))
	}
	return secret.NewResolver(
		secret.ResolverConfig{Strict: rt.cfg.Secrets.Strict, Logger: rt.logger},
		secret.NewParamProvider(secret.ParamProviderName, rt.Lookup, popts...),
	)
}

// executor builds the resilience chain. Zero fields keep package defaults.
func (r ResilienceConfig) executor(logger observe.Logger) *resilience.Executor {
	opts := []resilience.ExecutorOption{
		resilience.WithRateLimiter(resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Rate:        r.Rate,
			Burst:       r.Burst,
			WaitOnLimit: true,
		})),
		resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			MaxFailures:  r.CircuitMaxFailures,
			ResetTimeout: r.CircuitReset,
			OnStateChange: func(from, to resilience.State) {
				logger.Warn(context.Background(), "store circuit state changed",
					observe.Field{Key: "from", Value: from.String()},
					observe.Field{Key: "to", Value: to.String()},
				)
			},
		})),
		resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{
			MaxAttempts:  r.MaxAttempts,
			InitialDelay: r.InitialDelay,
			MaxDelay:     r.MaxDelay,
			Strategy:     resilience.ParseBackoff(r.Backoff),
			Jitter:       r.Jitter,
			OnRetry: func(attempt int, err error, delay time.Duration) {
				logger.Debug(context.Background(), "retrying store call",
					observe.Field{Key: "attempt", Value: attempt},
					observe.Field{Key: "delay_ms", Value: delay.Milliseconds()},
					observe.Field{Key: "error", Value: err.Error()},
				)
			},
		})),
	}
	if r.Timeout > 0 {
		opts = append(opts, resilience.WithTimeout(r.Timeout))
	}
	return resilience.NewExecutor(opts...)
}
