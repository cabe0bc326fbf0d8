package health

import (
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/paramcache/observe"
)

// AggregatorConfig configures an Aggregator.
type AggregatorConfig struct {
	// Timeout bounds a full CheckAll run.
	// Default: 10 seconds
	Timeout time.Duration

	// Concurrency caps the checks running at once. Zero or less runs every
	// check at once; 1 runs them in registration order.
	Concurrency int

	// Logger receives status changes. Default: no logging.
	Logger observe.Logger
}

// Aggregator runs a set of named checkers and folds their results into one
// status.
type Aggregator struct {
	config AggregatorConfig

	mu       sync.RWMutex
	checkers map[string]Checker
	order    []string
	last     map[string]Status
}

// NewAggregator creates an empty aggregator.
func NewAggregator(config ...AggregatorConfig) *Aggregator {
	var cfg AggregatorConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	return &Aggregator{
		config:   cfg,
		checkers: make(map[string]Checker),
		last:     make(map[string]Status),
	}
}

// Register adds c under its own name, replacing a checker with that name.
func (a *Aggregator) Register(c Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()

	name := c.Name()
	if _, exists := a.checkers[name]; !exists {
		a.order = append(a.order, name)
	}
	a.checkers[name] = c
}

// Unregister removes the checker called name.
func (a *Aggregator) Unregister(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.checkers, name)
	delete(a.last, name)
	a.order = slices.DeleteFunc(a.order, func(n string) bool { return n == name })
}

// CheckerNames returns checker names in registration order.
func (a *Aggregator) CheckerNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.order)
}

// Check runs the checker called name.
func (a *Aggregator) Check(ctx context.Context, name string) (Result, error) {
	a.mu.RLock()
	c, ok := a.checkers[name]
	a.mu.RUnlock()
	if !ok {
		return Result{}, ErrCheckerNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()
	r := run(ctx, c)
	a.record(ctx, name, r)
	return r, nil
}

// CheckAll runs every checker and returns the results keyed by name.
func (a *Aggregator) CheckAll(ctx context.Context) map[string]Result {
	a.mu.RLock()
	names := slices.Clone(a.order)
	checkers := make([]Checker, len(names))
	for i, n := range names {
		checkers[i] = a.checkers[n]
	}
	a.mu.RUnlock()

	results := make(map[string]Result, len(names))
	if len(names) == 0 {
		return results
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	out := make([]Result, len(names))
	var g errgroup.Group
	if a.config.Concurrency > 0 {
		g.SetLimit(a.config.Concurrency)
	}
	for i, c := range checkers {
		g.Go(func() error {
			out[i] = run(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	for i, n := range names {
		results[n] = out[i]
		a.record(ctx, n, out[i])
	}
	return results
}

// OverallStatus returns the worst status in results; Healthy when empty.
func OverallStatus(results map[string]Result) Status {
	status := StatusHealthy
	for _, r := range results {
		status = status.worse(r.Status)
	}
	return status
}

// Checker returns the aggregator as a single Checker named "aggregate".
func (a *Aggregator) Checker() Checker {
	return NewCheckerFunc("aggregate", func(ctx context.Context) Result {
		results := a.CheckAll(ctx)
		status := OverallStatus(results)

		details := make(map[string]any, len(results))
		for name, r := range results {
			details[name] = r.Status.String()
		}

		var msg string
		switch status {
		case StatusHealthy:
			msg = "all checks passed"
		case StatusDegraded:
			msg = "some checks degraded"
		default:
			msg = "some checks failed"
		}
		return Result{Status: status, Message: msg, Details: details, Timestamp: time.Now()}
	})
}

// record logs a checker's status when it differs from the previous run.
func (a *Aggregator) record(ctx context.Context, name string, r Result) {
	a.mu.Lock()
	prev, seen := a.last[name]
	a.last[name] = r.Status
	a.mu.Unlock()

	if seen && prev == r.Status {
		return
	}
	fields := []observe.Field{
		{Key: "check", Value: name},
		{Key: "status", Value: r.Status.String()},
	}
	if r.Error != nil {
		fields = append(fields, observe.Field{Key: "error", Value: r.Error.Error()})
	}
	switch r.Status {
	case StatusHealthy:
		a.config.Logger.Info(ctx, "health status changed", fields...)
	case StatusDegraded:
		a.config.Logger.Warn(ctx, "health status changed", fields...)
	default:
		a.config.Logger.Error(ctx, "health status changed", fields...)
	}
}

// run calls c and gives up when ctx ends first.
func run(ctx context.Context, c Checker) Result {
	start := time.Now()
	done := make(chan Result, 1)
	go func() {
		done <- c.Check(ctx)
	}()

	var r Result
	select {
	case r = <-done:
	case <-ctx.Done():
		r = Unhealthy("check timed out", ErrCheckTimeout)
	}
	r.Duration = time.Since(start)
	if r.Timestamp.IsZero() {
		r.Timestamp = start
	}
	return r
}
