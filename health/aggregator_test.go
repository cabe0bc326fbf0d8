package health

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/paramcache/observe"
)

func fixed(name string, status Status) Checker {
	return NewCheckerFunc(name, func(context.Context) Result {
		return Result{Status: status, Message: status.String()}
	})
}

func TestNewAggregator_Defaults(t *testing.T) {
	agg := NewAggregator()
	if agg.config.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", agg.config.Timeout)
	}
	if agg.config.Logger == nil {
		t.Error("Logger should default to a no-op logger")
	}
}

func TestAggregator_RegisterKeepsOrder(t *testing.T) {
	agg := NewAggregator()
	agg.Register(fixed("b", StatusHealthy))
	agg.Register(fixed("a", StatusHealthy))
	agg.Register(fixed("b", StatusDegraded))

	if got := agg.CheckerNames(); !slices.Equal(got, []string{"b", "a"}) {
		t.Errorf("CheckerNames() = %v, want [b a]", got)
	}

	agg.Unregister("b")
	if got := agg.CheckerNames(); !slices.Equal(got, []string{"a"}) {
		t.Errorf("CheckerNames() after Unregister = %v, want [a]", got)
	}
}

func TestAggregator_CheckUnknown(t *testing.T) {
	_, err := NewAggregator().Check(context.Background(), "missing")
	if !errors.Is(err, ErrCheckerNotFound) {
		t.Fatalf("Check() error = %v, want ErrCheckerNotFound", err)
	}
}

func TestAggregator_CheckAll(t *testing.T) {
	agg := NewAggregator()
	agg.Register(fixed("app", StatusHealthy))
	agg.Register(fixed("ssm", StatusDegraded))

	results := agg.CheckAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results["ssm"].Status != StatusDegraded {
		t.Errorf("ssm status = %v, want degraded", results["ssm"].Status)
	}
	if results["app"].Timestamp.IsZero() {
		t.Error("timestamp should be filled in")
	}
}

func TestAggregator_CheckAllTimesOut(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{Timeout: 20 * time.Millisecond})
	agg.Register(NewCheckerFunc("stuck", func(ctx context.Context) Result {
		time.Sleep(time.Second)
		return Healthy("late")
	}))

	r := agg.CheckAll(context.Background())["stuck"]
	if r.Status != StatusUnhealthy || !errors.Is(r.Error, ErrCheckTimeout) {
		t.Errorf("result = %+v, want unhealthy timeout", r)
	}
}

func TestAggregator_ConcurrencyLimit(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{Concurrency: 1})
	var running, peak atomic.Int32
	for _, n := range []string{"a", "b", "c"} {
		agg.Register(NewCheckerFunc(n, func(context.Context) Result {
			cur := running.Add(1)
			if cur > peak.Load() {
				peak.Store(cur)
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return Healthy("ok")
		}))
	}

	agg.CheckAll(context.Background())
	if peak.Load() != 1 {
		t.Errorf("peak concurrency = %d, want 1", peak.Load())
	}
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name    string
		results map[string]Result
		want    Status
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", map[string]Result{"a": {Status: StatusHealthy}}, StatusHealthy},
		{"one degraded", map[string]Result{"a": {Status: StatusHealthy}, "b": {Status: StatusDegraded}}, StatusDegraded},
		{"unhealthy wins", map[string]Result{"a": {Status: StatusDegraded}, "b": {Status: StatusUnhealthy}}, StatusUnhealthy},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := OverallStatus(tc.results); got != tc.want {
				t.Errorf("OverallStatus() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAggregator_LogsStatusChangesOnly(t *testing.T) {
	var buf bytes.Buffer
	agg := NewAggregator(AggregatorConfig{Logger: observe.NewLoggerWithWriter("debug", &buf)})

	var status atomic.Int32
	agg.Register(NewCheckerFunc("app", func(context.Context) Result {
		return Result{Status: Status(status.Load())}
	}))

	ctx := context.Background()
	agg.CheckAll(ctx)
	agg.CheckAll(ctx)
	status.Store(int32(StatusUnhealthy))
	agg.CheckAll(ctx)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2: %s", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], `"level":"error"`) {
		t.Errorf("unhealthy transition should log at error: %s", lines[1])
	}
}

func TestAggregator_Checker(t *testing.T) {
	agg := NewAggregator()
	agg.Register(fixed("a", StatusHealthy))
	agg.Register(fixed("b", StatusDegraded))

	c := agg.Checker()
	if c.Name() != "aggregate" {
		t.Errorf("Name() = %q, want aggregate", c.Name())
	}
	r := c.Check(context.Background())
	if r.Status != StatusDegraded || r.Details["b"] != "degraded" {
		t.Errorf("Check() = %+v", r)
	}
}
