package health

import (
	"context"
	"errors"
	"time"

	"github.com/jonwraymond/paramcache/cache"
	"github.com/jonwraymond/paramcache/store"
)

// NewGroupChecker reports on g from its last refresh attempt. It never
// triggers a fetch.
//
//   - never refreshed: Degraded
//   - last refresh named missing keys: Degraded
//   - last refresh failed to reach the store: Unhealthy
//   - otherwise: Healthy
func NewGroupChecker(name string, g *cache.Group) Checker {
	return NewCheckerFunc(name, func(context.Context) Result {
		details := map[string]any{
			"parameters": g.Len(),
			"max_age":    g.MaxAge().String(),
		}
		last := g.LastRefresh()
		if last.IsZero() {
			return Degraded("group not loaded yet", ErrNeverRefreshed).WithDetails(details)
		}
		details["last_refresh"] = last.UTC().Format(time.RFC3339)
		return fromRefreshError(g.LastError(), details)
	})
}

// NewParameterChecker reports on a standalone parameter the same way
// NewGroupChecker reports on a group.
func NewParameterChecker(name string, p *cache.Parameter) Checker {
	return NewCheckerFunc(name, func(context.Context) Result {
		details := map[string]any{"parameter": p.Name()}
		last := p.LastRefresh()
		if last.IsZero() {
			return Degraded("parameter not loaded yet", ErrNeverRefreshed).WithDetails(details)
		}
		details["last_refresh"] = last.UTC().Format(time.RFC3339)
		return fromRefreshError(p.LastError(), details)
	})
}

// NewStoreChecker fetches probeKey from s without decryption. A missing key
// still proves the store answers, so only transport errors are unhealthy.
func NewStoreChecker(name string, s store.Store, probeKey string) Checker {
	return NewCheckerFunc(name, func(ctx context.Context) Result {
		_, err := s.FetchOne(ctx, probeKey, false)
		switch {
		case err == nil:
			return Healthy("store reachable")
		case errors.Is(err, store.ErrKeyNotFound):
			return Healthy("store reachable, probe key absent")
		default:
			return Unhealthy("store unreachable", err)
		}
	})
}

func fromRefreshError(err error, details map[string]any) Result {
	var invalid *cache.InvalidParamError
	switch {
	case err == nil:
		return Healthy("values fresh").WithDetails(details)
	case errors.As(err, &invalid):
		details["invalid"] = invalid.Names
		return Degraded("some parameters missing from store", err).WithDetails(details)
	default:
		return Unhealthy("last refresh failed", err).WithDetails(details)
	}
}
