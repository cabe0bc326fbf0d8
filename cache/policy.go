package cache

import (
	"sync"
	"time"
)

// RefreshPolicy decides when a cached value must be fetched again.
//
// A policy with a positive max age asks for a refresh until it is first
// marked, and after that once strictly more than max age has passed since
// the last mark. A policy without one asks exactly once.
//
// The mark records a refresh attempt, successful or not, so a failing store
// is not hit again until the window has passed.
type RefreshPolicy struct {
	mu        sync.Mutex
	maxAge    time.Duration
	last      time.Time
	refreshed bool
	asked     bool
	now       func() time.Time
}

// PolicyOption configures a RefreshPolicy.
type PolicyOption func(*RefreshPolicy)

// WithPolicyClock sets the time source. Default: time.Now.
func WithPolicyClock(now func() time.Time) PolicyOption {
	return func(p *RefreshPolicy) {
		if now != nil {
			p.now = now
		}
	}
}

// NewRefreshPolicy creates a policy. A zero or negative maxAge means values
// never expire on their own.
func NewRefreshPolicy(maxAge time.Duration, opts ...PolicyOption) *RefreshPolicy {
	p := &RefreshPolicy{maxAge: maxAge, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ShouldRefresh reports whether the cached value is due for a refresh.
func (p *RefreshPolicy) ShouldRefresh() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.maxAge <= 0 {
		first := !p.refreshed && !p.asked
		p.asked = true
		return first
	}
	if !p.refreshed {
		return true
	}
	return p.now().After(p.last.Add(p.maxAge))
}

// MarkRefreshed records a refresh attempt at the current time. The recorded
// time never moves backwards, even if the clock does.
func (p *RefreshPolicy) MarkRefreshed() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if !p.refreshed || now.After(p.last) {
		p.last = now
	}
	p.refreshed = true
}

// LastRefresh returns the time of the last refresh attempt, or the zero time.
func (p *RefreshPolicy) LastRefresh() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// MaxAge returns the configured max age.
func (p *RefreshPolicy) MaxAge() time.Duration {
	return p.maxAge
}
