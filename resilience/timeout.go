package resilience

import (
	"context"
	"errors"
	"time"
)

// Timeout bounds a single remote call.
type Timeout struct {
	timeout time.Duration
}

// NewTimeout creates a timeout wrapper. A non-positive d defaults to 10s.
func NewTimeout(d time.Duration) *Timeout {
	if d <= 0 {
		d = 10 * time.Second
	}
	return &Timeout{timeout: d}
}

// Execute runs op with a deadline. Store clients honor context
// cancellation, so op is called inline.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	err := op(ctx)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}

// Duration returns the configured timeout.
func (t *Timeout) Duration() time.Duration {
	return t.timeout
}
