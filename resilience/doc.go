// Package resilience guards calls to a remote parameter store.
//
// A refresh that fails is not retried by the cache itself, so transient
// store failures (throttling, timeouts, connection resets) are absorbed
// here, below the cache:
//
//   - Retry: retries failed calls with exponential, linear, or constant
//     backoff.
//
//   - Circuit Breaker: fails fast once the store has failed MaxFailures
//     times in a row, then probes it again after ResetTimeout.
//
//   - Rate Limiter: a token bucket that keeps refresh bursts under the
//     store's request quota.
//
//   - Timeout: bounds each attempt.
//
// Errors marked with Permanent, such as a missing parameter, are returned
// at once and do not count as breaker failures.
//
//	exec := resilience.NewExecutor(
//	    resilience.WithRateLimiter(resilience.NewRateLimiter(resilience.RateLimiterConfig{})),
//	    resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{Jitter: true})),
//	    resilience.WithTimeout(5*time.Second),
//	)
//
//	err := exec.Execute(ctx, func(ctx context.Context) error {
//	    return callStore(ctx)
//	})
package resilience
