package ai

import (
	"smartats/internal/config"
	"smartats/internal/errors"

	"github.com/sony/gobreaker/v2"
)

// CircuitBreaker fails calls fast while the model API keeps failing.
// It never retries. A nil *CircuitBreaker passes calls straight through.
type CircuitBreaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

// NewCircuitBreaker returns nil when the breaker is disabled
func NewCircuitBreaker[T any](name string, cfg config.CircuitBreakerConfig, logger *errors.Logger) *CircuitBreaker[T] {
	if !cfg.Enabled {
		return nil
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests && failureRatio >= cfg.FailureThreshold
		},
		IsSuccessful: isBreakerSuccess,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if logger != nil {
				logger.Info("Circuit breaker state changed",
					"name", name,
					"from", from.String(),
					"to", to.String(),
					"failure_threshold", cfg.FailureThreshold)
			}
		},
	}

	return &CircuitBreaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings)}
}

// isBreakerSuccess keeps caller mistakes from tripping the breaker.
// Only upstream and transport failures count.
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	appErr := classifyError(err)
	switch appErr.Code {
	case errors.ErrCodeAIBadRequest, errors.ErrCodeAIAuthFailed:
		return true
	}
	return false
}

// Execute runs fn under breaker protection
func (c *CircuitBreaker[T]) Execute(fn func() (T, error)) (T, error) {
	if c == nil || c.cb == nil {
		return fn()
	}
	return c.cb.Execute(fn)
}

// Stats returns circuit breaker statistics
func (c *CircuitBreaker[T]) Stats() map[string]any {
	if c == nil || c.cb == nil {
		return map[string]any{"enabled": false}
	}
	counts := c.cb.Counts()
	return map[string]any{
		"enabled":              true,
		"name":                 c.cb.Name(),
		"state":                c.cb.State().String(),
		"requests":             counts.Requests,
		"total_failures":       counts.TotalFailures,
		"consecutive_failures": counts.ConsecutiveFailures,
	}
}

// IsHealthy returns true unless the breaker is open
func (c *CircuitBreaker[T]) IsHealthy() bool {
	if c == nil || c.cb == nil {
		return true
	}
	return c.cb.State() != gobreaker.StateOpen
}
