package integration

import "time"

// Breaker defaults
const (
	DefaultBreakerThreshold  = 5
	DefaultBreakerResetAfter = 60 * time.Second
)

// BreakerStatus is the state of a circuit breaker
type BreakerStatus string

const (
	BreakerClosed   BreakerStatus = "CLOSED"
	BreakerOpen     BreakerStatus = "OPEN"
	BreakerHalfOpen BreakerStatus = "HALF_OPEN"
)

// CircuitBreaker tracks consecutive failures of calls to one platform or
// webhook endpoint. Open->HalfOpen is evaluated lazily by Evaluate rather
// than by a timer.
type CircuitBreaker struct {
	Status              BreakerStatus
	ConsecutiveFailures int
	Threshold           int
	OpenedAt            *time.Time
	ResetAfter          time.Duration
	SuccessCount        int64
	FailureCount        int64
	LastSuccessAt       *time.Time
	LastFailureAt       *time.Time
}

// NewCircuitBreaker returns a closed breaker. Non-positive arguments fall
// back to the defaults.
func NewCircuitBreaker(threshold int, resetAfter time.Duration) CircuitBreaker {
	b := CircuitBreaker{
		Status:     BreakerClosed,
		Threshold:  threshold,
		ResetAfter: resetAfter,
	}
	b.normalize()
	return b
}

func (b *CircuitBreaker) normalize() {
	if b.Status == "" {
		b.Status = BreakerClosed
	}
	if b.Threshold <= 0 {
		b.Threshold = DefaultBreakerThreshold
	}
	if b.ResetAfter <= 0 {
		b.ResetAfter = DefaultBreakerResetAfter
	}
}

// RecordSuccess records a successful call. Any success closes the breaker
// and clears the failure streak. Returns true if the status changed.
func (b *CircuitBreaker) RecordSuccess(now time.Time) bool {
	b.normalize()
	prev := b.Status
	b.SuccessCount++
	b.LastSuccessAt = &now
	b.ConsecutiveFailures = 0
	b.Status = BreakerClosed
	b.OpenedAt = nil
	return prev != b.Status
}

// RecordFailure records a failed call and opens the breaker once the
// failure streak reaches the threshold. Returns true if the status changed.
func (b *CircuitBreaker) RecordFailure(now time.Time) bool {
	b.normalize()
	prev := b.Status
	b.FailureCount++
	b.LastFailureAt = &now
	b.ConsecutiveFailures++
	if b.ConsecutiveFailures >= b.Threshold && b.Status != BreakerOpen {
		b.Status = BreakerOpen
		b.OpenedAt = &now
	}
	return prev != b.Status
}

// Evaluate applies the passive timeout: an open breaker whose reset window
// has elapsed becomes half-open. Returns true if the status changed.
func (b *CircuitBreaker) Evaluate(now time.Time) bool {
	b.normalize()
	if b.Status != BreakerOpen || b.OpenedAt == nil {
		return false
	}
	if now.After(b.OpenedAt.Add(b.ResetAfter)) {
		b.Status = BreakerHalfOpen
		return true
	}
	return false
}

// AllowsRequest reports whether a caller should issue the next call. It
// does not change state; call Evaluate first to apply the timeout.
func (b CircuitBreaker) AllowsRequest() bool {
	return b.Status != BreakerOpen
}

// RetryAt returns when an open breaker will admit a trial call
func (b CircuitBreaker) RetryAt() *time.Time {
	if b.Status != BreakerOpen || b.OpenedAt == nil {
		return nil
	}
	t := b.OpenedAt.Add(b.ResetAfter)
	return &t
}
