// File: internal/usecase/retry.go
package usecase

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain"
)

// RetryPolicy is a bounded exponential backoff with jitter. Only transient
// errors (persistence, gateway timeout) are retried.
type RetryPolicy struct {
	Attempts     int
	Initial      time.Duration
	Max          time.Duration
	Multiplier   float64
	JitterFactor float64
}

// NoRetry runs the operation exactly once.
var NoRetry = RetryPolicy{Attempts: 1}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:     3,
		Initial:      200 * time.Millisecond,
		Max:          2 * time.Second,
		Multiplier:   2,
		JitterFactor: 0.1,
	}
}

// Interval returns the wait before retry number attempt (1-based).
func (p RetryPolicy) Interval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	initial := p.Initial
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}
	mult := p.Multiplier
	if mult <= 0 {
		mult = 2
	}
	interval := float64(initial) * math.Pow(mult, float64(attempt-1))
	if p.JitterFactor > 0 {
		interval *= 1 + (rand.Float64()*2-1)*p.JitterFactor
	}
	if p.Max > 0 && interval > float64(p.Max) {
		interval = float64(p.Max)
	}
	return time.Duration(interval)
}

// Do runs fn until it succeeds, returns a non-transient error, the attempts
// are used up or ctx is done. The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(ctx); err == nil || !domain.IsTransient(err) {
			return err
		}
		if i == attempts {
			break
		}
		t := time.NewTimer(p.Interval(i))
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
	}
	return err
}
