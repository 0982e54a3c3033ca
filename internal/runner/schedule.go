package runner

import (
	"context"
	"math"
	"time"
)

// FixedOverhead approximates the per-request processing cost that is not
// spent sleeping, so observed throughput tracks the target rate.
const FixedOverhead = 40 * time.Millisecond

// DelayFor returns the sleep each of workers must take between issuances so
// that together they approximate rate requests per second. A computed delay
// at or below zero means "issue as fast as possible" and is returned as 0.
func DelayFor(workers int, rate float64) time.Duration {
	if workers <= 0 || rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0
	}
	d := time.Duration(float64(workers)/rate*float64(time.Second)) - FixedOverhead
	if d < 0 {
		return 0
	}
	return d
}

// Pace sleeps for d. Non-positive durations return immediately. It returns
// ctx.Err() if the context ends first.
func Pace(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
