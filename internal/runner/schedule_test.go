package runner

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDelayFor(t *testing.T) {
	tests := map[string]struct {
		workers int
		rate    float64
		want    time.Duration
	}{
		"two workers at ten per second": {workers: 2, rate: 10, want: 160 * time.Millisecond},
		"one worker at one per second":  {workers: 1, rate: 1, want: 960 * time.Millisecond},
		"overhead exceeds interval":     {workers: 1, rate: 100, want: 0},
		"exactly the overhead":          {workers: 1, rate: 25, want: 0},
		"zero rate":                     {workers: 4, rate: 0, want: 0},
		"negative rate":                 {workers: 4, rate: -3, want: 0},
		"no workers":                    {workers: 0, rate: 10, want: 0},
		"infinite rate":                 {workers: 4, rate: math.Inf(1), want: 0},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got := DelayFor(tc.workers, tc.rate)
			assert.InDelta(t, float64(tc.want), float64(got), float64(time.Microsecond))
			assert.GreaterOrEqual(t, got, time.Duration(0))
		})
	}
}

func TestPace(t *testing.T) {
	start := time.Now()
	assert.NoError(t, Pace(context.Background(), 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	assert.NoError(t, Pace(context.Background(), -time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start = time.Now()
	assert.ErrorIs(t, Pace(ctx, time.Hour), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, Pace(ctx, 0), context.Canceled)
}
