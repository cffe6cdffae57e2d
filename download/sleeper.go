package download

import (
	"context"
	"math/rand/v2"
	"time"
)

// Sleeper blocks for a duration unless ctx ends first
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// JitterSource picks a delay in [min, max]
type JitterSource func(min, max time.Duration) time.Duration

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RandomJitter returns a uniformly random duration in [min, max].
func RandomJitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int64N(int64(max-min)+1))
}
