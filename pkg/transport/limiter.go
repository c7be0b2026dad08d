package transport

import (
	"context"
	"math"

	"golang.org/x/time/rate"
)

// NewLimiter returns a limiter allowing perSecond requests with a burst of
// the same size, or nil when perSecond is not positive.
func NewLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	burst := int(math.Ceil(perSecond))
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Wait blocks until limiter admits one request. A nil limiter never blocks.
func Wait(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}
