// pacer.go
//
// Pacer enforces the advisory inter-packet timing a mimicry profile
// describes (§4.5's "Timing" clause — honored when latency budget
// permits, never a correctness requirement). It layers a profile's
// bursty/steady jitter from NextDelay on top of a hard token-bucket
// ceiling from golang.org/x/time/rate, so a profile cannot be made to emit
// faster than the aggregate rate a real streaming session would sustain
// even during its burst windows.

package mimicry

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer wraps a Wrapper's timing advice with a hard-ceiling rate limiter.
type Pacer struct {
	wrapper *Wrapper
	limiter *rate.Limiter
}

// NewPacer builds a Pacer for wrapper, capping throughput at
// ceilingBytesPerSec with a burst allowance of one recommended chunk.
func NewPacer(wrapper *Wrapper, ceilingBytesPerSec int) *Pacer {
	burst := wrapper.RecommendedChunkSize()
	return &Pacer{
		wrapper: wrapper,
		limiter: rate.NewLimiter(rate.Limit(ceilingBytesPerSec), burst),
	}
}

// WaitToSend blocks until both the profile's advisory jitter delay has
// elapsed and the rate-limiter ceiling has capacity for n bytes, or ctx is
// done.
func (p *Pacer) WaitToSend(ctx context.Context, n int) error {
	select {
	case <-time.After(p.wrapper.NextDelay()):
	case <-ctx.Done():
		return ctx.Err()
	}
	return p.limiter.WaitN(ctx, n)
}
