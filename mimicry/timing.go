// timing.go
//
// Timing profiles for the advisory inter-packet delay each mimicry profile
// exposes (§4.5). Grounded on original_source's TimingProfile
// (crates/llp-mimicry/src/timing.rs): a burst-probability model rather than
// a plain uniform distribution, so that a profile can reproduce a bursty
// video-like pattern or a steady audio-like one from the same shape.

package mimicry

import (
	"math/rand"
	"time"
)

// timingProfile samples an advisory delay before the next outbound chunk.
type timingProfile struct {
	minDelay, maxDelay time.Duration
	burstProbability   float64
	burstSize          int
}

func videoStreamingTiming() timingProfile {
	return timingProfile{
		minDelay:         10 * time.Millisecond,
		maxDelay:         100 * time.Millisecond,
		burstProbability: 0.7,
		burstSize:        5,
	}
}

func audioStreamingTiming() timingProfile {
	return timingProfile{
		minDelay:         50 * time.Millisecond,
		maxDelay:         200 * time.Millisecond,
		burstProbability: 0.3,
		burstSize:        2,
	}
}

func webBrowsingTiming() timingProfile {
	return timingProfile{
		minDelay:         20 * time.Millisecond,
		maxDelay:         500 * time.Millisecond,
		burstProbability: 0.5,
		burstSize:        3,
	}
}

// nextDelay samples the next advisory delay. During a burst (sampled with
// burstProbability) the delay stays near minDelay; otherwise it is drawn
// uniformly across the full range.
func (p timingProfile) nextDelay(rng *rand.Rand) time.Duration {
	if rng.Float64() < p.burstProbability {
		spread := 20 * time.Millisecond
		return p.minDelay + time.Duration(rng.Int63n(int64(spread)))
	}
	span := p.maxDelay - p.minDelay
	if span <= 0 {
		return p.minDelay
	}
	return p.minDelay + time.Duration(rng.Int63n(int64(span)))
}

func (p timingProfile) BurstSize() int { return p.burstSize }
