package backoff

import (
	"math/rand"
	"time"
)

// MinWait is the absolute floor for a scheduled wait, applied after jitter.
const MinWait = 500 * time.Millisecond

// Policy computes reconnect wait times. It is stateless with respect to
// wall-clock time; callers own the current delay and the actual timer.
type Policy struct {
	// Lower is the delay after a successful connection (reset value).
	Lower time.Duration
	// Upper caps the doubled delay.
	Upper time.Duration
	// Jitter is the fraction of randomized variance, e.g. 0.2 for ±20%.
	Jitter float64
}

// DefaultPolicy returns the standard reconnect policy.
func DefaultPolicy() Policy {
	return Policy{
		Lower:  1 * time.Second,
		Upper:  15 * time.Second,
		Jitter: 0.2,
	}
}

// Double returns the next base delay: min(Upper, prev*2).
func (p Policy) Double(prev time.Duration) time.Duration {
	next := prev * 2
	if next > p.Upper {
		next = p.Upper
	}
	if next < p.Lower {
		next = p.Lower
	}
	return next
}

// Randomize applies ±Jitter to a base delay and floors the result at MinWait.
func (p Policy) Randomize(base time.Duration) time.Duration {
	d := base
	if p.Jitter > 0 {
		jitter := p.Jitter
		if jitter > 1 {
			jitter = 1
		}
		delta := float64(base) * jitter
		d = base - time.Duration(delta) + time.Duration(rand.Float64()*2*delta)
	}
	if d < MinWait {
		d = MinWait
	}
	return d
}

// Reset returns the delay to start from after a successful connection.
func (p Policy) Reset() time.Duration {
	return p.Lower
}
