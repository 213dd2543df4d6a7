package webhook

import (
	"cmp"
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy returns the wait before retry number attempt (1-based).
type BackoffStrategy interface {
	NextInterval(attempt int) time.Duration
}

// ExponentialBackoff multiplies the interval on every attempt, with optional
// symmetric jitter, capped at MaxInterval.
type ExponentialBackoff struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	JitterFactor    float64
}

func (e ExponentialBackoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	initial := cmp.Or(e.InitialInterval, time.Second)
	maxInterval := cmp.Or(e.MaxInterval, 30*time.Second)
	multiplier := cmp.Or(e.Multiplier, 2)

	interval := float64(initial) * math.Pow(multiplier, float64(attempt-1))
	if e.JitterFactor > 0 {
		interval *= 1 + (rand.Float64()*2-1)*e.JitterFactor
	}

	return time.Duration(min(interval, float64(maxInterval)))
}

// FixedBackoff waits the same interval before every retry.
type FixedBackoff time.Duration

func (f FixedBackoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return time.Duration(f)
}

func DefaultBackoff() BackoffStrategy {
	return ExponentialBackoff{
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2,
		JitterFactor:    0.1,
	}
}
