package backoff

import (
	"math/rand"
	"time"
)

// Strategy computes a retry delay for a given attempt.
type Strategy interface {
	Calculate(attempt int, initial, max time.Duration, multiplier, jitter float64) time.Duration
}

// ExponentialJitterStrategy grows the delay as initial × multiplier^attempt,
// capped at max, then applies symmetric ±jitter. With jitter 0.25 the result
// lands uniformly in [0.75×delay, 1.25×delay], which is enough spread to
// break up synchronized retry storms.
type ExponentialJitterStrategy struct{}

func (ExponentialJitterStrategy) Calculate(attempt int, initial, max time.Duration, multiplier, jitter float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}

	delay := time.Duration(float64(initial) * Pow(multiplier, attempt))
	if delay < 0 || delay > max {
		delay = max
	}

	jitter = clampUnit(jitter)
	if jitter > 0 {
		// rand.Float64()*2-1 is uniform in [-1, 1)
		factor := 1 + jitter*(rand.Float64()*2-1)
		delay = time.Duration(float64(delay) * factor)
	}
	if delay > max {
		delay = max
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}

// DecorrelatedJitterStrategy implements AWS-style decorrelated jitter:
// a delay drawn uniformly from [initial, min(max, initial × 3^attempt)].
type DecorrelatedJitterStrategy struct{}

func (DecorrelatedJitterStrategy) Calculate(attempt int, initial, max time.Duration, _, _ float64) time.Duration {
	if attempt <= 0 {
		return initial
	}
	if attempt > 10 {
		attempt = 10
	}

	base := float64(initial)
	upper := base * Pow(3.0, attempt)
	if upper > float64(max) || upper < 0 {
		upper = float64(max)
	}
	if upper < base {
		upper = base
	}

	delay := time.Duration(base + rand.Float64()*(upper-base))
	if delay < 0 || delay > max {
		delay = max
	}
	return delay
}

// Pow computes base^exponent without pulling in math.Pow for small integer
// exponents.
func Pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}

func clampUnit(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
