package backoff

import "time"

// Calculator binds a Strategy to the Calculate call sites so the retry
// policy does not care which strategy is active.
type Calculator struct {
	strategy Strategy
}

// NewCalculator creates a calculator with the given strategy.
func NewCalculator(strategy Strategy) *Calculator {
	return &Calculator{strategy: strategy}
}

// Calculate computes the backoff duration for the given attempt.
func (c *Calculator) Calculate(attempt int, initial, max time.Duration, multiplier, jitter float64) time.Duration {
	return c.strategy.Calculate(attempt, initial, max, multiplier, jitter)
}

// Exponential returns a calculator using exponential backoff with symmetric
// jitter. This is the default for the general transient track.
func Exponential() *Calculator {
	return NewCalculator(ExponentialJitterStrategy{})
}

// Decorrelated returns a calculator using AWS-style decorrelated jitter.
func Decorrelated() *Calculator {
	return NewCalculator(DecorrelatedJitterStrategy{})
}
