package backoff

import (
	"testing"
	"time"
)

func TestExponentialGrowthWithoutJitter(t *testing.T) {
	s := ExponentialJitterStrategy{}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
	}
	for _, tc := range cases {
		got := s.Calculate(tc.attempt, 100*time.Millisecond, 10*time.Second, 2.0, 0)
		if got != tc.want {
			t.Errorf("attempt %d: got %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestExponentialCaps(t *testing.T) {
	s := ExponentialJitterStrategy{}
	got := s.Calculate(20, 100*time.Millisecond, time.Second, 2.0, 0)
	if got != time.Second {
		t.Errorf("Expected cap at 1s, got %v", got)
	}
}

func TestExponentialJitterBounds(t *testing.T) {
	s := ExponentialJitterStrategy{}
	for i := 0; i < 200; i++ {
		got := s.Calculate(1, 100*time.Millisecond, 10*time.Second, 2.0, 0.25)
		if got < 150*time.Millisecond || got > 250*time.Millisecond {
			t.Fatalf("Jittered delay out of [150ms, 250ms]: %v", got)
		}
	}
}

func TestExponentialNegativeAttempt(t *testing.T) {
	s := ExponentialJitterStrategy{}
	got := s.Calculate(-3, 100*time.Millisecond, 10*time.Second, 2.0, 0)
	if got != 100*time.Millisecond {
		t.Errorf("Negative attempt should clamp to initial, got %v", got)
	}
}

func TestDecorrelatedWithinBounds(t *testing.T) {
	s := DecorrelatedJitterStrategy{}

	if got := s.Calculate(0, time.Second, time.Minute, 0, 0); got != time.Second {
		t.Errorf("Attempt 0 returns initial, got %v", got)
	}

	for attempt := 1; attempt < 6; attempt++ {
		for i := 0; i < 100; i++ {
			got := s.Calculate(attempt, time.Second, time.Minute, 0, 0)
			if got < time.Second || got > time.Minute {
				t.Fatalf("attempt %d: delay %v outside [initial, max]", attempt, got)
			}
		}
	}
}

func TestPow(t *testing.T) {
	if got := Pow(2.0, 10); got != 1024.0 {
		t.Errorf("Pow(2,10) = %v", got)
	}
	if got := Pow(3.0, 0); got != 1.0 {
		t.Errorf("Pow(3,0) = %v", got)
	}
}

func TestCalculatorDelegates(t *testing.T) {
	c := Exponential()
	if got := c.Calculate(2, 100*time.Millisecond, 10*time.Second, 2.0, 0); got != 400*time.Millisecond {
		t.Errorf("Calculator did not delegate: %v", got)
	}
}
