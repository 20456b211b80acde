package backoff_test

import (
	"testing"
	"time"

	"github.com/xraph/tasker/backoff"
)

func TestConstant(t *testing.T) {
	c := backoff.Constant{Interval: 5 * time.Millisecond}
	for failures := 1; failures <= 5; failures++ {
		if got := c.Delay(failures); got != 5*time.Millisecond {
			t.Errorf("Delay(%d) = %v, want 5ms", failures, got)
		}
	}
}

func TestExponential(t *testing.T) {
	e := backoff.Exponential{Initial: 100 * time.Millisecond, Max: time.Second}

	tests := []struct {
		failures int
		want     time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{60, time.Second},
	}
	for _, tt := range tests {
		if got := e.Delay(tt.failures); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.failures, got, tt.want)
		}
	}
}

func TestExponential_JitterStaysInRange(t *testing.T) {
	e := backoff.Exponential{Initial: 100 * time.Millisecond, Max: time.Second, Jitter: true}

	for failures := 1; failures <= 8; failures++ {
		ceiling := backoff.Exponential{Initial: e.Initial, Max: e.Max}.Delay(failures)
		for range 50 {
			got := e.Delay(failures)
			if got < 0 || got > ceiling {
				t.Fatalf("Delay(%d) = %v, want within [0, %v]", failures, got, ceiling)
			}
		}
	}
}

func TestDefault(t *testing.T) {
	s := backoff.Default(10 * time.Millisecond)
	if got := s.Delay(100); got > 30*time.Second {
		t.Fatalf("Default delay %v exceeds the 30s cap", got)
	}
}
