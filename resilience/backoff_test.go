package resilience

import (
	"testing"
	"time"
)

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{10, time.Second},
	}
	for _, tc := range tests {
		got := calculateBackoff(tc.attempt, 100*time.Millisecond, time.Second, 2.0, 0)
		if got != tc.want {
			t.Errorf("attempt %d: got %s, want %s", tc.attempt, got, tc.want)
		}
	}
}

func TestCalculateBackoff_JitterBounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		got := calculateBackoff(1, time.Second, time.Minute, 2.0, 0.2)
		if got < 800*time.Millisecond || got > 1200*time.Millisecond {
			t.Fatalf("jittered backoff %s outside ±20%%", got)
		}
	}
}

func TestBackoff_GrowsAndCaps(t *testing.T) {
	b := NewBackoff(BackoffConfig{Initial: 5 * time.Second, Max: 60 * time.Second})

	want := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second, 40 * time.Second, 60 * time.Second, 60 * time.Second}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Errorf("failure %d: got %s, want %s", i+1, got, w)
		}
	}
	if b.Failures() != len(want) {
		t.Errorf("expected %d failures, got %d", len(want), b.Failures())
	}
}

func TestBackoff_Reset(t *testing.T) {
	b := NewBackoff(BackoffConfig{Initial: time.Second, Max: 8 * time.Second})
	b.Next()
	b.Next()
	b.Reset()
	if b.Failures() != 0 {
		t.Errorf("expected 0 failures after reset, got %d", b.Failures())
	}
	if got := b.Next(); got != time.Second {
		t.Errorf("expected initial delay after reset, got %s", got)
	}
}

func TestNewBackoff_Defaults(t *testing.T) {
	b := NewBackoff(BackoffConfig{})
	if b.Initial() != time.Second {
		t.Errorf("expected 1s initial, got %s", b.Initial())
	}
	if b.cfg.Max != time.Minute || b.cfg.Factor != 2.0 {
		t.Errorf("unexpected defaults: %+v", b.cfg)
	}
}
