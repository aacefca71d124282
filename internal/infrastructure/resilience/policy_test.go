package resilience

import (
	"slices"
	"testing"
	"time"
)

func TestScheduleCapsAtMaxBackoff(t *testing.T) {
	cfg := Config{
		RetryMaxAttempts:    5,
		RetryInitialBackoff: time.Second,
		RetryMaxBackoff:     3 * time.Second,
		RetryMultiplier:     2,
	}
	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}
	if got := cfg.Schedule(); !slices.Equal(got, want) {
		t.Fatalf("Schedule() = %v, want %v", got, want)
	}
}

func TestDefaultSchedules(t *testing.T) {
	if got, want := DefaultConfig().Schedule(), []time.Duration{time.Second, 2 * time.Second}; !slices.Equal(got, want) {
		t.Fatalf("capability schedule = %v, want %v", got, want)
	}
	if got, want := QueueConfig().Schedule(), []time.Duration{200 * time.Millisecond, 400 * time.Millisecond}; !slices.Equal(got, want) {
		t.Fatalf("queue schedule = %v, want %v", got, want)
	}
	if QueueConfig().BreakerEnabled {
		t.Fatal("queue policy must not trip a breaker")
	}
}

func TestNormalizeFillsZeroConfig(t *testing.T) {
	got := Config{RateLimit: -1}.normalize()
	if got.RetryMaxAttempts != 3 || got.RetryMultiplier != 2 || got.RateBurst != 1 {
		t.Fatalf("unexpected normalized config: %+v", got)
	}
	if got.RateLimit != 0 {
		t.Fatalf("negative rate limit must disable limiting, got %v", got.RateLimit)
	}
	if got.BreakerFailureRatio != 0.5 || got.BreakerOpenTimeout != 30*time.Second {
		t.Fatalf("unexpected breaker defaults: %+v", got)
	}
}
