package queue

import (
	"testing"
	"time"
)

func TestNewRetryStrategy(t *testing.T) {
	rs := NewRetryStrategy(5)

	t.Run("MaxRetries is set correctly", func(t *testing.T) {
		if rs.MaxRetries != 5 {
			t.Errorf("NewRetryStrategy(5) MaxRetries = %d, want 5", rs.MaxRetries)
		}
	})

	t.Run("Schedule uses default retrySchedule", func(t *testing.T) {
		expectedSchedule := []time.Duration{
			5 * time.Second,
			15 * time.Second,
			30 * time.Second,
			1 * time.Minute,
			2 * time.Minute,
		}
		if len(rs.Schedule) != len(expectedSchedule) {
			t.Fatalf("NewRetryStrategy() Schedule length = %d, want %d", len(rs.Schedule), len(expectedSchedule))
		}
		for i, want := range expectedSchedule {
			if rs.Schedule[i] != want {
				t.Errorf("NewRetryStrategy() Schedule[%d] = %v, want %v", i, rs.Schedule[i], want)
			}
		}
	})
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name       string
		maxRetries int
		retryCount int
		want       bool
	}{
		{"first retry attempt", 5, 0, true},
		{"mid-range retry attempt", 5, 3, true},
		{"last allowed retry", 5, 4, true},
		{"retry count equals max retries", 5, 5, false},
		{"retry count exceeds max retries", 5, 10, false},
		{"zero max retries", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := NewRetryStrategy(tt.maxRetries)
			if got := rs.ShouldRetry(tt.retryCount); got != tt.want {
				t.Errorf("ShouldRetry(%d) = %v, want %v", tt.retryCount, got, tt.want)
			}
		})
	}
}

func TestNextBackoff_JitterBounds(t *testing.T) {
	rs := NewRetryStrategy(5)

	for retryCount, base := range rs.Schedule {
		for i := 0; i < 20; i++ {
			got := rs.NextBackoff(retryCount)
			min := time.Duration(float64(base) * 0.5)
			if got < min || got > base {
				t.Fatalf("NextBackoff(%d) = %v, want within [%v, %v]", retryCount, got, min, base)
			}
		}
	}
}

func TestNextBackoff_ClampsBeyondSchedule(t *testing.T) {
	rs := NewRetryStrategy(10)
	last := rs.Schedule[len(rs.Schedule)-1]

	got := rs.NextBackoff(99)
	min := time.Duration(float64(last) * 0.5)
	if got < min || got > last {
		t.Errorf("NextBackoff beyond schedule = %v, want within [%v, %v]", got, min, last)
	}
}
