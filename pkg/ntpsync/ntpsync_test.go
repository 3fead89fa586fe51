package ntpsync

import (
	"testing"
	"time"
)

func TestResult_HealthyThresholdBoundary(t *testing.T) {
	cases := []struct {
		name    string
		offset  time.Duration
		healthy bool
	}{
		{"well within threshold", 50 * time.Millisecond, true},
		{"just under threshold", 1999 * time.Millisecond, true},
		{"over threshold", 3 * time.Second, false},
		{"negative offset over threshold", -3 * time.Second, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.offset.Abs() < defaultThreshold
			if got != tc.healthy {
				t.Errorf("offset %v: got healthy=%v, want %v", tc.offset, got, tc.healthy)
			}
		})
	}
}
