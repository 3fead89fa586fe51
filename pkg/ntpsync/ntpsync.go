// Package ntpsync checks the local clock against a pool NTP server before
// a device agent starts heartbeating, since heartbeat timestamps are
// trusted as wall-clock by the server.
package ntpsync

import (
	"time"

	"github.com/beevik/ntp"
)

const (
	defaultPool      = "pool.ntp.org"
	defaultThreshold = 2 * time.Second
)

// Result is the outcome of a single skew check.
type Result struct {
	Offset    time.Duration
	Healthy   bool
	CheckedAt time.Time
}

// Check queries pool and reports whether the local clock's offset from it
// is within threshold. A query failure is returned as an error; the
// caller decides whether that's fatal (it shouldn't be, for a device
// agent — see CheckDefault).
func Check(pool string, threshold time.Duration) (Result, error) {
	resp, err := ntp.Query(pool)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Offset:    resp.ClockOffset,
		Healthy:   resp.ClockOffset.Abs() < threshold,
		CheckedAt: time.Now(),
	}, nil
}

// CheckDefault runs Check against the default pool and 2s threshold.
func CheckDefault() (Result, error) {
	return Check(defaultPool, defaultThreshold)
}
