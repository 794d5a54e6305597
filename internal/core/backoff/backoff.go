// Package backoff computes bounded exponential retry delays for the reminder
// scheduler.
package backoff

import "time"

// Delay returns base * 2^attempts, capped at max. Attempts below zero are
// treated as zero.
func Delay(base time.Duration, attempts int, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempts < 0 {
		attempts = 0
	}
	d := base
	for i := 0; i < attempts; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
