package delivery

import "time"

// Retry policy constants from spec.md §4.5: "exponential back-off (base
// 500 ms, cap 30 s, max 5 attempts)".
const (
	BackoffBase    = 500 * time.Millisecond
	BackoffCap     = 30 * time.Second
	MaxAttempts    = 5
)

// backoffDelay returns the delay before retry attempt n (1-indexed: the
// delay awaited after attempt n fails, before attempt n+1).
func backoffDelay(attempt int) time.Duration {
	d := BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= BackoffCap {
			return BackoffCap
		}
	}
	return d
}
