package delivery

import "errors"

var (
	// ErrAllStrategiesFailed is returned when direct, relay, and
	// store-and-forward all failed to deliver a frame.
	ErrAllStrategiesFailed = errors.New("delivery: all delivery strategies failed")

	// ErrPermanent marks a failure that retrying will not fix (spec.md
	// §4.5: "Permanent errors ... fail immediately").
	ErrPermanent = errors.New("delivery: permanent delivery failure")

	// ErrAckTimeout is returned internally when a strategy's
	// acknowledgement wait expires, triggering escalation to the next
	// tier. If no later tier succeeds, Send returns it joined with
	// ErrAllStrategiesFailed.
	ErrAckTimeout = errors.New("delivery: acknowledgement timed out")
)
