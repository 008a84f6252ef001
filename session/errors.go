package session

import "errors"

// Sentinel errors, translated to the public taxonomy (spec.md §7) at the
// Command Bus boundary.
var (
	ErrCryptoError          = errors.New("session: cryptographic operation failed")
	ErrAuthenticationFailed = errors.New("session: authentication tag mismatch")
	ErrSessionNotFound      = errors.New("session: no session for peer")
	ErrOneTimePrekeyReused  = errors.New("session: one-time prekey already consumed")
)
