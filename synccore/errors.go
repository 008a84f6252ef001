package synccore

import "errors"

var (
	// ErrLinkTokenExpired is returned when a bootstrap token's validity
	// window (QR codes are shown once, briefly) has passed.
	ErrLinkTokenExpired = errors.New("synccore: link token expired")
	// ErrLinkSignatureInvalid is returned when a join request's proof
	// signature does not verify against the token's identity.
	ErrLinkSignatureInvalid = errors.New("synccore: link signature invalid")
	// ErrUnknownDevice is returned when a sync message arrives from a
	// peer ID not in the local linked-device set.
	ErrUnknownDevice = errors.New("synccore: unknown linked device")
)
