package commandbus

import (
	"errors"
	"fmt"

	"github.com/nyxtalk/nyxcore/delivery"
	"github.com/nyxtalk/nyxcore/identity"
	"github.com/nyxtalk/nyxcore/session"
	"github.com/nyxtalk/nyxcore/storage"
)

// ErrorCode is the tagged error variant exposed at the host boundary
// (spec.md §7). The root package re-exports this as nyxcore.ErrorCode so
// host shells see one stable taxonomy regardless of which internal
// component produced the failure.
type ErrorCode uint8

const (
	CodeInternal ErrorCode = iota
	CodeNotInitialized
	CodeInvalidInput
	CodeNotFound
	CodeAlreadyExists
	CodeUnauthorized
	CodeCryptoError
	CodeStorageError
	CodeNetworkUnreachable
	CodeTimeout
	CodeRateLimited
	CodeFeatureUnavailable
)

func (c ErrorCode) String() string {
	switch c {
	case CodeNotInitialized:
		return "NotInitialized"
	case CodeInvalidInput:
		return "InvalidInput"
	case CodeNotFound:
		return "NotFound"
	case CodeAlreadyExists:
		return "AlreadyExists"
	case CodeUnauthorized:
		return "Unauthorized"
	case CodeCryptoError:
		return "CryptoError"
	case CodeStorageError:
		return "StorageError"
	case CodeNetworkUnreachable:
		return "NetworkUnreachable"
	case CodeTimeout:
		return "Timeout"
	case CodeRateLimited:
		return "RateLimited"
	case CodeFeatureUnavailable:
		return "FeatureUnavailable"
	default:
		return "Internal"
	}
}

// TaggedError pairs an ErrorCode with the original cause, preserving it
// for logging while giving the host a stable switch-over value.
type TaggedError struct {
	Code  ErrorCode
	Cause error
}

func (e *TaggedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Cause)
}

func (e *TaggedError) Unwrap() error { return e.Cause }

// sentinelMap associates the component sentinel errors listed below
// with the public ErrorCode each maps to, per spec.md §7's propagation
// table. Order matters only in that errors.Is checks each in turn;
// distinct sentinels never overlap so order is otherwise irrelevant.
var sentinelMap = []struct {
	sentinel error
	code     ErrorCode
}{
	{storage.ErrStorageUnavailable, CodeNotInitialized},
	{storage.ErrStorageError, CodeStorageError},
	{storage.ErrNotFound, CodeNotFound},
	{storage.ErrInvalidInput, CodeInvalidInput},
	{identity.ErrUsernameTaken, CodeAlreadyExists},
	{identity.ErrInvalidUsername, CodeInvalidInput},
	{identity.ErrInvalidSignature, CodeUnauthorized},
	{identity.ErrUsernameNotFound, CodeNotFound},
	{identity.ErrRegistryRateLimit, CodeRateLimited},
	{identity.ErrRegistryUnreachable, CodeNetworkUnreachable},
	{identity.ErrOneTimePrekeyExhausted, CodeUnauthorized},
	{session.ErrCryptoError, CodeCryptoError},
	{session.ErrAuthenticationFailed, CodeUnauthorized},
	{session.ErrSessionNotFound, CodeNotFound},
	{session.ErrOneTimePrekeyReused, CodeUnauthorized},
	{delivery.ErrAllStrategiesFailed, CodeNetworkUnreachable},
	{delivery.ErrAckTimeout, CodeTimeout},
	{ErrBusClosed, CodeNotInitialized},
}

// TranslateError maps a component-level error to the public tagged
// variant. Unrecognized errors become CodeInternal, per spec.md §7's
// "invariant violation; indicates a bug" definition for that code: any
// error this table doesn't know about is, by construction, one the
// design didn't anticipate.
func TranslateError(err error) *TaggedError {
	if err == nil {
		return nil
	}
	var tagged *TaggedError
	if errors.As(err, &tagged) {
		return tagged
	}

	for _, m := range sentinelMap {
		if errors.Is(err, m.sentinel) {
			return &TaggedError{Code: m.code, Cause: err}
		}
	}

	if errors.Is(err, delivery.ErrPermanent) {
		return &TaggedError{Code: CodeNetworkUnreachable, Cause: err}
	}

	return &TaggedError{Code: CodeInternal, Cause: err}
}
