// Package fault defines the error taxonomy shared by the messenger, its
// collaborators and the devnode. Every error returned across a package
// boundary matches exactly one of the sentinel errors with errors.Is.
package fault

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is() checks
var (
	// ErrInvalidAddress is returned for address text that is not a valid 20-byte hex value.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrDecode is returned for malformed base64 or otherwise undecodable payloads.
	ErrDecode = errors.New("decode error")

	// ErrSubmissionRejected is returned when the ledger reverts a call.
	ErrSubmissionRejected = errors.New("submission rejected")

	// ErrAuthorizationDenied is returned when the relayer refuses a decryption.
	ErrAuthorizationDenied = errors.New("authorization denied")

	// ErrTransportUnavailable is returned when a wallet, node or relayer cannot be
	// reached or has not been initialized yet.
	ErrTransportUnavailable = errors.New("transport unavailable")
)

// Kind names a taxonomy entry on the wire.
type Kind string

const (
	KindInvalidAddress       Kind = "invalid_address"
	KindDecode               Kind = "decode"
	KindSubmissionRejected   Kind = "submission_rejected"
	KindAuthorizationDenied  Kind = "authorization_denied"
	KindTransportUnavailable Kind = "transport_unavailable"
)

// InvalidAddressError carries the rejected input.
type InvalidAddressError struct {
	Input  string
	Reason string
}

func (e *InvalidAddressError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid address %q: %s", e.Input, e.Reason)
	}
	return fmt.Sprintf("invalid address %q", e.Input)
}

// Is implements errors.Is for sentinel error matching.
func (e *InvalidAddressError) Is(target error) bool {
	return target == ErrInvalidAddress
}

// DecodeError wraps a base64 or payload decoding failure.
type DecodeError struct {
	What string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %s: %v", e.What, e.Err)
	}
	return fmt.Sprintf("decode %s", e.What)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

// SubmissionRejectedError is a ledger revert. Reason is the revert string,
// e.g. "Invalid recipient".
type SubmissionRejectedError struct {
	Reason string
	Err    error
}

func (e *SubmissionRejectedError) Error() string {
	return fmt.Sprintf("submission rejected: %s", e.Reason)
}

func (e *SubmissionRejectedError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *SubmissionRejectedError) Is(target error) bool {
	return target == ErrSubmissionRejected
}

// AuthorizationDeniedError is a refused user decryption.
type AuthorizationDeniedError struct {
	Reason string
}

func (e *AuthorizationDeniedError) Error() string {
	return fmt.Sprintf("authorization denied: %s", e.Reason)
}

// Is implements errors.Is for sentinel error matching.
func (e *AuthorizationDeniedError) Is(target error) bool {
	return target == ErrAuthorizationDenied
}

// TransportError reports an unreachable or uninitialized collaborator.
type TransportError struct {
	Service string
	Err     error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
	}
	return fmt.Sprintf("%s unavailable", e.Service)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransportUnavailable
}

// Rejected is shorthand for a SubmissionRejectedError without a cause.
func Rejected(reason string) error {
	return &SubmissionRejectedError{Reason: reason}
}

// Denied is shorthand for an AuthorizationDeniedError.
func Denied(reason string) error {
	return &AuthorizationDeniedError{Reason: reason}
}

// Unavailable is shorthand for a TransportError.
func Unavailable(service string, err error) error {
	return &TransportError{Service: service, Err: err}
}

// KindOf returns the taxonomy kind of err, or "" if err is outside it.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrInvalidAddress):
		return KindInvalidAddress
	case errors.Is(err, ErrDecode):
		return KindDecode
	case errors.Is(err, ErrSubmissionRejected):
		return KindSubmissionRejected
	case errors.Is(err, ErrAuthorizationDenied):
		return KindAuthorizationDenied
	case errors.Is(err, ErrTransportUnavailable):
		return KindTransportUnavailable
	}
	return ""
}

// FromKind rebuilds a taxonomy error from its wire form.
func FromKind(kind Kind, reason string) error {
	switch kind {
	case KindInvalidAddress:
		return &InvalidAddressError{Input: reason}
	case KindDecode:
		return &DecodeError{What: reason}
	case KindSubmissionRejected:
		return &SubmissionRejectedError{Reason: reason}
	case KindAuthorizationDenied:
		return &AuthorizationDeniedError{Reason: reason}
	case KindTransportUnavailable:
		return &TransportError{Service: reason}
	}
	return errors.New(reason)
}

// Reason extracts the human-readable part of a taxonomy error.
func Reason(err error) string {
	var rej *SubmissionRejectedError
	if errors.As(err, &rej) {
		return rej.Reason
	}
	var den *AuthorizationDeniedError
	if errors.As(err, &den) {
		return den.Reason
	}
	return err.Error()
}

// Status converts err into the one-line message shown to the user.
func Status(op string, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %s", op, Reason(err))
}
