package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelMatching(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		kind   Kind
	}{
		{"invalid address", &InvalidAddressError{Input: "0x12"}, ErrInvalidAddress, KindInvalidAddress},
		{"decode", &DecodeError{What: "ciphertext", Err: errors.New("bad")}, ErrDecode, KindDecode},
		{"rejected", Rejected("Invalid recipient"), ErrSubmissionRejected, KindSubmissionRejected},
		{"denied", Denied("not allowed"), ErrAuthorizationDenied, KindAuthorizationDenied},
		{"transport", Unavailable("relayer", nil), ErrTransportUnavailable, KindTransportUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("send: %w", tt.err)
			if !errors.Is(wrapped, tt.target) {
				t.Errorf("errors.Is(%v, %v) = false", wrapped, tt.target)
			}
			if got := KindOf(wrapped); got != tt.kind {
				t.Errorf("KindOf() = %q, want %q", got, tt.kind)
			}
		})
	}
}

func TestSentinelsAreDistinct(t *testing.T) {
	err := Rejected("Empty message")
	if errors.Is(err, ErrAuthorizationDenied) || errors.Is(err, ErrTransportUnavailable) {
		t.Fatalf("rejection matched an unrelated sentinel")
	}
}

func TestFromKindRoundTrip(t *testing.T) {
	err := FromKind(KindSubmissionRejected, "Invalid recipient")
	if !errors.Is(err, ErrSubmissionRejected) {
		t.Fatalf("FromKind() did not produce a rejection: %v", err)
	}
	if got := Reason(err); got != "Invalid recipient" {
		t.Errorf("Reason() = %q", got)
	}

	if KindOf(FromKind("", "boom")) != "" {
		t.Errorf("unknown kind should stay outside the taxonomy")
	}
}

func TestStatus(t *testing.T) {
	if got := Status("send", nil); got != "" {
		t.Errorf("Status(nil) = %q", got)
	}
	got := Status("send", fmt.Errorf("ledger: %w", Rejected("Empty message")))
	if got != "Failed to send: Empty message" {
		t.Errorf("Status() = %q", got)
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Unavailable("node", cause)
	if !errors.Is(err, cause) {
		t.Errorf("TransportError does not unwrap to its cause")
	}
}
