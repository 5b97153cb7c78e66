package model

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Handle is the opaque 32-byte reference to a confidential value.
type Handle [32]byte

func (h Handle) Hex() string {
	return hexutil.Encode(h[:])
}

func (h Handle) String() string {
	return h.Hex()
}

func (h Handle) IsZero() bool {
	return h == Handle{}
}

func (h Handle) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

func (h *Handle) UnmarshalText(input []byte) error {
	parsed, err := HandleFromHex(string(input))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

func HandleFromHex(s string) (Handle, error) {
	var h Handle
	b, err := hexutil.Decode(s)
	if err != nil {
		return h, fmt.Errorf("handle %q: %w", s, err)
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("handle %q: want %d bytes, got %d", s, len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}
