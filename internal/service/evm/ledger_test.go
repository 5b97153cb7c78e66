package evm

import (
	"context"
	"errors"
	"math/big"
	"net"
	"strings"
	"testing"

	"phantom_link/internal/fault"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

type dataError struct {
	msg  string
	data interface{}
}

func (e *dataError) Error() string          { return e.msg }
func (e *dataError) ErrorData() interface{} { return e.data }

// revertData is the ABI encoding of Error(string) for reason.
func revertData(t *testing.T, reason string) string {
	t.Helper()
	strType, err := abi.NewType("string", "", nil)
	if err != nil {
		t.Fatalf("NewType: %v", err)
	}
	packed, err := abi.Arguments{{Type: strType}}.Pack(reason)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	return "0x08c379a0" + common.Bytes2Hex(packed)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		want   error
		reason string
	}{
		{"revert data", &dataError{msg: "execution reverted", data: revertData(t, "Invalid recipient")}, fault.ErrSubmissionRejected, "Invalid recipient"},
		{"geth message", errors.New("execution reverted: Empty message"), fault.ErrSubmissionRejected, "Empty message"},
		{"hardhat message", errors.New("VM Exception while processing transaction: reverted with reason string 'Invalid index'"), fault.ErrSubmissionRejected, "Invalid index"},
		{"bare revert", errors.New("execution reverted"), fault.ErrSubmissionRejected, "execution reverted"},
		{"connection refused", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, fault.ErrTransportUnavailable, ""},
		{"deadline", context.DeadlineExceeded, fault.ErrTransportUnavailable, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError("sendMessage", tt.err)
			if !errors.Is(got, tt.want) {
				t.Fatalf("mapError() = %v, want %v", got, tt.want)
			}
			if tt.reason != "" && fault.Reason(got) != tt.reason {
				t.Errorf("reason = %q, want %q", fault.Reason(got), tt.reason)
			}
		})
	}

	other := mapError("getMessage", errors.New("no contract code at given address"))
	if fault.KindOf(other) != "" {
		t.Errorf("unclassified error got kind %q", fault.KindOf(other))
	}
}

func TestABIPacksCalls(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(PhantomLinkABI))
	if err != nil {
		t.Fatalf("abi.JSON: %v", err)
	}
	recipient := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

	if _, err := parsed.Pack("sendMessage", recipient, "N4lSpE8=", [32]byte{1}, []byte{0xde, 0xad}); err != nil {
		t.Errorf("pack sendMessage: %v", err)
	}
	if _, err := parsed.Pack("allowMessageKey", recipient, big.NewInt(0), recipient); err != nil {
		t.Errorf("pack allowMessageKey: %v", err)
	}
	if _, err := parsed.Pack("getMessage", recipient, big.NewInt(3)); err != nil {
		t.Errorf("pack getMessage: %v", err)
	}
}

func TestUnpackMessage(t *testing.T) {
	owner := common.HexToAddress("0x01")
	sender := common.HexToAddress("0x02")
	msg, err := unpackMessage(owner, 7, []interface{}{sender, "abc", [32]byte{9}, big.NewInt(1700000000)})
	if err != nil {
		t.Fatalf("unpackMessage: %v", err)
	}
	if msg.Sender != sender || msg.Ciphertext != "abc" || msg.Handle[0] != 9 || msg.Timestamp != 1700000000 || msg.Index != 7 {
		t.Errorf("message = %+v", msg)
	}

	if _, err := unpackMessage(owner, 0, []interface{}{sender}); !errors.Is(err, fault.ErrDecode) {
		t.Errorf("short result error = %v", err)
	}
}
