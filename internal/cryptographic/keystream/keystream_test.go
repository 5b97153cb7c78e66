package keystream

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"phantom_link/internal/fault"

	"github.com/ethereum/go-ethereum/crypto"
)

const eip55Address = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

func randomAddress(t *testing.T) string {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func TestDeriveKeyKnownVector(t *testing.T) {
	seed, err := DeriveKey(eip55Address)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	want := "5fec3ec820e7cefc08b17de837f50681aa589aa8e155565edff1680eeca78c02"
	if got := hex.EncodeToString(seed[:]); got != want {
		t.Fatalf("DeriveKey() = %s, want %s", got, want)
	}
}

func TestDeriveKeyIgnoresCase(t *testing.T) {
	forms := []string{
		eip55Address,
		strings.ToLower(eip55Address),
		"0x" + strings.ToUpper(eip55Address[2:]),
		eip55Address[2:],
	}
	want, err := DeriveKey(eip55Address)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	for _, f := range forms {
		got, err := DeriveKey(f)
		if err != nil {
			t.Fatalf("DeriveKey(%q): %v", f, err)
		}
		if got != want {
			t.Errorf("DeriveKey(%q) differs from checksummed form", f)
		}
	}
}

func TestEncryptKnownVectors(t *testing.T) {
	tests := []struct {
		plaintext string
		want      string
	}{
		{"", ""},
		{"hello", "N4lSpE8="},
		{"Secret hello across PhantomLink", "DIldukWT7pRt3RGHF5Rl88Ur6YixPTcwq54FQoXJ5w=="},
		{"héllo ✓", "Ny+XpEyI7h6UIg=="},
	}

	for _, tt := range tests {
		t.Run(tt.plaintext, func(t *testing.T) {
			got, err := Encrypt(tt.plaintext, eip55Address)
			if err != nil {
				t.Fatalf("Encrypt: %v", err)
			}
			if got != tt.want {
				t.Errorf("Encrypt() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		plaintext string
	}{
		{"empty", ""},
		{"ascii", "Secret hello across PhantomLink"},
		{"exactly one block", strings.Repeat("k", KeySize)},
		{"spans blocks", strings.Repeat("0123456789", 20)},
		{"multibyte", "Привет, мир — こんにちは"},
		{"emoji", "meet at 🌉 at 🕛"},
		{"newlines", "line one\nline two\r\n\ttabbed"},
	}

	addr := randomAddress(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct, err := Encrypt(tt.plaintext, addr)
			if err != nil {
				t.Fatalf("Encrypt: %v", err)
			}
			got, err := Decrypt(ct, addr)
			if err != nil {
				t.Fatalf("Decrypt: %v", err)
			}
			if got != tt.plaintext {
				t.Errorf("round trip = %q, want %q", got, tt.plaintext)
			}

			raw, err := base64.StdEncoding.DecodeString(ct)
			if err != nil {
				t.Fatalf("ciphertext is not standard base64: %v", err)
			}
			if len(raw) != len([]byte(tt.plaintext)) {
				t.Errorf("decoded length = %d, want %d", len(raw), len([]byte(tt.plaintext)))
			}
		})
	}
}

func TestScenarioCiphertextLength(t *testing.T) {
	msg := "Secret hello across PhantomLink"
	addr := randomAddress(t)

	ct, err := Encrypt(msg, addr)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if want := base64.StdEncoding.EncodedLen(len(msg)); len(ct) != want {
		t.Errorf("len(ciphertext) = %d, want %d", len(ct), want)
	}

	got, err := Decrypt(ct, strings.ToLower(addr))
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != msg {
		t.Errorf("Decrypt() = %q, want %q", got, msg)
	}
}

func TestWrongKeyYieldsGarbage(t *testing.T) {
	msg := "share with observer"
	a1 := randomAddress(t)
	a2 := randomAddress(t)

	ct, err := Encrypt(msg, a1)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	got, err := Decrypt(ct, a2)
	if err != nil {
		t.Fatalf("Decrypt with wrong key should not fail, got %v", err)
	}
	if got == msg {
		t.Fatalf("wrong key recovered the plaintext")
	}
}

func TestUnpaddedCiphertextAccepted(t *testing.T) {
	got, err := Decrypt("N4lSpE8", eip55Address)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != "hello" {
		t.Errorf("Decrypt() = %q, want hello", got)
	}
}

func TestInvalidUTF8IsReplaced(t *testing.T) {
	seed, err := DeriveKey(eip55Address)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	raw := []byte{'o', 'k', 0xff}
	ct := base64.StdEncoding.EncodeToString(xor(raw, seed))

	got, err := Decrypt(ct, eip55Address)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != "ok�" {
		t.Errorf("Decrypt() = %q, want replacement character", got)
	}
}

func TestInvalidAddress(t *testing.T) {
	tests := []struct {
		name string
		addr string
	}{
		{"empty", ""},
		{"short", "0x1234"},
		{"non-hex", "0xZZZeb6053F3E94C9b9A09f33669435E7Ef1BeAed"},
		{"too long", eip55Address + "00"},
		{"bad checksum", "0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"},
		{"uppercase prefix", "0X" + strings.ToLower(eip55Address[2:])},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DeriveKey(tt.addr); !errors.Is(err, fault.ErrInvalidAddress) {
				t.Errorf("DeriveKey() error = %v, want ErrInvalidAddress", err)
			}
			if _, err := Encrypt("x", tt.addr); !errors.Is(err, fault.ErrInvalidAddress) {
				t.Errorf("Encrypt() error = %v, want ErrInvalidAddress", err)
			}
			if _, err := Decrypt("eA==", tt.addr); !errors.Is(err, fault.ErrInvalidAddress) {
				t.Errorf("Decrypt() error = %v, want ErrInvalidAddress", err)
			}
		})
	}
}

func TestMalformedBase64(t *testing.T) {
	for _, ct := range []string{"not base64!", "N4lS*E8=", "===="} {
		if _, err := Decrypt(ct, eip55Address); !errors.Is(err, fault.ErrDecode) {
			t.Errorf("Decrypt(%q) error = %v, want ErrDecode", ct, err)
		}
	}
}

func TestParseAddressCanonical(t *testing.T) {
	addr, err := ParseAddress(strings.ToLower(eip55Address))
	if err != nil {
		t.Fatalf("ParseAddress: %v", err)
	}
	if addr.Hex() != eip55Address {
		t.Errorf("Hex() = %s, want %s", addr.Hex(), eip55Address)
	}

	if _, err := ParseAddress(strings.ToLower(eip55Address[2:])); err != nil {
		t.Errorf("ParseAddress without prefix: %v", err)
	}
}
