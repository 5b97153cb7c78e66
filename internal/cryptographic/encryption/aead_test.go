package encryption

import (
	"bytes"
	"testing"
)

func TestAEADRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	plaintext := []byte("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	aad := []byte("handle")

	ct, err := AEADEncrypt(key, plaintext, aad)
	if err != nil {
		t.Fatalf("AEADEncrypt: %v", err)
	}
	got, err := AEADDecrypt(key, ct, aad)
	if err != nil {
		t.Fatalf("AEADDecrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch: %q", got)
	}

	ct[len(ct)-1] ^= 0xff
	if _, err := AEADDecrypt(key, ct, aad); err == nil {
		t.Fatalf("tampered ciphertext decrypted")
	}
}

func TestAEADWrongAAD(t *testing.T) {
	key := make([]byte, 32)
	ct, err := AEADEncrypt(key, []byte("x"), []byte("a"))
	if err != nil {
		t.Fatalf("AEADEncrypt: %v", err)
	}
	if _, err := AEADDecrypt(key, ct, []byte("b")); err == nil {
		t.Fatalf("decrypted with wrong aad")
	}
}

func TestAEADShortInput(t *testing.T) {
	if _, err := AEADDecrypt(make([]byte, 32), []byte{1, 2}, nil); err == nil {
		t.Fatalf("short ciphertext accepted")
	}
}
