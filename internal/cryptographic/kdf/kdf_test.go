package kdf

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestKeccak256KnownVector(t *testing.T) {
	got := hex.EncodeToString(Keccak256())
	want := "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"
	if got != want {
		t.Fatalf("Keccak256() = %s, want %s", got, want)
	}
}

func TestKeccak256Concatenates(t *testing.T) {
	a := Keccak256([]byte("phantom"), []byte("link"))
	b := Keccak256([]byte("phantomlink"))
	if !bytes.Equal(a, b) {
		t.Fatalf("multi-part hash differs from single-part hash")
	}
}

func TestHKDFDeterministic(t *testing.T) {
	a := make([]byte, 64)
	b := make([]byte, 64)
	if _, err := HKDF([]byte("secret"), []byte("salt"), []byte("info"), a); err != nil {
		t.Fatalf("HKDF: %v", err)
	}
	if _, err := HKDF([]byte("secret"), []byte("salt"), []byte("info"), b); err != nil {
		t.Fatalf("HKDF: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("HKDF output is not deterministic")
	}

	c := make([]byte, 64)
	if _, err := HKDF([]byte("secret"), []byte("salt"), []byte("other"), c); err != nil {
		t.Fatalf("HKDF: %v", err)
	}
	if bytes.Equal(a, c) {
		t.Fatalf("different info produced identical output")
	}
}
