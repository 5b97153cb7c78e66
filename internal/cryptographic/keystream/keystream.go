// Package keystream scrambles message text with a repeating 32-byte keystream
// derived from an Ethereum address.
//
// The key of a message is keccak256 of the lowercase hex form of a throwaway
// address, and every stored ciphertext on the mailbox contract uses exactly
// this layout, so the scheme is kept bit-compatible with them. It is
// obfuscation, not encryption: anyone who learns the address can recompute
// the keystream, there is no nonce and no integrity tag. Confidentiality rests
// entirely on the relayer keeping the address itself hidden.
package keystream

import (
	"encoding/base64"
	"strings"

	"phantom_link/internal/cryptographic/kdf"
	"phantom_link/internal/fault"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/text/encoding/unicode"
)

const KeySize = 32

// ParseAddress accepts 40 hex digits with or without a lowercase 0x prefix.
// Input that mixes upper and lower case must carry a valid EIP-55 checksum.
func ParseAddress(s string) (common.Address, error) {
	if strings.HasPrefix(s, "0X") || !common.IsHexAddress(s) {
		return common.Address{}, &fault.InvalidAddressError{Input: s}
	}
	addr := common.HexToAddress(s)

	digits := strings.TrimPrefix(s, "0x")
	if digits != strings.ToLower(digits) && digits != strings.ToUpper(digits) {
		if digits != addr.Hex()[2:] {
			return common.Address{}, &fault.InvalidAddressError{Input: s, Reason: "bad address checksum"}
		}
	}
	return addr, nil
}

// DeriveKey returns the keystream seed of address.
func DeriveKey(address string) ([KeySize]byte, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return [KeySize]byte{}, err
	}
	return DeriveKeyFromAddress(addr), nil
}

func DeriveKeyFromAddress(addr common.Address) [KeySize]byte {
	var seed [KeySize]byte
	copy(seed[:], kdf.Keccak256([]byte(strings.ToLower(addr.Hex()))))
	return seed
}

func xor(data []byte, seed [KeySize]byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ seed[i%KeySize]
	}
	return out
}

// Encrypt XORs the UTF-8 bytes of plaintext with the keystream of address and
// returns standard padded base64.
func Encrypt(plaintext, address string) (string, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return "", err
	}
	return EncryptWithAddress(plaintext, addr), nil
}

func EncryptWithAddress(plaintext string, addr common.Address) string {
	return base64.StdEncoding.EncodeToString(xor([]byte(plaintext), DeriveKeyFromAddress(addr)))
}

// Decrypt reverses Encrypt. A wrong address is not detected: the result is
// simply garbage text.
func Decrypt(ciphertext, address string) (string, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return "", err
	}
	return DecryptWithAddress(ciphertext, addr)
}

func DecryptWithAddress(ciphertext string, addr common.Address) (string, error) {
	raw, err := decodeBase64(ciphertext)
	if err != nil {
		return "", &fault.DecodeError{What: "ciphertext", Err: err}
	}
	clear, err := unicode.UTF8.NewDecoder().Bytes(xor(raw, DeriveKeyFromAddress(addr)))
	if err != nil {
		return "", &fault.DecodeError{What: "plaintext", Err: err}
	}
	return string(clear), nil
}

// decodeBase64 takes padded or unpadded standard base64.
func decodeBase64(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
