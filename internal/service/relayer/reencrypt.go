package relayer

import (
	"fmt"

	"phantom_link/internal/cryptographic/dh"
	"phantom_link/internal/cryptographic/encryption"
	"phantom_link/internal/cryptographic/kdf"
	"phantom_link/internal/model"

	"github.com/ethereum/go-ethereum/common"
)

var (
	sealInfo       = []byte("phantomlink/seal")
	reencryptInfo  = []byte("phantomlink/user-decrypt")
	proofDomainTag = []byte("phantomlink/input-proof")
)

func deriveKey(secret, salt, info []byte) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := kdf.HKDF(secret, salt, info, key); err != nil {
		return nil, err
	}
	return key, nil
}

// reencrypt seals a clear address to the requester's X25519 public key.
func reencrypt(userPub [32]byte, h model.Handle, addr common.Address) (*model.ReencryptedValue, error) {
	ephPriv, ephPub, err := dh.NewX25519KeyPair()
	if err != nil {
		return nil, err
	}
	shared, err := dh.X25519SharedSecret(ephPriv, userPub)
	if err != nil {
		return nil, fmt.Errorf("X25519 during reencrypt: %w", err)
	}
	key, err := deriveKey(shared, h[:], reencryptInfo)
	if err != nil {
		return nil, err
	}
	ct, err := encryption.AEADEncrypt(key, addr.Bytes(), h[:])
	if err != nil {
		return nil, err
	}
	return &model.ReencryptedValue{
		EphemeralPublicKey: ephPub[:],
		Ciphertext:         ct,
	}, nil
}

// OpenReencrypted recovers the clear address the relayer sealed to kp.
func OpenReencrypted(kp *model.Keypair, h model.Handle, v model.ReencryptedValue) (common.Address, error) {
	if len(v.EphemeralPublicKey) != 32 {
		return common.Address{}, fmt.Errorf("ephemeral key must be 32 bytes, got %d", len(v.EphemeralPublicKey))
	}
	shared, err := dh.X25519SharedSecret(kp.PrivateKey, [32]byte(v.EphemeralPublicKey))
	if err != nil {
		return common.Address{}, fmt.Errorf("X25519 during open: %w", err)
	}
	key, err := deriveKey(shared, h[:], reencryptInfo)
	if err != nil {
		return common.Address{}, err
	}
	clear, err := encryption.AEADDecrypt(key, v.Ciphertext, h[:])
	if err != nil {
		return common.Address{}, err
	}
	if len(clear) != common.AddressLength {
		return common.Address{}, fmt.Errorf("decrypted value is %d bytes, want an address", len(clear))
	}
	return common.BytesToAddress(clear), nil
}
