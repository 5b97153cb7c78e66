// Package wallet is the signing identity of a messenger user.
package wallet

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync/atomic"
	"time"

	"phantom_link/internal/cryptographic/eip712"
	"phantom_link/internal/model"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

type (
	Wallet struct {
		key     *ecdsa.PrivateKey
		address common.Address
		nonce   atomic.Uint64
	}
)

func New(key *ecdsa.PrivateKey) *Wallet {
	w := &Wallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
	w.nonce.Store(uint64(time.Now().UnixNano()))
	return w
}

// FromHex loads a wallet from a 0x-prefixed or bare secp256k1 private key.
func FromHex(s string) (*Wallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	return New(key), nil
}

func Random() (*Wallet, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return New(key), nil
}

func (w *Wallet) Address() common.Address {
	return w.address
}

func (w *Wallet) SignTypedData(td apitypes.TypedData) ([]byte, error) {
	return eip712.Sign(td, w.key)
}

// SignCall wraps payload into a SignedCall with a fresh nonce.
func (w *Wallet) SignCall(method string, payload any) (*model.SignedCall, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	nonce := w.nonce.Add(1)
	sig, err := crypto.Sign(eip712.CallDigest(method, data, nonce), w.key)
	if err != nil {
		return nil, err
	}
	return &model.SignedCall{
		From:      w.address,
		Method:    method,
		Payload:   data,
		Nonce:     nonce,
		Signature: sig,
	}, nil
}

func (w *Wallet) TransactOpts(chainID int64) (*bind.TransactOpts, error) {
	return bind.NewKeyedTransactorWithChainID(w.key, big.NewInt(chainID))
}

// NewEphemeralAddress returns the address of a freshly generated key. The
// key itself is dropped: the address is only ever used as keystream material.
func NewEphemeralAddress() (common.Address, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}
