// Package eip712 builds and signs the typed-data authorization a reader signs
// before the relayer hands back a decrypted value.
package eip712

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const (
	PrimaryType = "UserDecryptRequestVerification"
	DomainName  = "Decryption"
	Version     = "1"
)

var ErrBadSignature = errors.New("malformed signature")

// Domain identifies the relayer deployment a signature is valid for.
type Domain struct {
	ChainID           int64
	VerifyingContract common.Address
}

func (d Domain) typed() apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              DomainName,
		Version:           Version,
		ChainId:           math.NewHexOrDecimal256(d.ChainID),
		VerifyingContract: d.VerifyingContract.Hex(),
	}
}

// NewUserDecryptRequest returns the typed data authorizing publicKey to
// receive re-encrypted values of handles owned by contracts, valid for
// durationDays from startTimestamp.
func NewUserDecryptRequest(d Domain, publicKey []byte, contracts []common.Address, startTimestamp int64, durationDays int) apitypes.TypedData {
	addrs := make([]interface{}, len(contracts))
	for i, c := range contracts {
		addrs[i] = c.Hex()
	}

	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			PrimaryType: {
				{Name: "publicKey", Type: "bytes"},
				{Name: "contractAddresses", Type: "address[]"},
				{Name: "startTimestamp", Type: "uint256"},
				{Name: "durationDays", Type: "uint256"},
			},
		},
		PrimaryType: PrimaryType,
		Domain:      d.typed(),
		Message: apitypes.TypedDataMessage{
			"publicKey":         hexutil.Encode(publicKey),
			"contractAddresses": addrs,
			"startTimestamp":    strconv.FormatInt(startTimestamp, 10),
			"durationDays":      strconv.Itoa(durationDays),
		},
	}
}

// Hash returns the EIP-712 signing digest of td.
func Hash(td apitypes.TypedData) ([]byte, error) {
	hash, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return nil, fmt.Errorf("eip712 hash: %w", err)
	}
	return hash, nil
}

// Sign produces a 65-byte signature with V in {27, 28}, the form wallets return.
func Sign(td apitypes.TypedData, key *ecdsa.PrivateKey) ([]byte, error) {
	hash, err := Hash(td)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// Recover returns the address that signed td.
func Recover(td apitypes.TypedData, sig []byte) (common.Address, error) {
	hash, err := Hash(td)
	if err != nil {
		return common.Address{}, err
	}
	return RecoverHash(hash, sig)
}

// RecoverHash accepts V in {0, 1, 27, 28}.
func RecoverHash(hash, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, ErrBadSignature
	}
	s := make([]byte, len(sig))
	copy(s, sig)
	if s[crypto.RecoveryIDOffset] >= 27 {
		s[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(hash, s)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

