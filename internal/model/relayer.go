package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type (
	// EncryptedInput is what the relayer hands back for a batch of clear
	// values: one handle per value and a proof binding them to a contract
	// and a sender.
	EncryptedInput struct {
		Handles    []Handle      `json:"handles"`
		InputProof hexutil.Bytes `json:"inputProof"`
	}

	EncryptInputRequest struct {
		ContractAddress common.Address   `json:"contractAddress"`
		UserAddress     common.Address   `json:"userAddress"`
		Values          []common.Address `json:"values"`
	}

	VerifyInputRequest struct {
		ContractAddress common.Address `json:"contractAddress"`
		UserAddress     common.Address `json:"userAddress"`
		Handle          Handle         `json:"handle"`
		InputProof      hexutil.Bytes  `json:"inputProof"`
	}

	Keypair struct {
		PublicKey  [32]byte
		PrivateKey [32]byte
	}

	HandleContractPair struct {
		Handle          Handle         `json:"handle"`
		ContractAddress common.Address `json:"contractAddress"`
	}

	UserDecryptRequest struct {
		Pairs             []HandleContractPair `json:"handleContractPairs"`
		PublicKey         hexutil.Bytes        `json:"publicKey"`
		Signature         hexutil.Bytes        `json:"signature"`
		ContractAddresses []common.Address     `json:"contractAddresses"`
		UserAddress       common.Address       `json:"userAddress"`
		StartTimestamp    int64                `json:"startTimestamp"`
		DurationDays      int                  `json:"durationDays"`
	}

	// ReencryptedValue is a clear value sealed to the requester's X25519 key.
	ReencryptedValue struct {
		EphemeralPublicKey hexutil.Bytes `json:"ephemeralPublicKey"`
		Ciphertext         hexutil.Bytes `json:"ciphertext"`
	}

	UserDecryptResponse struct {
		Results map[string]ReencryptedValue `json:"results"`
	}

	RelayerConfig struct {
		ChainID           int64          `json:"chainId"`
		VerifyingContract common.Address `json:"verifyingContract"`
		ContractAddress   common.Address `json:"contractAddress"`
	}

	// SealedValue is the relayer's at-rest record of one confidential value.
	SealedValue struct {
		Handle    string    `bson:"_id"`
		Sealed    []byte    `bson:"sealed"`
		Contract  string    `bson:"contract"`
		Creator   string    `bson:"creator"`
		ACL       []string  `bson:"acl"`
		CreatedAt time.Time `bson:"created_at"`
	}
)
