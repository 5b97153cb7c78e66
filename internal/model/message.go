package model

import (
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type (
	// StoredMessage is one inbox entry as the ledger returns it. It never
	// changes after submission.
	StoredMessage struct {
		Owner      common.Address `json:"owner"`
		Index      uint64         `json:"index"`
		Sender     common.Address `json:"sender"`
		Ciphertext string         `json:"ciphertext"`
		Handle     Handle         `json:"handle"`
		Timestamp  uint64         `json:"timestamp"`
	}

	Receipt struct {
		TxHash      common.Hash `json:"txHash"`
		BlockNumber uint64      `json:"blockNumber"`
	}

	SendMessageArgs struct {
		Recipient  common.Address `json:"recipient"`
		Ciphertext string         `json:"ciphertext"`
		Handle     Handle         `json:"handle"`
		InputProof hexutil.Bytes  `json:"inputProof"`
	}

	AllowMessageKeyArgs struct {
		Owner   common.Address `json:"owner"`
		Index   uint64         `json:"index"`
		Grantee common.Address `json:"grantee"`
	}

	// SignedCall is a state-changing ledger call authenticated by the
	// caller's wallet signature instead of a mined transaction.
	SignedCall struct {
		From      common.Address  `json:"from"`
		Method    string          `json:"method"`
		Payload   json.RawMessage `json:"payload"`
		Nonce     uint64          `json:"nonce"`
		Signature hexutil.Bytes   `json:"signature"`
	}

	// Revealed is a stored message after a successful reveal.
	Revealed struct {
		Owner            common.Address `json:"owner"`
		Index            uint64         `json:"index"`
		Handle           Handle         `json:"handle"`
		EphemeralAddress common.Address `json:"ephemeralAddress"`
		Plaintext        string         `json:"plaintext"`
		RevealedAt       time.Time      `json:"revealedAt"`
	}

	// InboxEvent announces a new message for Owner.
	InboxEvent struct {
		Owner     common.Address `json:"owner"`
		Index     uint64         `json:"index"`
		Sender    common.Address `json:"sender"`
		TxHash    common.Hash    `json:"txHash"`
		Timestamp uint64         `json:"timestamp"`
	}
)
