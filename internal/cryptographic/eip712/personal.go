package eip712

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
)

// CallDigest is the EIP-191 personal-message digest a wallet signs to
// authorize a devnode ledger call.
func CallDigest(method string, payload []byte, nonce uint64) []byte {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	return accounts.TextHash(crypto.Keccak256([]byte(method), payload, n[:]))
}
