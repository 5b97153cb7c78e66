// Package relayer is the devnode's confidential-compute service. It keeps
// encrypted addresses behind opaque handles, tracks who may read each one, and
// hands clear values back only to signed, authorized requesters, re-encrypted
// to a key of their choosing.
package relayer

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"phantom_link/internal/cryptographic/dh"
	"phantom_link/internal/cryptographic/eip712"
	"phantom_link/internal/cryptographic/encryption"
	"phantom_link/internal/cryptographic/kdf"
	"phantom_link/internal/cryptographic/signature"
	"phantom_link/internal/fault"
	"phantom_link/internal/model"
	"phantom_link/internal/utils/log"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const (
	MaxInputs       = 16
	MaxDurationDays = 365
	secondsPerDay   = 24 * 60 * 60
)

var ErrInvalidProof = errors.New("invalid input proof")

type (
	HandleStore interface {
		Create(ctx context.Context, v *model.SealedValue) error
		GetByHandle(ctx context.Context, h model.Handle) (*model.SealedValue, error)
		Allow(ctx context.Context, h model.Handle, grantee common.Address) (bool, error)
		IsAllowed(ctx context.Context, h model.Handle, who common.Address) (bool, error)
	}

	Relayer struct {
		store     HandleStore
		masterKey []byte
		proofPub  []byte
		proofPriv []byte
		domain    eip712.Domain
		contract  common.Address
		now       func() time.Time
	}
)

// NewRelayer builds a relayer. A nil masterKey or proofSeed is replaced by a
// random one, which makes every stored handle unreadable after a restart.
func NewRelayer(store HandleStore, masterKey, proofSeed []byte, domain eip712.Domain, contract common.Address) (*Relayer, error) {
	if masterKey == nil {
		masterKey = make([]byte, 32)
		if _, err := rand.Read(masterKey); err != nil {
			return nil, err
		}
		log.Warn("relayer master key not configured, using a throwaway key")
	}
	if len(masterKey) != 32 || (proofSeed != nil && len(proofSeed) != 32) {
		return nil, errors.New("relayer keys must be 32 bytes")
	}

	var pub, priv []byte
	if proofSeed == nil {
		var err error
		if pub, priv, err = signature.NewEd25519Keypair(); err != nil {
			return nil, err
		}
	} else {
		pub, priv = signature.KeypairFromSeed(proofSeed)
	}
	return &Relayer{
		store:     store,
		masterKey: masterKey,
		proofPub:  pub,
		proofPriv: priv,
		domain:    domain,
		contract:  contract,
		now:       time.Now,
	}, nil
}

func (r *Relayer) Config() model.RelayerConfig {
	return model.RelayerConfig{
		ChainID:           r.domain.ChainID,
		VerifyingContract: r.domain.VerifyingContract,
		ContractAddress:   r.contract,
	}
}

func (r *Relayer) sealKey(h model.Handle) ([]byte, error) {
	return deriveKey(r.masterKey, h[:], sealInfo)
}

func sealAAD(h model.Handle, contract common.Address) []byte {
	aad := make([]byte, 0, len(h)+common.AddressLength)
	aad = append(aad, h[:]...)
	return append(aad, contract.Bytes()...)
}

func proofMessage(contract, user common.Address, handles []model.Handle) []byte {
	parts := [][]byte{proofDomainTag, contract.Bytes(), user.Bytes()}
	for _, h := range handles {
		parts = append(parts, h[:])
	}
	return kdf.Keccak256(parts...)
}

// EncryptInput seals values bound to (contract, user). The proof layout is
// count || handles || ed25519 signature.
func (r *Relayer) EncryptInput(ctx context.Context, req *model.EncryptInputRequest) (*model.EncryptedInput, error) {
	if len(req.Values) == 0 || len(req.Values) > MaxInputs {
		return nil, &fault.DecodeError{What: fmt.Sprintf("input batch of %d values, want 1..%d", len(req.Values), MaxInputs)}
	}

	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}

	handles := make([]model.Handle, len(req.Values))
	for i, v := range req.Values {
		copy(handles[i][:], kdf.Keccak256(nonce[:], req.ContractAddress.Bytes(), req.UserAddress.Bytes(), []byte{byte(i)}))

		key, err := r.sealKey(handles[i])
		if err != nil {
			return nil, err
		}
		sealed, err := encryption.AEADEncrypt(key, v.Bytes(), sealAAD(handles[i], req.ContractAddress))
		if err != nil {
			return nil, err
		}

		err = r.store.Create(ctx, &model.SealedValue{
			Handle:    handles[i].Hex(),
			Sealed:    sealed,
			Contract:  req.ContractAddress.Hex(),
			Creator:   req.UserAddress.Hex(),
			ACL:       []string{},
			CreatedAt: r.now(),
		})
		if err != nil {
			return nil, fmt.Errorf("store handle: %w", err)
		}
	}

	sig := signature.ED25519Sign(r.proofPriv, proofMessage(req.ContractAddress, req.UserAddress, handles))
	proof := make([]byte, 0, 1+len(handles)*32+len(sig))
	proof = append(proof, byte(len(handles)))
	for _, h := range handles {
		proof = append(proof, h[:]...)
	}
	proof = append(proof, sig...)

	log.Debug("encrypted input",
		zap.String("contract", req.ContractAddress.Hex()),
		zap.String("user", req.UserAddress.Hex()),
		zap.Int("values", len(handles)))

	return &model.EncryptedInput{Handles: handles, InputProof: proof}, nil
}

// VerifyInput checks that proof was issued for handle, contract and user.
func (r *Relayer) VerifyInput(ctx context.Context, req *model.VerifyInputRequest) error {
	proof := req.InputProof
	if req.Handle.IsZero() || len(proof) < 1 {
		return ErrInvalidProof
	}
	n := int(proof[0])
	if n == 0 || len(proof) != 1+n*32+64 {
		return ErrInvalidProof
	}

	handles := make([]model.Handle, n)
	found := false
	for i := range handles {
		copy(handles[i][:], proof[1+i*32:1+(i+1)*32])
		if handles[i] == req.Handle {
			found = true
		}
	}
	if !found {
		return ErrInvalidProof
	}
	sig := proof[1+n*32:]
	if !signature.ED25519Verify(r.proofPub, proofMessage(req.ContractAddress, req.UserAddress, handles), sig) {
		return ErrInvalidProof
	}

	v, err := r.store.GetByHandle(ctx, req.Handle)
	if err != nil {
		return err
	}
	if v == nil || v.Contract != req.ContractAddress.Hex() {
		return ErrInvalidProof
	}
	return nil
}

func (r *Relayer) Allow(ctx context.Context, h model.Handle, grantee common.Address) error {
	ok, err := r.store.Allow(ctx, h, grantee)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("unknown handle %s", h.Hex())
	}
	return nil
}

func (r *Relayer) checkWindow(start int64, days int) error {
	if days < 1 || days > MaxDurationDays {
		return fault.Denied(fmt.Sprintf("duration must be 1..%d days", MaxDurationDays))
	}
	now := r.now().Unix()
	if now < start {
		return fault.Denied("request is not valid yet")
	}
	if now >= start+int64(days)*secondsPerDay {
		return fault.Denied("request has expired")
	}
	return nil
}

// UserDecrypt returns every requested value re-encrypted to req.PublicKey,
// provided the request is signed by req.UserAddress and both the user and
// the owning contract are on each handle's ACL.
func (r *Relayer) UserDecrypt(ctx context.Context, req *model.UserDecryptRequest) (*model.UserDecryptResponse, error) {
	if len(req.Pairs) == 0 {
		return nil, fault.Denied("no handles requested")
	}
	if err := r.checkWindow(req.StartTimestamp, req.DurationDays); err != nil {
		return nil, err
	}
	if len(req.PublicKey) != 32 {
		return nil, fault.Denied("public key must be 32 bytes")
	}

	td := eip712.NewUserDecryptRequest(r.domain, req.PublicKey, req.ContractAddresses, req.StartTimestamp, req.DurationDays)
	signer, err := eip712.Recover(td, req.Signature)
	if err != nil {
		return nil, fault.Denied(err.Error())
	}
	if signer != req.UserAddress {
		return nil, fault.Denied("signature does not match user address")
	}

	res := &model.UserDecryptResponse{Results: make(map[string]model.ReencryptedValue, len(req.Pairs))}
	for _, p := range req.Pairs {
		if !containsAddress(req.ContractAddresses, p.ContractAddress) {
			return nil, fault.Denied(fmt.Sprintf("contract %s not covered by signature", p.ContractAddress.Hex()))
		}

		v, err := r.store.GetByHandle(ctx, p.Handle)
		if err != nil {
			return nil, err
		}
		if v == nil || v.Contract != p.ContractAddress.Hex() {
			return nil, fault.Denied(fmt.Sprintf("unknown handle %s", p.Handle.Hex()))
		}

		for _, who := range []common.Address{req.UserAddress, p.ContractAddress} {
			ok, err := r.store.IsAllowed(ctx, p.Handle, who)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fault.Denied(fmt.Sprintf("%s is not allowed to decrypt %s", who.Hex(), p.Handle.Hex()))
			}
		}

		key, err := r.sealKey(p.Handle)
		if err != nil {
			return nil, err
		}
		clear, err := encryption.AEADDecrypt(key, v.Sealed, sealAAD(p.Handle, p.ContractAddress))
		if err != nil {
			return nil, fmt.Errorf("unseal %s: %w", p.Handle.Hex(), err)
		}

		out, err := reencrypt([32]byte(req.PublicKey), p.Handle, common.BytesToAddress(clear))
		if err != nil {
			return nil, err
		}
		res.Results[p.Handle.Hex()] = *out
	}

	log.Info("user decrypt",
		zap.String("user", req.UserAddress.Hex()),
		zap.Int("handles", len(req.Pairs)))
	return res, nil
}

func containsAddress(list []common.Address, a common.Address) bool {
	for _, x := range list {
		if bytes.Equal(x[:], a[:]) {
			return true
		}
	}
	return false
}

// GenerateKeypair returns a fresh X25519 keypair for UserDecrypt.
func GenerateKeypair() (*model.Keypair, error) {
	priv, pub, err := dh.NewX25519KeyPair()
	if err != nil {
		return nil, err
	}
	return &model.Keypair{PublicKey: pub, PrivateKey: priv}, nil
}
