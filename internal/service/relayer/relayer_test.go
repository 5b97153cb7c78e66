package relayer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"testing"
	"time"

	"phantom_link/internal/cryptographic/eip712"
	"phantom_link/internal/fault"
	"phantom_link/internal/model"
	"phantom_link/internal/repository/memory"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	testContract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	testDomain   = eip712.Domain{ChainID: 31337, VerifyingContract: common.HexToAddress("0x5ffdaAB0373E62E2ea2944776209aEf29E631A64")}
	testNow      = time.Unix(1_750_000_000, 0)
)

type fixture struct {
	relayer *Relayer
	store   *memory.HandleRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewHandleRepo()
	r, err := NewRelayer(store, make([]byte, 32), make([]byte, 32), testDomain, testContract)
	if err != nil {
		t.Fatalf("NewRelayer: %v", err)
	}
	r.now = func() time.Time { return testNow }
	return &fixture{relayer: r, store: store}
}

func newKey(t *testing.T) (*ecdsa.PrivateKey, common.Address) {
	t.Helper()
	k, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return k, crypto.PubkeyToAddress(k.PublicKey)
}

func (f *fixture) encrypt(t *testing.T, user, value common.Address) (model.Handle, []byte) {
	t.Helper()
	in, err := f.relayer.EncryptInput(context.Background(), &model.EncryptInputRequest{
		ContractAddress: testContract,
		UserAddress:     user,
		Values:          []common.Address{value},
	})
	if err != nil {
		t.Fatalf("EncryptInput: %v", err)
	}
	if len(in.Handles) != 1 {
		t.Fatalf("got %d handles", len(in.Handles))
	}
	return in.Handles[0], in.InputProof
}

func signedRequest(t *testing.T, key *ecdsa.PrivateKey, kp *model.Keypair, h model.Handle, start int64, days int) *model.UserDecryptRequest {
	t.Helper()
	contracts := []common.Address{testContract}
	td := eip712.NewUserDecryptRequest(testDomain, kp.PublicKey[:], contracts, start, days)
	sig, err := eip712.Sign(td, key)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return &model.UserDecryptRequest{
		Pairs:             []model.HandleContractPair{{Handle: h, ContractAddress: testContract}},
		PublicKey:         kp.PublicKey[:],
		Signature:         sig,
		ContractAddresses: contracts,
		UserAddress:       crypto.PubkeyToAddress(key.PublicKey),
		StartTimestamp:    start,
		DurationDays:      days,
	}
}

func TestVerifyInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, sender := newKey(t)
	_, ephemeral := newKey(t)
	h, proof := f.encrypt(t, sender, ephemeral)

	ok := &model.VerifyInputRequest{ContractAddress: testContract, UserAddress: sender, Handle: h, InputProof: proof}
	if err := f.relayer.VerifyInput(ctx, ok); err != nil {
		t.Fatalf("VerifyInput: %v", err)
	}

	_, other := newKey(t)
	tampered := append([]byte{}, proof...)
	tampered[len(tampered)-1] ^= 1

	tests := []struct {
		name string
		req  *model.VerifyInputRequest
	}{
		{"other sender", &model.VerifyInputRequest{ContractAddress: testContract, UserAddress: other, Handle: h, InputProof: proof}},
		{"other contract", &model.VerifyInputRequest{ContractAddress: other, UserAddress: sender, Handle: h, InputProof: proof}},
		{"other handle", &model.VerifyInputRequest{ContractAddress: testContract, UserAddress: sender, Handle: model.Handle{9}, InputProof: proof}},
		{"tampered", &model.VerifyInputRequest{ContractAddress: testContract, UserAddress: sender, Handle: h, InputProof: tampered}},
		{"empty", &model.VerifyInputRequest{ContractAddress: testContract, UserAddress: sender, Handle: h}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := f.relayer.VerifyInput(ctx, tt.req); !errors.Is(err, ErrInvalidProof) {
				t.Errorf("VerifyInput() error = %v, want ErrInvalidProof", err)
			}
		})
	}
}

func TestUserDecryptRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, sender := newKey(t)
	readerKey, reader := newKey(t)
	_, ephemeral := newKey(t)
	h, _ := f.encrypt(t, sender, ephemeral)

	if err := f.relayer.Allow(ctx, h, testContract); err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if err := f.relayer.Allow(ctx, h, reader); err != nil {
		t.Fatalf("Allow: %v", err)
	}

	kp, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	res, err := f.relayer.UserDecrypt(ctx, signedRequest(t, readerKey, kp, h, testNow.Unix(), 10))
	if err != nil {
		t.Fatalf("UserDecrypt: %v", err)
	}
	v, ok := res.Results[h.Hex()]
	if !ok {
		t.Fatalf("no result for handle")
	}
	got, err := OpenReencrypted(kp, h, v)
	if err != nil {
		t.Fatalf("OpenReencrypted: %v", err)
	}
	if got != ephemeral {
		t.Errorf("decrypted %s, want %s", got.Hex(), ephemeral.Hex())
	}

	other, _ := GenerateKeypair()
	if _, err := OpenReencrypted(other, h, v); err == nil {
		t.Errorf("another keypair opened the result")
	}
}

func TestUserDecryptDenied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, sender := newKey(t)
	readerKey, reader := newKey(t)
	strangerKey, _ := newKey(t)
	_, ephemeral := newKey(t)
	h, _ := f.encrypt(t, sender, ephemeral)
	f.relayer.Allow(ctx, h, testContract)
	f.relayer.Allow(ctx, h, reader)
	kp, _ := GenerateKeypair()

	forged := signedRequest(t, strangerKey, kp, h, testNow.Unix(), 10)
	forged.UserAddress = reader

	contractless := signedRequest(t, readerKey, kp, h, testNow.Unix(), 10)
	contractless.ContractAddresses = []common.Address{sender}

	tests := []struct {
		name string
		req  *model.UserDecryptRequest
	}{
		{"not on acl", signedRequest(t, strangerKey, kp, h, testNow.Unix(), 10)},
		{"forged user", forged},
		{"expired", signedRequest(t, readerKey, kp, h, testNow.Add(-11*24*time.Hour).Unix(), 10)},
		{"not yet valid", signedRequest(t, readerKey, kp, h, testNow.Add(time.Hour).Unix(), 10)},
		{"too long", signedRequest(t, readerKey, kp, h, testNow.Unix(), 366)},
		{"unknown handle", signedRequest(t, readerKey, kp, model.Handle{7}, testNow.Unix(), 10)},
		{"contract not signed", contractless},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.relayer.UserDecrypt(ctx, tt.req)
			if !errors.Is(err, fault.ErrAuthorizationDenied) {
				t.Errorf("UserDecrypt() error = %v, want ErrAuthorizationDenied", err)
			}
		})
	}
}

func TestUserDecryptRequiresContractOnACL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, sender := newKey(t)
	readerKey, reader := newKey(t)
	_, ephemeral := newKey(t)
	h, _ := f.encrypt(t, sender, ephemeral)
	f.relayer.Allow(ctx, h, reader)
	kp, _ := GenerateKeypair()

	_, err := f.relayer.UserDecrypt(ctx, signedRequest(t, readerKey, kp, h, testNow.Unix(), 10))
	if !errors.Is(err, fault.ErrAuthorizationDenied) {
		t.Fatalf("UserDecrypt() error = %v, want ErrAuthorizationDenied", err)
	}
}

func TestEncryptInputLimits(t *testing.T) {
	f := newFixture(t)
	_, err := f.relayer.EncryptInput(context.Background(), &model.EncryptInputRequest{ContractAddress: testContract})
	if err == nil {
		t.Fatalf("empty input accepted")
	}
}

func TestAllowUnknownHandle(t *testing.T) {
	f := newFixture(t)
	if err := f.relayer.Allow(context.Background(), model.Handle{3}, testContract); err == nil {
		t.Fatalf("Allow on unknown handle succeeded")
	}
}
