// Package app is the messenger core: it scrambles outgoing text under a
// throwaway address, hands that address to the relayer as a confidential
// value, and reverses both steps when a message is revealed.
package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"phantom_link/internal/cryptographic/keystream"
	"phantom_link/internal/fault"
	"phantom_link/internal/model"
	"phantom_link/internal/service/relayer"
	"phantom_link/internal/service/wallet"
	"phantom_link/internal/utils/log"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"go.uber.org/zap"
)

// DecryptWindowDays is how long a reveal authorization stays valid.
const DecryptWindowDays = 10

const (
	StatusNotReady       = "Encryption instance not ready yet."
	StatusBadRecipient   = "Recipient address is invalid."
	StatusEmptyMessage   = "Message cannot be empty."
	StatusSubmitting     = "Submitting transaction..."
	StatusDelivered      = "Delivered on-chain. Recipient can now decrypt the key."
	StatusDecrypting     = "Decrypting..."
	StatusMissingRelayer = "Missing wallet, signer, or relayer."
)

var (
	// ErrRevealInProgress is returned when the same message is already being
	// revealed by this messenger.
	ErrRevealInProgress = errors.New("reveal already in progress")

	errNotReady = errors.New("messenger not initialized")
)

type (
	Ledger interface {
		SendMessage(ctx context.Context, args *model.SendMessageArgs) (*model.Receipt, error)
		MessageCount(ctx context.Context, owner common.Address) (uint64, error)
		GetMessage(ctx context.Context, owner common.Address, index uint64) (*model.StoredMessage, error)
		AllowMessageKey(ctx context.Context, args *model.AllowMessageKeyArgs) (*model.Receipt, error)
	}

	// Relayer is the narrow capability the messenger needs from the
	// confidential-compute service.
	Relayer interface {
		Init(ctx context.Context) error
		GenerateKeypair() (*model.Keypair, error)
		CreateEIP712(publicKey []byte, contracts []common.Address, startTimestamp int64, durationDays int) (apitypes.TypedData, error)
		UserDecrypt(ctx context.Context, req *model.UserDecryptRequest, kp *model.Keypair) (map[model.Handle]common.Address, error)
		CreateEncryptedInput(contract, user common.Address) relayer.InputBuilder
	}

	Wallet interface {
		Address() common.Address
		SignTypedData(td apitypes.TypedData) ([]byte, error)
	}

	RevealCache interface {
		Get(ctx context.Context, owner common.Address, index uint64, h model.Handle) (*model.Revealed, error)
		Put(ctx context.Context, v *model.Revealed) error
	}

	Options struct {
		Contract common.Address
		Ledger   Ledger
		Relayer  Relayer
		Wallet   Wallet
		// Cache is optional.
		Cache RevealCache
		// OnTransition is optional and called synchronously.
		OnTransition func(model.Transition)
	}

	// Messenger holds the wallet and relayer for the lifetime of a session.
	// Nothing but Init works until Init has succeeded.
	Messenger struct {
		opts Options
		now  func() time.Time

		mu       sync.Mutex
		ready    bool
		observer func(model.Transition)
		inflight map[revealKey]struct{}
	}

	revealKey struct {
		owner common.Address
		index uint64
	}

	SendResult struct {
		Receipt          *model.Receipt
		Recipient        common.Address
		EphemeralAddress common.Address
		Ciphertext       string
		Handle           model.Handle
	}
)

func NewMessenger(opts Options) *Messenger {
	return &Messenger{
		opts:     opts,
		now:      time.Now,
		observer: opts.OnTransition,
		inflight: make(map[revealKey]struct{}),
	}
}

// Init brings up the relayer. It may be retried after a failure.
func (m *Messenger) Init(ctx context.Context) error {
	if m.opts.Ledger == nil || m.opts.Relayer == nil || m.opts.Wallet == nil {
		return fault.Unavailable("messenger", errors.New(StatusMissingRelayer))
	}
	if err := m.opts.Relayer.Init(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	m.ready = true
	m.mu.Unlock()
	log.Debug("messenger ready", zap.String("address", m.opts.Wallet.Address().Hex()))
	return nil
}

func (m *Messenger) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = false
}

func (m *Messenger) Address() common.Address {
	return m.opts.Wallet.Address()
}

func (m *Messenger) Contract() common.Address {
	return m.opts.Contract
}

// OnTransition replaces the transition observer.
func (m *Messenger) OnTransition(fn func(model.Transition)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer = fn
}

func (m *Messenger) emit(t model.Transition) {
	m.mu.Lock()
	fn := m.observer
	m.mu.Unlock()
	if fn != nil {
		fn(t)
	}
}

func (m *Messenger) checkReady() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return fault.Unavailable("relayer", errNotReady)
	}
	return nil
}

func (m *Messenger) sendFailed(err error) error {
	m.emit(model.Transition{Send: model.SendFailed, Status: fault.Status("send", err), Err: err})
	return err
}

// Send scrambles message under a fresh ephemeral address and stores it in
// recipient's inbox together with the confidential handle of that address.
func (m *Messenger) Send(ctx context.Context, recipient, message string) (*SendResult, error) {
	m.emit(model.Transition{Send: model.SendComposing})
	if err := m.checkReady(); err != nil {
		m.emit(model.Transition{Send: model.SendFailed, Status: StatusNotReady, Err: err})
		return nil, err
	}

	to, err := keystream.ParseAddress(recipient)
	if err != nil {
		m.emit(model.Transition{Send: model.SendFailed, Status: StatusBadRecipient, Err: err})
		return nil, err
	}
	if strings.TrimSpace(message) == "" {
		err := fault.Rejected(StatusEmptyMessage)
		m.emit(model.Transition{Send: model.SendFailed, Status: StatusEmptyMessage, Err: err})
		return nil, err
	}

	m.emit(model.Transition{Send: model.SendEncrypting})
	eph, err := wallet.NewEphemeralAddress()
	if err != nil {
		return nil, m.sendFailed(err)
	}
	ciphertext := keystream.EncryptWithAddress(message, eph)

	from := m.opts.Wallet.Address()
	input, err := m.opts.Relayer.CreateEncryptedInput(m.opts.Contract, from).AddAddress(eph).Encrypt(ctx)
	if err != nil {
		return nil, m.sendFailed(err)
	}

	m.emit(model.Transition{Send: model.SendSubmitting, Status: StatusSubmitting})
	rcpt, err := m.opts.Ledger.SendMessage(ctx, &model.SendMessageArgs{
		Recipient:  to,
		Ciphertext: ciphertext,
		Handle:     input.Handles[0],
		InputProof: input.InputProof,
	})
	if err != nil {
		return nil, m.sendFailed(err)
	}

	m.emit(model.Transition{Send: model.SendConfirmed, Status: StatusDelivered})
	log.Info("message sent",
		zap.String("to", to.Hex()),
		zap.String("tx", rcpt.TxHash.Hex()))

	return &SendResult{
		Receipt:          rcpt,
		Recipient:        to,
		EphemeralAddress: eph,
		Ciphertext:       ciphertext,
		Handle:           input.Handles[0],
	}, nil
}

// Inbox lists owner's messages, newest first.
func (m *Messenger) Inbox(ctx context.Context, owner common.Address) ([]*model.StoredMessage, error) {
	n, err := m.opts.Ledger.MessageCount(ctx, owner)
	if err != nil {
		return nil, err
	}

	msgs := make([]*model.StoredMessage, 0, n)
	for i := n; i > 0; i-- {
		msg, err := m.opts.Ledger.GetMessage(ctx, owner, i-1)
		if err != nil {
			return nil, err
		}
		msg.Owner = owner
		msg.Index = i - 1
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (m *Messenger) acquire(k revealKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.inflight[k]; busy {
		return false
	}
	m.inflight[k] = struct{}{}
	return true
}

func (m *Messenger) release(k revealKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inflight, k)
}

func (m *Messenger) revealFailed(index uint64, err error) error {
	m.emit(model.Transition{IsReveal: true, Reveal: model.RevealFailed, Index: index, Status: fault.Status("decrypt", err), Err: err})
	return err
}

// Reveal asks the relayer for msg's ephemeral address, signed for by the
// wallet, and unscrambles the ciphertext with it. A wrong key is not
// detected: it yields garbage text.
func (m *Messenger) Reveal(ctx context.Context, msg *model.StoredMessage) (*model.Revealed, error) {
	if err := m.checkReady(); err != nil {
		return nil, err
	}
	k := revealKey{owner: msg.Owner, index: msg.Index}
	if !m.acquire(k) {
		return nil, ErrRevealInProgress
	}
	defer m.release(k)

	m.emit(model.Transition{IsReveal: true, Reveal: model.RevealFetching, Index: msg.Index, Status: StatusDecrypting})

	if m.opts.Cache != nil {
		cached, err := m.opts.Cache.Get(ctx, msg.Owner, msg.Index, msg.Handle)
		if err != nil {
			log.Warn("reveal cache lookup failed", zap.Error(err))
		}
		if cached != nil {
			m.emit(model.Transition{IsReveal: true, Reveal: model.RevealRevealed, Index: msg.Index})
			return cached, nil
		}
	}

	eph, err := m.fetchKey(ctx, msg.Handle)
	if err != nil {
		return nil, m.revealFailed(msg.Index, err)
	}

	m.emit(model.Transition{IsReveal: true, Reveal: model.RevealDecrypting, Index: msg.Index, Status: StatusDecrypting})
	plaintext, err := keystream.DecryptWithAddress(msg.Ciphertext, eph)
	if err != nil {
		return nil, m.revealFailed(msg.Index, err)
	}

	revealed := &model.Revealed{
		Owner:            msg.Owner,
		Index:            msg.Index,
		Handle:           msg.Handle,
		EphemeralAddress: eph,
		Plaintext:        plaintext,
		RevealedAt:       m.now(),
	}
	if m.opts.Cache != nil {
		if err := m.opts.Cache.Put(ctx, revealed); err != nil {
			log.Warn("reveal cache store failed", zap.Error(err))
		}
	}

	m.emit(model.Transition{IsReveal: true, Reveal: model.RevealRevealed, Index: msg.Index})
	return revealed, nil
}

func (m *Messenger) fetchKey(ctx context.Context, h model.Handle) (common.Address, error) {
	r := m.opts.Relayer
	kp, err := r.GenerateKeypair()
	if err != nil {
		return common.Address{}, err
	}

	start := m.now().Unix()
	contracts := []common.Address{m.opts.Contract}
	td, err := r.CreateEIP712(kp.PublicKey[:], contracts, start, DecryptWindowDays)
	if err != nil {
		return common.Address{}, err
	}
	sig, err := m.opts.Wallet.SignTypedData(td)
	if err != nil {
		return common.Address{}, fault.Unavailable("wallet", err)
	}

	clear, err := r.UserDecrypt(ctx, &model.UserDecryptRequest{
		Pairs:             []model.HandleContractPair{{Handle: h, ContractAddress: m.opts.Contract}},
		PublicKey:         kp.PublicKey[:],
		Signature:         sig,
		ContractAddresses: contracts,
		UserAddress:       m.opts.Wallet.Address(),
		StartTimestamp:    start,
		DurationDays:      DecryptWindowDays,
	}, kp)
	if err != nil {
		return common.Address{}, err
	}
	eph, ok := clear[h]
	if !ok {
		return common.Address{}, fault.Denied("relayer returned no value for " + h.Hex())
	}
	return eph, nil
}

// Allow shares the key of owner's message at index with grantee. Only the
// inbox owner's wallet can do this.
func (m *Messenger) Allow(ctx context.Context, owner common.Address, index uint64, grantee string) (*model.Receipt, error) {
	if err := m.checkReady(); err != nil {
		return nil, err
	}
	to, err := keystream.ParseAddress(grantee)
	if err != nil {
		return nil, err
	}
	return m.opts.Ledger.AllowMessageKey(ctx, &model.AllowMessageKeyArgs{
		Owner:   owner,
		Index:   index,
		Grantee: to,
	})
}
