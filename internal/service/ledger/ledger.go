// Package ledger implements the mailbox contract for the devnode: per-owner
// inboxes of immutable messages whose key handles live in the relayer.
package ledger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"phantom_link/internal/cryptographic/eip712"
	"phantom_link/internal/cryptographic/kdf"
	"phantom_link/internal/fault"
	"phantom_link/internal/model"
	"phantom_link/internal/utils/log"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const (
	MethodSendMessage     = "sendMessage"
	MethodAllowMessageKey = "allowMessageKey"
)

// Revert reasons, matching the deployed contract.
const (
	ReasonInvalidRecipient = "Invalid recipient"
	ReasonEmptyMessage     = "Empty message"
	ReasonInvalidProof     = "Invalid input proof"
	ReasonInvalidIndex     = "Invalid index"
	ReasonNotOwner         = "Not inbox owner"
	ReasonInvalidGrantee   = "Invalid grantee"
)

type (
	InboxStore interface {
		Append(ctx context.Context, msg *model.StoredMessage) (uint64, error)
		Count(ctx context.Context, owner common.Address) (uint64, error)
		Get(ctx context.Context, owner common.Address, index uint64) (*model.StoredMessage, error)
		NextBlock(ctx context.Context) (uint64, error)
		UseNonce(ctx context.Context, from common.Address, nonce uint64) (bool, error)
		Publish(ctx context.Context, ev *model.InboxEvent) error
		Subscribe(ctx context.Context) (<-chan *model.InboxEvent, error)
	}

	// Confidential is the part of the relayer the contract calls into.
	Confidential interface {
		VerifyInput(ctx context.Context, req *model.VerifyInputRequest) error
		Allow(ctx context.Context, h model.Handle, grantee common.Address) error
	}

	Ledger struct {
		inbox    InboxStore
		conf     Confidential
		contract common.Address
		now      func() time.Time
	}
)

func NewLedger(inbox InboxStore, conf Confidential, contract common.Address) *Ledger {
	return &Ledger{
		inbox:    inbox,
		conf:     conf,
		contract: contract,
		now:      time.Now,
	}
}

func (l *Ledger) Address() common.Address {
	return l.contract
}

// Events streams new-message announcements until ctx is done.
func (l *Ledger) Events(ctx context.Context) (<-chan *model.InboxEvent, error) {
	return l.inbox.Subscribe(ctx)
}

func (l *Ledger) receipt(ctx context.Context, from common.Address, method string, payload []byte) (*model.Receipt, error) {
	block, err := l.inbox.NextBlock(ctx)
	if err != nil {
		return nil, err
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], block)
	return &model.Receipt{
		TxHash:      common.BytesToHash(kdf.Keccak256(l.contract.Bytes(), from.Bytes(), []byte(method), payload, b[:])),
		BlockNumber: block,
	}, nil
}

// SendMessage stores a message for args.Recipient. The relayer grants the
// key handle to the contract, the recipient and the sender before the
// message is appended, so a stored message is always readable by its owner.
// A failed append leaves those grants behind on a handle no message points
// to; they reveal nothing the sender could not already read.
func (l *Ledger) SendMessage(ctx context.Context, from common.Address, args *model.SendMessageArgs) (*model.Receipt, error) {
	if args.Recipient == (common.Address{}) {
		return nil, fault.Rejected(ReasonInvalidRecipient)
	}
	if len(args.Ciphertext) == 0 {
		return nil, fault.Rejected(ReasonEmptyMessage)
	}

	err := l.conf.VerifyInput(ctx, &model.VerifyInputRequest{
		ContractAddress: l.contract,
		UserAddress:     from,
		Handle:          args.Handle,
		InputProof:      args.InputProof,
	})
	if err != nil {
		return nil, &fault.SubmissionRejectedError{Reason: ReasonInvalidProof, Err: err}
	}

	for _, grantee := range []common.Address{l.contract, args.Recipient, from} {
		if err := l.conf.Allow(ctx, args.Handle, grantee); err != nil {
			return nil, fmt.Errorf("allow %s: %w", grantee.Hex(), err)
		}
	}

	payload, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	rcpt, err := l.receipt(ctx, from, MethodSendMessage, payload)
	if err != nil {
		return nil, err
	}

	msg := &model.StoredMessage{
		Owner:      args.Recipient,
		Sender:     from,
		Ciphertext: args.Ciphertext,
		Handle:     args.Handle,
		Timestamp:  uint64(l.now().Unix()),
	}
	idx, err := l.inbox.Append(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	log.Info("message stored",
		zap.String("from", from.Hex()),
		zap.String("to", args.Recipient.Hex()),
		zap.Uint64("index", idx),
		zap.String("tx", rcpt.TxHash.Hex()))

	ev := &model.InboxEvent{
		Owner:     args.Recipient,
		Index:     idx,
		Sender:    from,
		TxHash:    rcpt.TxHash,
		Timestamp: msg.Timestamp,
	}
	if err := l.inbox.Publish(ctx, ev); err != nil {
		log.Error("publish inbox event failed", zap.Error(err))
	}
	return rcpt, nil
}

func (l *Ledger) MessageCount(ctx context.Context, owner common.Address) (uint64, error) {
	return l.inbox.Count(ctx, owner)
}

func (l *Ledger) GetMessage(ctx context.Context, owner common.Address, index uint64) (*model.StoredMessage, error) {
	msg, err := l.inbox.Get(ctx, owner, index)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, fault.Rejected(ReasonInvalidIndex)
	}
	msg.Owner = owner
	return msg, nil
}

// AllowMessageKey lets the inbox owner share one message key with grantee.
func (l *Ledger) AllowMessageKey(ctx context.Context, from common.Address, args *model.AllowMessageKeyArgs) (*model.Receipt, error) {
	if from != args.Owner {
		return nil, fault.Rejected(ReasonNotOwner)
	}
	if args.Grantee == (common.Address{}) {
		return nil, fault.Rejected(ReasonInvalidGrantee)
	}
	msg, err := l.GetMessage(ctx, args.Owner, args.Index)
	if err != nil {
		return nil, err
	}
	if err := l.conf.Allow(ctx, msg.Handle, args.Grantee); err != nil {
		return nil, fmt.Errorf("allow %s: %w", args.Grantee.Hex(), err)
	}

	payload, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	return l.receipt(ctx, from, MethodAllowMessageKey, payload)
}

// Execute authenticates call and dispatches it.
func (l *Ledger) Execute(ctx context.Context, call *model.SignedCall) (*model.Receipt, error) {
	signer, err := eip712.RecoverHash(eip712.CallDigest(call.Method, call.Payload, call.Nonce), call.Signature)
	if err != nil {
		return nil, fault.Rejected("Invalid signature")
	}
	if signer != call.From {
		return nil, fault.Rejected("Signer mismatch")
	}
	fresh, err := l.inbox.UseNonce(ctx, call.From, call.Nonce)
	if err != nil {
		return nil, err
	}
	if !fresh {
		return nil, fault.Rejected("Nonce already used")
	}

	switch call.Method {
	case MethodSendMessage:
		var args model.SendMessageArgs
		if err := json.Unmarshal(call.Payload, &args); err != nil {
			return nil, &fault.DecodeError{What: "sendMessage payload", Err: err}
		}
		return l.SendMessage(ctx, call.From, &args)
	case MethodAllowMessageKey:
		var args model.AllowMessageKeyArgs
		if err := json.Unmarshal(call.Payload, &args); err != nil {
			return nil, &fault.DecodeError{What: "allowMessageKey payload", Err: err}
		}
		return l.AllowMessageKey(ctx, call.From, &args)
	}
	return nil, fault.Rejected("Unknown method " + call.Method)
}
