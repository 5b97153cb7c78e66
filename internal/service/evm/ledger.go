// Package evm binds the messenger to a deployed PhantomLink contract over
// JSON-RPC.
package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/url"
	"regexp"
	"strings"

	"phantom_link/internal/fault"
	"phantom_link/internal/model"
	"phantom_link/internal/utils/log"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

const service = "rpc"

var hardhatReason = regexp.MustCompile(`reverted with reason string '(.*)'`)

type (
	Transactor interface {
		TransactOpts(chainID int64) (*bind.TransactOpts, error)
	}

	Ledger struct {
		client   *ethclient.Client
		contract *bind.BoundContract
		signer   Transactor
		chainID  int64
	}
)

// Dial connects to rpcURL and checks that it serves chainID.
func Dial(ctx context.Context, rpcURL string, address common.Address, chainID int64, signer Transactor) (*Ledger, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fault.Unavailable(service, err)
	}
	id, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, mapError("chain id", err)
	}
	if id.Int64() != chainID {
		client.Close()
		return nil, fmt.Errorf("rpc serves chain %s, configured for %d", id, chainID)
	}

	parsed, err := abi.JSON(strings.NewReader(PhantomLinkABI))
	if err != nil {
		client.Close()
		return nil, err
	}
	return &Ledger{
		client:   client,
		contract: bind.NewBoundContract(address, parsed, client, client, client),
		signer:   signer,
		chainID:  chainID,
	}, nil
}

func (l *Ledger) Close() {
	l.client.Close()
}

func (l *Ledger) transact(ctx context.Context, method string, params ...interface{}) (*model.Receipt, error) {
	opts, err := l.signer.TransactOpts(l.chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx

	tx, err := l.contract.Transact(opts, method, params...)
	if err != nil {
		return nil, mapError(method, err)
	}
	log.Info("transaction sent", zap.String("method", method), zap.String("tx", tx.Hash().Hex()))

	rcpt, err := bind.WaitMined(ctx, l.client, tx)
	if err != nil {
		return nil, mapError(method, err)
	}
	if rcpt.Status != types.ReceiptStatusSuccessful {
		return nil, &fault.SubmissionRejectedError{Reason: "transaction reverted"}
	}
	return &model.Receipt{TxHash: rcpt.TxHash, BlockNumber: rcpt.BlockNumber.Uint64()}, nil
}

func (l *Ledger) call(ctx context.Context, method string, params ...interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := l.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, mapError(method, err)
	}
	return out, nil
}

func (l *Ledger) SendMessage(ctx context.Context, args *model.SendMessageArgs) (*model.Receipt, error) {
	return l.transact(ctx, "sendMessage", args.Recipient, args.Ciphertext, [32]byte(args.Handle), []byte(args.InputProof))
}

func (l *Ledger) AllowMessageKey(ctx context.Context, args *model.AllowMessageKeyArgs) (*model.Receipt, error) {
	return l.transact(ctx, "allowMessageKey", args.Owner, new(big.Int).SetUint64(args.Index), args.Grantee)
}

func (l *Ledger) MessageCount(ctx context.Context, owner common.Address) (uint64, error) {
	out, err := l.call(ctx, "messageCount", owner)
	if err != nil {
		return 0, err
	}
	n, ok := out[0].(*big.Int)
	if !ok {
		return 0, &fault.DecodeError{What: "messageCount result"}
	}
	return n.Uint64(), nil
}

func (l *Ledger) GetMessage(ctx context.Context, owner common.Address, index uint64) (*model.StoredMessage, error) {
	out, err := l.call(ctx, "getMessage", owner, new(big.Int).SetUint64(index))
	if err != nil {
		return nil, err
	}
	return unpackMessage(owner, index, out)
}

func unpackMessage(owner common.Address, index uint64, out []interface{}) (*model.StoredMessage, error) {
	if len(out) != 4 {
		return nil, &fault.DecodeError{What: "getMessage result", Err: fmt.Errorf("%d values", len(out))}
	}
	sender, ok1 := out[0].(common.Address)
	ciphertext, ok2 := out[1].(string)
	handle, ok3 := out[2].([32]byte)
	ts, ok4 := out[3].(*big.Int)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil, &fault.DecodeError{What: "getMessage result", Err: errors.New("unexpected types")}
	}
	return &model.StoredMessage{
		Owner:      owner,
		Index:      index,
		Sender:     sender,
		Ciphertext: ciphertext,
		Handle:     model.Handle(handle),
		Timestamp:  ts.Uint64(),
	}, nil
}

// mapError sorts node errors into reverts, transport failures and the rest.
func mapError(op string, err error) error {
	if reason, ok := revertReason(err); ok {
		return &fault.SubmissionRejectedError{Reason: reason, Err: err}
	}
	var opErr *net.OpError
	var urlErr *url.Error
	if errors.As(err, &opErr) || errors.As(err, &urlErr) || errors.Is(err, context.DeadlineExceeded) {
		return fault.Unavailable(service, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func revertReason(err error) (string, bool) {
	var de rpc.DataError
	if errors.As(err, &de) {
		if data, ok := de.ErrorData().(string); ok {
			if reason, uerr := abi.UnpackRevert(common.FromHex(data)); uerr == nil {
				return reason, true
			}
		}
	}

	msg := err.Error()
	if m := hardhatReason.FindStringSubmatch(msg); m != nil {
		return m[1], true
	}
	const marker = "execution reverted"
	if i := strings.Index(msg, marker); i >= 0 {
		reason := strings.TrimSpace(strings.TrimPrefix(msg[i+len(marker):], ":"))
		if reason == "" {
			reason = marker
		}
		return reason, true
	}
	return "", false
}
