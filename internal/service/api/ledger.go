package api

import (
	"context"
	"fmt"
	"net/http"

	"phantom_link/internal/model"
	"phantom_link/internal/service/ledger"

	"github.com/ethereum/go-ethereum/common"
)

type (
	CallSigner interface {
		SignCall(method string, payload any) (*model.SignedCall, error)
	}

	// LedgerClient talks to the devnode ledger. State-changing calls are
	// signed by the wallet it was built with.
	LedgerClient struct {
		c      *Client
		signer CallSigner
	}
)

func NewLedgerClient(c *Client, signer CallSigner) *LedgerClient {
	return &LedgerClient{c: c, signer: signer}
}

func (l *LedgerClient) submit(ctx context.Context, path, method string, args any) (*model.Receipt, error) {
	call, err := l.signer.SignCall(method, args)
	if err != nil {
		return nil, fmt.Errorf("sign %s: %w", method, err)
	}
	var rcpt model.Receipt
	if err := l.c.do(ctx, http.MethodPost, path, call, &rcpt); err != nil {
		return nil, err
	}
	return &rcpt, nil
}

func (l *LedgerClient) SendMessage(ctx context.Context, args *model.SendMessageArgs) (*model.Receipt, error) {
	return l.submit(ctx, "/ledger/send", ledger.MethodSendMessage, args)
}

func (l *LedgerClient) AllowMessageKey(ctx context.Context, args *model.AllowMessageKeyArgs) (*model.Receipt, error) {
	return l.submit(ctx, "/ledger/allow", ledger.MethodAllowMessageKey, args)
}

func (l *LedgerClient) MessageCount(ctx context.Context, owner common.Address) (uint64, error) {
	var res model.CountResponse
	if err := l.c.do(ctx, http.MethodGet, fmt.Sprintf("/ledger/inbox/%s/count", owner.Hex()), nil, &res); err != nil {
		return 0, err
	}
	return res.Count, nil
}

func (l *LedgerClient) GetMessage(ctx context.Context, owner common.Address, index uint64) (*model.StoredMessage, error) {
	var msg model.StoredMessage
	if err := l.c.do(ctx, http.MethodGet, fmt.Sprintf("/ledger/inbox/%s/%d", owner.Hex(), index), nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
