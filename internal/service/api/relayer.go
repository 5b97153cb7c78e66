package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"phantom_link/internal/cryptographic/eip712"
	"phantom_link/internal/fault"
	"phantom_link/internal/model"
	"phantom_link/internal/service/relayer"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

var errNotInitialized = errors.New("relayer not initialized")

// RelayerClient is the capability handle for the confidential-compute
// relayer. Init must succeed before any other call.
type RelayerClient struct {
	c *Client

	mu  sync.RWMutex
	cfg *model.RelayerConfig
}

func NewRelayerClient(c *Client) *RelayerClient {
	return &RelayerClient{c: c}
}

// Init fetches the relayer's chain configuration. It is safe to call more
// than once; later calls are no-ops.
func (r *RelayerClient) Init(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cfg != nil {
		return nil
	}
	var cfg model.RelayerConfig
	if err := r.c.do(ctx, http.MethodGet, "/relayer/config", nil, &cfg); err != nil {
		return err
	}
	r.cfg = &cfg
	return nil
}

func (r *RelayerClient) Config() (model.RelayerConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.cfg == nil {
		return model.RelayerConfig{}, fault.Unavailable("relayer", errNotInitialized)
	}
	return *r.cfg, nil
}

func (r *RelayerClient) GenerateKeypair() (*model.Keypair, error) {
	return relayer.GenerateKeypair()
}

func (r *RelayerClient) CreateEIP712(publicKey []byte, contracts []common.Address, startTimestamp int64, durationDays int) (apitypes.TypedData, error) {
	cfg, err := r.Config()
	if err != nil {
		return apitypes.TypedData{}, err
	}
	domain := eip712.Domain{ChainID: cfg.ChainID, VerifyingContract: cfg.VerifyingContract}
	return eip712.NewUserDecryptRequest(domain, publicKey, contracts, startTimestamp, durationDays), nil
}

// UserDecrypt asks the relayer for the values behind req's handles and opens
// the re-encrypted results with kp.
func (r *RelayerClient) UserDecrypt(ctx context.Context, req *model.UserDecryptRequest, kp *model.Keypair) (map[model.Handle]common.Address, error) {
	if _, err := r.Config(); err != nil {
		return nil, err
	}

	var res model.UserDecryptResponse
	if err := r.c.do(ctx, http.MethodPost, "/relayer/user-decrypt", req, &res); err != nil {
		return nil, err
	}

	out := make(map[model.Handle]common.Address, len(req.Pairs))
	for _, p := range req.Pairs {
		v, ok := res.Results[p.Handle.Hex()]
		if !ok {
			return nil, &fault.DecodeError{What: fmt.Sprintf("user decrypt result for %s", p.Handle.Hex()), Err: errors.New("missing")}
		}
		addr, err := relayer.OpenReencrypted(kp, p.Handle, v)
		if err != nil {
			return nil, &fault.DecodeError{What: fmt.Sprintf("user decrypt result for %s", p.Handle.Hex()), Err: err}
		}
		out[p.Handle] = addr
	}
	return out, nil
}

func (r *RelayerClient) CreateEncryptedInput(contract, user common.Address) relayer.InputBuilder {
	return &remoteInput{
		r:   r,
		req: model.EncryptInputRequest{ContractAddress: contract, UserAddress: user},
	}
}

type remoteInput struct {
	r   *RelayerClient
	req model.EncryptInputRequest
}

func (in *remoteInput) AddAddress(a common.Address) relayer.InputBuilder {
	in.req.Values = append(in.req.Values, a)
	return in
}

func (in *remoteInput) Encrypt(ctx context.Context) (*model.EncryptedInput, error) {
	if _, err := in.r.Config(); err != nil {
		return nil, err
	}
	var out model.EncryptedInput
	if err := in.r.c.do(ctx, http.MethodPost, "/relayer/inputs", &in.req, &out); err != nil {
		return nil, err
	}
	if len(out.Handles) != len(in.req.Values) {
		return nil, &fault.DecodeError{What: "encrypted input", Err: fmt.Errorf("got %d handles for %d values", len(out.Handles), len(in.req.Values))}
	}
	return &out, nil
}
