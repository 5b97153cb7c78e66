package relayer

import (
	"context"

	"phantom_link/internal/model"

	"github.com/ethereum/go-ethereum/common"
)

// InputBuilder collects clear values bound to one (contract, user) pair and
// turns them into handles plus an input proof.
type InputBuilder interface {
	AddAddress(a common.Address) InputBuilder
	Encrypt(ctx context.Context) (*model.EncryptedInput, error)
}

type localInput struct {
	r   *Relayer
	req model.EncryptInputRequest
}

// CreateEncryptedInput starts an in-process input for contract and user.
func (r *Relayer) CreateEncryptedInput(contract, user common.Address) InputBuilder {
	return &localInput{
		r:   r,
		req: model.EncryptInputRequest{ContractAddress: contract, UserAddress: user},
	}
}

func (in *localInput) AddAddress(a common.Address) InputBuilder {
	in.req.Values = append(in.req.Values, a)
	return in
}

func (in *localInput) Encrypt(ctx context.Context) (*model.EncryptedInput, error) {
	return in.r.EncryptInput(ctx, &in.req)
}
