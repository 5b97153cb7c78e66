// Package memory holds process-local stand-ins for the Redis inbox and the
// Mongo handle store, for running a devnode without either.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"phantom_link/internal/model"

	"github.com/ethereum/go-ethereum/common"
)

type (
	HandleRepo struct {
		mu     sync.RWMutex
		values map[model.Handle]*model.SealedValue
	}

	InboxRepo struct {
		mu     sync.RWMutex
		inbox  map[common.Address][]model.StoredMessage
		nonces map[string]struct{}
		block  uint64
		subs   map[chan *model.InboxEvent]struct{}
	}
)

func NewHandleRepo() *HandleRepo {
	return &HandleRepo{values: make(map[model.Handle]*model.SealedValue)}
}

func (r *HandleRepo) Create(_ context.Context, v *model.SealedValue) error {
	h, err := model.HandleFromHex(v.Handle)
	if err != nil {
		return err
	}
	cp := *v
	cp.ACL = append([]string{}, v.ACL...)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[h] = &cp
	return nil
}

func (r *HandleRepo) GetByHandle(_ context.Context, h model.Handle) (*model.SealedValue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[h]
	if !ok {
		return nil, nil
	}
	cp := *v
	cp.ACL = append([]string{}, v.ACL...)
	return &cp, nil
}

func (r *HandleRepo) Allow(_ context.Context, h model.Handle, grantee common.Address) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[h]
	if !ok {
		return false, nil
	}
	entry := strings.ToLower(grantee.Hex())
	for _, a := range v.ACL {
		if a == entry {
			return true, nil
		}
	}
	v.ACL = append(v.ACL, entry)
	return true, nil
}

func (r *HandleRepo) IsAllowed(_ context.Context, h model.Handle, who common.Address) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[h]
	if !ok {
		return false, nil
	}
	entry := strings.ToLower(who.Hex())
	for _, a := range v.ACL {
		if a == entry {
			return true, nil
		}
	}
	return false, nil
}

func NewInboxRepo() *InboxRepo {
	return &InboxRepo{
		inbox:  make(map[common.Address][]model.StoredMessage),
		nonces: make(map[string]struct{}),
		subs:   make(map[chan *model.InboxEvent]struct{}),
	}
}

func (r *InboxRepo) Append(_ context.Context, msg *model.StoredMessage) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := uint64(len(r.inbox[msg.Owner]))
	cp := *msg
	cp.Index = idx
	r.inbox[msg.Owner] = append(r.inbox[msg.Owner], cp)
	return idx, nil
}

func (r *InboxRepo) Count(_ context.Context, owner common.Address) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return uint64(len(r.inbox[owner])), nil
}

func (r *InboxRepo) Get(_ context.Context, owner common.Address, index uint64) (*model.StoredMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	msgs := r.inbox[owner]
	if index >= uint64(len(msgs)) {
		return nil, nil
	}
	cp := msgs[index]
	return &cp, nil
}

func (r *InboxRepo) NextBlock(context.Context) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.block++
	return r.block, nil
}

func (r *InboxRepo) UseNonce(_ context.Context, from common.Address, nonce uint64) (bool, error) {
	key := fmt.Sprintf("%s:%d", from.Hex(), nonce)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.nonces[key]; ok {
		return false, nil
	}
	r.nonces[key] = struct{}{}
	return true, nil
}

// Publish never blocks: a subscriber that is not keeping up misses the event.
func (r *InboxRepo) Publish(_ context.Context, ev *model.InboxEvent) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for ch := range r.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

func (r *InboxRepo) Subscribe(ctx context.Context) (<-chan *model.InboxEvent, error) {
	ch := make(chan *model.InboxEvent, 16)
	r.mu.Lock()
	r.subs[ch] = struct{}{}
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		delete(r.subs, ch)
		close(ch)
		r.mu.Unlock()
	}()
	return ch, nil
}
