package memory

import (
	"context"
	"math"
	"testing"
	"time"

	"phantom_link/internal/model"

	"github.com/ethereum/go-ethereum/common"
)

func TestInboxAppendIndexes(t *testing.T) {
	ctx := context.Background()
	r := NewInboxRepo()
	owner := common.HexToAddress("0x01")

	for i := 0; i < 3; i++ {
		idx, err := r.Append(ctx, &model.StoredMessage{Owner: owner, Ciphertext: "x"})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		if idx != uint64(i) {
			t.Errorf("Append() index = %d, want %d", idx, i)
		}
	}

	n, _ := r.Count(ctx, owner)
	if n != 3 {
		t.Errorf("Count() = %d, want 3", n)
	}
	msg, _ := r.Get(ctx, owner, 2)
	if msg == nil || msg.Index != 2 {
		t.Errorf("Get(2) = %+v", msg)
	}
	if msg, _ := r.Get(ctx, owner, 3); msg != nil {
		t.Errorf("Get(3) = %+v, want nil", msg)
	}
	if msg, _ := r.Get(ctx, owner, math.MaxUint64); msg != nil {
		t.Errorf("Get(MaxUint64) = %+v, want nil", msg)
	}
}

func TestInboxNonces(t *testing.T) {
	ctx := context.Background()
	r := NewInboxRepo()
	from := common.HexToAddress("0x02")

	if ok, _ := r.UseNonce(ctx, from, 7); !ok {
		t.Fatalf("first use rejected")
	}
	if ok, _ := r.UseNonce(ctx, from, 7); ok {
		t.Fatalf("replayed nonce accepted")
	}
	if ok, _ := r.UseNonce(ctx, common.HexToAddress("0x03"), 7); !ok {
		t.Fatalf("nonce of another sender rejected")
	}
}

func TestInboxSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewInboxRepo()

	ch, err := r.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	ev := &model.InboxEvent{Owner: common.HexToAddress("0x04"), Index: 1}
	if err := r.Publish(ctx, ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-ch:
		if got.Index != 1 {
			t.Errorf("event index = %d", got.Index)
		}
	case <-time.After(time.Second):
		t.Fatalf("no event delivered")
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Errorf("channel still open after cancel")
		}
	case <-time.After(time.Second):
		t.Fatalf("channel not closed after cancel")
	}
}

func TestHandleACL(t *testing.T) {
	ctx := context.Background()
	r := NewHandleRepo()
	h := model.Handle{1}
	who := common.HexToAddress("0x05")

	if ok, _ := r.Allow(ctx, h, who); ok {
		t.Fatalf("Allow on unknown handle reported success")
	}
	if err := r.Create(ctx, &model.SealedValue{Handle: h.Hex()}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ok, _ := r.IsAllowed(ctx, h, who); ok {
		t.Fatalf("fresh handle already allows %s", who.Hex())
	}
	if ok, _ := r.Allow(ctx, h, who); !ok {
		t.Fatalf("Allow failed")
	}
	r.Allow(ctx, h, who)
	if ok, _ := r.IsAllowed(ctx, h, who); !ok {
		t.Fatalf("IsAllowed false after Allow")
	}
	v, _ := r.GetByHandle(ctx, h)
	if len(v.ACL) != 1 {
		t.Errorf("ACL = %v, want one entry", v.ACL)
	}
}
