package inbox

import (
	"context"
	"math"
	"testing"

	"phantom_link/internal/model"
	redisSvc "phantom_link/internal/service/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

func newTestRepo(t *testing.T) *InboxRepo {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewInboxRepo(redisSvc.NewRedis(rdb))
}

func TestGetIndexBounds(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	owner := common.HexToAddress("0x0000000000000000000000000000000000000abc")

	for _, ct := range []string{"Zmlyc3Q=", "bGFzdA=="} {
		if _, err := r.Append(ctx, &model.StoredMessage{Owner: owner, Ciphertext: ct}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	tests := []struct {
		name  string
		index uint64
		want  string
	}{
		{"first", 0, "Zmlyc3Q="},
		{"last", 1, "bGFzdA=="},
		{"past end", 2, ""},
		{"max int64", math.MaxInt64, ""},
		{"wraps negative", math.MaxInt64 + 1, ""},
		{"max uint64", math.MaxUint64, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := r.Get(ctx, owner, tt.index)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if tt.want == "" {
				if msg != nil {
					t.Errorf("Get(%d) = %+v, want nil", tt.index, msg)
				}
				return
			}
			if msg == nil || msg.Ciphertext != tt.want || msg.Index != tt.index {
				t.Errorf("Get(%d) = %+v, want ciphertext %s", tt.index, msg, tt.want)
			}
		})
	}

	if n, _ := r.Count(ctx, owner); n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}
}

func TestUseNonce(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	from := common.HexToAddress("0x01")

	ok, err := r.UseNonce(ctx, from, 7)
	if err != nil || !ok {
		t.Fatalf("first UseNonce() = %v, %v", ok, err)
	}
	if ok, _ := r.UseNonce(ctx, from, 7); ok {
		t.Errorf("nonce accepted twice")
	}
	if ok, _ := r.UseNonce(ctx, from, 8); !ok {
		t.Errorf("fresh nonce refused")
	}
}
