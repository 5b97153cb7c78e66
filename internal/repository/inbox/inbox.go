package inbox

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"phantom_link/internal/model"
	redisSvc "phantom_link/internal/service/redis"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

const (
	blockKey   = "phantomlink:block"
	EventTopic = "phantomlink:inbox"
)

// InboxRepo keeps each owner's messages in a Redis list. A message is one
// list element, so ciphertext and key handle land together or not at all.
type (
	InboxRepo struct {
		redis *redisSvc.RedisService
	}
)

func NewInboxRepo(redis *redisSvc.RedisService) *InboxRepo {
	return &InboxRepo{
		redis: redis,
	}
}

func inboxKey(owner common.Address) string {
	return fmt.Sprintf("inbox:%s", strings.ToLower(owner.Hex()))
}

func nonceKey(from common.Address, nonce uint64) string {
	return fmt.Sprintf("nonce:%s:%d", strings.ToLower(from.Hex()), nonce)
}

// Append stores msg and returns its index in the owner's inbox.
func (r *InboxRepo) Append(ctx context.Context, msg *model.StoredMessage) (uint64, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return 0, err
	}
	n, err := r.redis.RPush(ctx, inboxKey(msg.Owner), data)
	if err != nil {
		return 0, err
	}
	return uint64(n - 1), nil
}

func (r *InboxRepo) Count(ctx context.Context, owner common.Address) (uint64, error) {
	n, err := r.redis.LLen(ctx, inboxKey(owner))
	if err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// Get returns nil when index is past the end of the inbox. LINDEX counts
// negative indexes from the tail, so anything past MaxInt64 is out of range.
func (r *InboxRepo) Get(ctx context.Context, owner common.Address, index uint64) (*model.StoredMessage, error) {
	if index > math.MaxInt64 {
		return nil, nil
	}
	v, err := r.redis.LIndex(ctx, inboxKey(owner), int64(index))
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var msg model.StoredMessage
	if err := json.Unmarshal([]byte(v), &msg); err != nil {
		return nil, err
	}
	msg.Index = index
	return &msg, nil
}

// NextBlock hands out monotonically increasing block numbers for receipts.
func (r *InboxRepo) NextBlock(ctx context.Context) (uint64, error) {
	n, err := r.redis.Incr(ctx, blockKey)
	if err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// UseNonce reports false if from already used nonce within the replay window.
func (r *InboxRepo) UseNonce(ctx context.Context, from common.Address, nonce uint64) (bool, error) {
	return r.redis.SetNX(ctx, nonceKey(from, nonce), time.Now().Unix(), 24*time.Hour)
}

func (r *InboxRepo) Publish(ctx context.Context, ev *model.InboxEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return r.redis.Publish(ctx, EventTopic, data)
}

// Subscribe streams inbox events until ctx is done.
func (r *InboxRepo) Subscribe(ctx context.Context) (<-chan *model.InboxEvent, error) {
	sub := r.redis.Subscribe(ctx, EventTopic)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, err
	}

	out := make(chan *model.InboxEvent)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				var ev model.InboxEvent
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- &ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
