package api

import (
	"context"
	"net/url"

	"phantom_link/internal/fault"
	"phantom_link/internal/model"
	"phantom_link/internal/utils/log"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Watch streams new-message events for owner until ctx is done or the
// devnode drops the connection. The channel is closed in both cases.
func (c *Client) Watch(ctx context.Context, owner common.Address) (<-chan *model.InboxEvent, error) {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = u.Path + "/ws"
	u.RawQuery = url.Values{"owner": []string{owner.Hex()}}.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fault.Unavailable(service, err)
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	out := make(chan *model.InboxEvent)
	go func() {
		defer close(out)
		defer close(done)
		defer conn.Close()
		for {
			var ev model.InboxEvent
			if err := conn.ReadJSON(&ev); err != nil {
				if ctx.Err() == nil {
					log.Debug("inbox feed closed", zap.Error(err))
				}
				return
			}
			select {
			case out <- &ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
