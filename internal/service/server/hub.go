package server

import (
	"sync"
	"time"

	"phantom_link/internal/model"
	"phantom_link/internal/utils/log"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 5 * time.Second

// Hub tracks websocket subscribers per inbox owner. Only Run writes to the
// connections.
type Hub struct {
	mu     sync.Mutex
	mapper map[common.Address]map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{
		mapper: make(map[common.Address]map[*websocket.Conn]struct{}),
	}
}

func (h *Hub) Register(owner common.Address, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.mapper[owner]
	if !ok {
		conns = make(map[*websocket.Conn]struct{})
		h.mapper[owner] = conns
	}
	conns[conn] = struct{}{}
	log.Debug("websocket registered", zap.String("owner", owner.Hex()), zap.Int("conns", len(conns)))
}

func (h *Hub) unregister(owner common.Address, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.mapper[owner]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.mapper, owner)
		}
	}
	conn.Close()
}

// readLoop drains client frames so close frames are noticed.
func (h *Hub) readLoop(owner common.Address, conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			log.Debug("websocket closed", zap.String("owner", owner.Hex()), zap.Error(err))
			h.unregister(owner, conn)
			return
		}
	}
}

// Run forwards events to the owner's connections until events is closed.
func (h *Hub) Run(events <-chan *model.InboxEvent) {
	for ev := range events {
		h.mu.Lock()
		conns := make([]*websocket.Conn, 0, len(h.mapper[ev.Owner]))
		for c := range h.mapper[ev.Owner] {
			conns = append(conns, c)
		}
		h.mu.Unlock()

		for _, c := range conns {
			c.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WriteJSON(ev); err != nil {
				log.Error("forward inbox event failed", zap.String("owner", ev.Owner.Hex()), zap.Error(err))
				h.unregister(ev.Owner, c)
			}
		}
	}
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for owner, conns := range h.mapper {
		for c := range conns {
			c.Close()
		}
		delete(h.mapper, owner)
	}
}

func (h *Hub) Subscribers(owner common.Address) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.mapper[owner])
}
