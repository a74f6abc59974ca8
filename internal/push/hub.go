// Package push fans job list updates out to connected websocket clients.
package push

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/isuru709/TorrentFlow-x365/internal/domain"
)

const writeTimeout = 5 * time.Second

// Update is the single message shape pushed to clients.
type Update struct {
	Type string             `json:"type"`
	Jobs []domain.JobRecord `json:"jobs"`
}

// Hub tracks connected push clients. Broadcasts come from the monitor loop
// only, so writes to any one connection never race.
type Hub struct {
	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	logger *logrus.Logger
}

func NewHub(logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.New()
	}
	return &Hub{
		conns:  make(map[*websocket.Conn]struct{}),
		logger: logger,
	}
}

// Register adds a client and starts draining its inbound messages, which are
// used only as a liveness signal. The connection is dropped on read error.
func (h *Hub) Register(conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	total := len(h.conns)
	h.mu.Unlock()
	h.logger.Infof("push client connected, total %d", total)

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.drop(conn)
				return
			}
		}
	}()
}

// Broadcast sends the job list to every client once. Clients whose send fails
// are pruned; there are no retries and no backpressure.
func (h *Hub) Broadcast(jobs []domain.JobRecord) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	msg := Update{Type: "update", Jobs: jobs}
	var failed []*websocket.Conn
	for _, conn := range conns {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			failed = append(failed, conn)
		}
	}
	for _, conn := range failed {
		h.drop(conn)
	}
}

// ClientCount reports how many push clients are connected.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.conns[conn]
	delete(h.conns, conn)
	total := len(h.conns)
	h.mu.Unlock()

	_ = conn.Close()
	if ok {
		h.logger.Infof("push client disconnected, remaining %d", total)
	}
}
