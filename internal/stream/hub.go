// Package stream broadcasts solver round updates to websocket subscribers.
//
// The solver feeds a Publisher through its round observer hook; the Hub
// fans every update out to all connected clients. Subscribers that cannot
// keep up are disconnected rather than allowed to stall a run.
package stream

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// RoundUpdate is the wire message sent to subscribers, one per committed
// round. Round 0 carries the post-shock state and the bank order; the last
// message of a run has Final set and carries the terminal status.
type RoundUpdate struct {
	RunID    string    `json:"run_id"`
	Round    int       `json:"round"`
	Banks    []string  `json:"banks,omitempty"`
	Equities []float64 `json:"equities"`
	Final    bool      `json:"final,omitempty"`
	Status   string    `json:"status,omitempty"`
}

// HubConfig configures subscriber connection behavior.
type HubConfig struct {
	// WriteTimeout is the per-message write deadline.
	WriteTimeout time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// SendBuffer is the per-subscriber message buffer; a subscriber whose
	// buffer overflows is dropped.
	SendBuffer int
}

// DefaultHubConfig returns default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
		SendBuffer:   64,
	}
}

// Hub fans round updates out to websocket subscribers.
type Hub struct {
	config   HubConfig
	upgrader websocket.Upgrader

	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

type subscriber struct {
	conn *websocket.Conn
	send chan RoundUpdate
	done chan struct{}
}

// NewHub creates a hub.
func NewHub(config *HubConfig) *Hub {
	cfg := DefaultHubConfig()
	if config != nil {
		cfg = *config
	}
	return &Hub{
		config: cfg,
		upgrader: websocket.Upgrader{
			// Subscribers are read-only observers; all origins accepted.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		subs: make(map[*subscriber]struct{}),
	}
}

// ServeHTTP upgrades the request to a websocket subscription and serves it
// until the client disconnects or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	sub := &subscriber{
		conn: conn,
		send: make(chan RoundUpdate, h.config.SendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(sub)
	h.readLoop(sub)
}

// Broadcast delivers an update to every subscriber. Slow subscribers are
// dropped, never waited on: the solver must not block on the network.
func (h *Hub) Broadcast(u RoundUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		select {
		case sub.send <- u:
		default:
			h.dropLocked(sub)
		}
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects all subscribers and rejects future ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for sub := range h.subs {
		h.dropLocked(sub)
	}
}

// dropLocked removes a subscriber. Caller holds h.mu.
func (h *Hub) dropLocked(sub *subscriber) {
	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	close(sub.done)
}

func (h *Hub) writeLoop(sub *subscriber) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()
	defer sub.conn.Close()

	for {
		select {
		case u := <-sub.send:
			sub.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := sub.conn.WriteJSON(u); err != nil {
				h.remove(sub)
				return
			}
		case <-ticker.C:
			sub.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(sub)
				return
			}
		case <-sub.done:
			sub.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			sub.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// readLoop discards inbound messages and returns when the peer goes away.
func (h *Hub) readLoop(sub *subscriber) {
	defer h.remove(sub)
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(sub)
}
