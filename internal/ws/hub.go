// Package ws provides a lightweight WebSocket pub/sub hub.
// Components broadcast JSON events through the hub, and every connected client
// receives them in real time. Retained events are replayed to clients as they
// connect, so a fresh dashboard shows the current map, table and telemetry
// without waiting for the next refresh. The hub also handles ping/pong
// keepalives so stale connections get cleaned up automatically.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Hub manages WebSocket client connections and fans out broadcast messages
// to all of them. It is safe for concurrent use; register, unregister, and
// broadcast all go through channels.
type Hub struct {
	clients    map[*websocket.Conn]struct{}
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte
	upgrader   websocket.Upgrader

	// Replay order is first-retained so it is deterministic.
	retainedMu   sync.Mutex
	retainedKeys []string
	retainedMsgs map[string][]byte
}

// NewHub allocates a hub with buffered channels.
// Call Run in a goroutine to start the event loop.
func NewHub() *Hub {
	return &Hub{
		clients:      make(map[*websocket.Conn]struct{}),
		register:     make(chan *websocket.Conn, 16),
		unregister:   make(chan *websocket.Conn, 16),
		broadcast:    make(chan []byte, 256),
		retainedMsgs: make(map[string][]byte),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Run processes registrations, unregistrations, broadcasts, and keepalive
// pings in a single select loop. It closes all clients when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	ping := time.NewTicker(20 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				_ = c.Close()
			}
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			for _, msg := range h.Retained() {
				if !h.write(c, websocket.TextMessage, msg, 3*time.Second) {
					break
				}
			}

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				_ = c.Close()
			}

		case msg := <-h.broadcast:
			h.fanOut(msg)

		case <-ping.C:
			for c := range h.clients {
				h.write(c, websocket.PingMessage, nil, 2*time.Second)
			}
		}
	}
}

func (h *Hub) fanOut(msg []byte) {
	for c := range h.clients {
		h.write(c, websocket.TextMessage, msg, 3*time.Second)
	}
}

// write sends one frame and drops the client on failure.
func (h *Hub) write(c *websocket.Conn, kind int, msg []byte, timeout time.Duration) bool {
	_ = c.SetWriteDeadline(time.Now().Add(timeout))
	if err := c.WriteMessage(kind, msg); err != nil {
		delete(h.clients, c)
		_ = c.Close()
		return false
	}
	return true
}

// Handler returns an http.Handler that upgrades incoming requests to
// WebSocket connections and registers them with the hub.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the error response.
			return
		}
		h.register <- conn

		go func() {
			defer func() { h.unregister <- conn }()
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			conn.SetPongHandler(func(string) error {
				_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
				return nil
			})

			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})
}

// BroadcastJSON marshals v to JSON and queues it for delivery to all
// connected clients. If the broadcast channel is full the message is
// silently dropped to avoid blocking the caller.
func (h *Hub) BroadcastJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- b:
	default:
	}
}

// RetainJSON broadcasts v and keeps it as the latest event under key. Newly
// connected clients receive every retained event on connect.
func (h *Hub) RetainJSON(key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}

	h.retainedMu.Lock()
	if _, seen := h.retainedMsgs[key]; !seen {
		h.retainedKeys = append(h.retainedKeys, key)
	}
	h.retainedMsgs[key] = b
	h.retainedMu.Unlock()

	select {
	case h.broadcast <- b:
	default:
	}
}

// Retained returns the retained events in first-retained order.
func (h *Hub) Retained() [][]byte {
	h.retainedMu.Lock()
	defer h.retainedMu.Unlock()
	out := make([][]byte, 0, len(h.retainedKeys))
	for _, k := range h.retainedKeys {
		out = append(out, h.retainedMsgs[k])
	}
	return out
}
