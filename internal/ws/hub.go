// Package ws provides a lightweight WebSocket pub/sub hub.
// Components publish typed events through the hub, and every connected
// client receives them in real time. New clients get a snapshot event on
// connect so they see the daemon state without waiting for the next
// heartbeat, and ping/pong keepalives clean up stale connections.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 3 * time.Second
	pingInterval = 20 * time.Second
	pongWait     = 60 * time.Second
)

// Hub manages WebSocket client connections and fans out published events
// to all of them. It is safe for concurrent use; register, unregister, and
// broadcast all go through channels.
type Hub struct {
	clients    map[*websocket.Conn]struct{}
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte
	upgrader   websocket.Upgrader

	count atomic.Int32

	// hello, when set, produces the snapshot event sent to each client on
	// connect. Set before Run starts.
	hello func() any
}

// NewHub allocates a hub with buffered channels.
// Call Run in a goroutine to start the event loop.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]struct{}),
		register:   make(chan *websocket.Conn, 16),
		unregister: make(chan *websocket.Conn, 16),
		broadcast:  make(chan []byte, 256),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// SetHello registers the snapshot producer invoked for each new client.
func (h *Hub) SetHello(fn func() any) {
	h.hello = fn
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// Run processes registrations, unregistrations, broadcasts, and keepalive
// pings in a single select loop. It closes all clients when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				_ = c.Close()
			}
			h.count.Store(0)
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.count.Store(int32(len(h.clients)))
			h.greet(c)

		case c := <-h.unregister:
			h.drop(c)

		case msg := <-h.broadcast:
			for c := range h.clients {
				if !h.write(c, websocket.TextMessage, msg) {
					h.drop(c)
				}
			}

		case <-ping.C:
			for c := range h.clients {
				if !h.write(c, websocket.PingMessage, nil) {
					h.drop(c)
				}
			}
		}
	}
}

// greet sends the hello snapshot to a freshly registered client. A failed
// greeting is not fatal; the read loop will notice a dead connection.
func (h *Hub) greet(c *websocket.Conn) {
	if h.hello == nil {
		return
	}
	b, err := json.Marshal(h.hello())
	if err != nil {
		return
	}
	_ = h.write(c, websocket.TextMessage, b)
}

func (h *Hub) write(c *websocket.Conn, messageType int, msg []byte) bool {
	_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.WriteMessage(messageType, msg) == nil
}

func (h *Hub) drop(c *websocket.Conn) {
	delete(h.clients, c)
	h.count.Store(int32(len(h.clients)))
	_ = c.Close()
}

// Handler returns an http.Handler that upgrades incoming requests to
// WebSocket connections and registers them with the hub.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, "websocket upgrade failed", http.StatusBadRequest)
			return
		}
		h.register <- conn

		go func() {
			defer func() { h.unregister <- conn }()
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
			conn.SetPongHandler(func(string) error {
				_ = conn.SetReadDeadline(time.Now().Add(pongWait))
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

// Publish marshals v to JSON and queues it for delivery to all connected
// clients. If the broadcast channel is full the message is silently dropped
// to avoid blocking the caller.
func (h *Hub) Publish(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- b:
	default:
	}
}
