// Package stream pushes account updates to connected websocket clients.
// Every committed import, reset, advance, or breach is broadcast as a JSON
// message so dashboards refresh without polling.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

// Message is one broadcast frame.
type Message struct {
	Kind      string `json:"kind"` // "account_updated", "ping"
	AccountID string `json:"account_id,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// Hub fans broadcast messages out to registered connections. Run owns the
// client set; the channels serialize all access to it.
type Hub struct {
	logger     *zap.Logger
	upgrader   websocket.Upgrader
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan Message
	done       chan struct{} // closed when Run tears down

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewHub creates a hub. origin limits websocket upgrades to that Origin
// header; "*" allows any.
func NewHub(logger *zap.Logger, origin string) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return origin == "*" || r.Header.Get("Origin") == origin
			},
		},
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan Message, 16),
		done:       make(chan struct{}),
		clients:    make(map[*websocket.Conn]bool),
	}
}

// Run processes register, unregister, and broadcast events until ctx is
// done, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("websocket client connected", zap.Int("online", n))

		case conn := <-h.unregister:
			h.mu.Lock()
			if h.clients[conn] {
				delete(h.clients, conn)
				conn.Close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("websocket client disconnected", zap.Int("online", n))

		case msg := <-h.broadcast:
			h.send(msg)

		case <-ping.C:
			h.send(Message{Kind: "ping"})
		}
	}
}

func (h *Hub) send(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn("marshaling broadcast", zap.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// Broadcast queues a message for every connected client. It never blocks;
// the frame is dropped when the hub is saturated.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("broadcast queue full, dropping", zap.String("kind", msg.Kind))
	}
}

// AccountUpdated broadcasts that an account's metrics changed.
func (h *Hub) AccountUpdated(accountID string, payload any) {
	h.Broadcast(Message{Kind: "account_updated", AccountID: accountID, Payload: payload})
}

// Handler upgrades the request and registers the connection. The read loop
// only watches for the client closing.
func (h *Hub) Handler(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	// An upgrade can race hub shutdown; never block on a loop that has quit.
	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
		return
	}

	go func() {
		defer func() {
			select {
			case h.unregister <- conn:
			case <-h.done:
			}
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
