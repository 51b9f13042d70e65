package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/SOF3/rule-mirror/pkg/bus"
	"github.com/SOF3/rule-mirror/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // same-origin requests have no Origin header
		}
		for _, prefix := range []string{"http://localhost", "http://127.0.0.1", "https://localhost", "https://127.0.0.1"} {
			if strings.HasPrefix(origin, prefix) {
				return true
			}
		}
		logger.WarnCF("ws", "Rejected WebSocket from disallowed origin", map[string]interface{}{"origin": origin})
		return false
	},
}

// WSEvent is one bus message as shown to websocket observers.
type WSEvent struct {
	Topic     string          `json:"topic"`
	Timestamp string          `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// WSHub fans bus traffic out to connected websocket clients. Observers are
// best-effort: a slow client's backlog is dropped, never buffered unbounded.
type WSHub struct {
	clients map[*websocket.Conn]chan []byte
	mu      sync.Mutex
}

// NewWSHub creates an empty hub.
func NewWSHub() *WSHub {
	return &WSHub{clients: make(map[*websocket.Conn]chan []byte)}
}

// Run broadcasts raw bus events until ctx is cancelled.
func (h *WSHub) Run(ctx context.Context, events <-chan bus.RawEvent) {
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(WSEvent{
				Topic:     event.Topic,
				Timestamp: time.Now().UTC().Format(time.RFC3339),
				Payload:   event.Payload,
			})
			if err != nil {
				continue
			}
			h.mu.Lock()
			for _, send := range h.clients {
				select {
				case send <- data:
				default: // drop for slow clients
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *WSHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, send := range h.clients {
		close(send)
		conn.Close()
		delete(h.clients, conn)
	}
}

func (h *WSHub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnCF("ws", "Upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	send := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[conn] = send
	h.mu.Unlock()
	logger.DebugC("ws", "Client connected")

	go func() {
		defer func() {
			h.mu.Lock()
			if s, ok := h.clients[conn]; ok {
				close(s)
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			conn.Close()
		}()
		for data := range send {
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}()

	// Drain (and discard) client frames so pings are answered and closes
	// are noticed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.mu.Lock()
				if s, ok := h.clients[conn]; ok {
					close(s)
					delete(h.clients, conn)
				}
				h.mu.Unlock()
				return
			}
		}
	}()
}
