// Package ws fans dashboard events out to WebSocket clients. Every client
// receives every event; there are no per-client subscriptions.
package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Message is the envelope every event is wrapped in before broadcast.
type Message struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the dashboard is an open demo surface
	},
}

// Hub maintains the set of active clients and broadcasts events to them.
type Hub struct {
	log        *slog.Logger
	broadcast  chan []byte
	register   chan *client
	unregister chan *client

	// OnConnect, when set, produces the payload sent to a client right
	// after it joins, so a fresh dashboard paints without waiting for the
	// next event.
	OnConnect func() (msgType string, data any)

	mu      sync.RWMutex
	clients map[*client]bool
}

// NewHub creates a hub; call Run in a goroutine to start it.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:        log,
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		clients:    make(map[*client]bool),
	}
}

// Run is the hub's main loop. It exits never; run it once per process.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Info("ws client connected", "clients", n)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Info("ws client disconnected", "clients", n)

		case payload := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- payload:
				default:
					// Slow consumer; drop it rather than block the hub.
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast wraps data in an envelope and queues it for every client.
// A full broadcast queue drops the event with a warning.
func (h *Hub) Broadcast(msgType string, data any) {
	payload, err := json.Marshal(Message{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		h.log.Error("ws marshal broadcast", "type", msgType, "error", err)
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.log.Warn("ws broadcast queue full, dropping", "type", msgType)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and attaches the client to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("ws upgrade failed", "error", err)
		return
	}
	c := &client{hub: h, conn: conn, send: make(chan []byte, 256)}
	h.register <- c

	if h.OnConnect != nil {
		msgType, data := h.OnConnect()
		if payload, err := json.Marshal(Message{Type: msgType, Data: data, Timestamp: time.Now().UTC()}); err == nil {
			select {
			case c.send <- payload:
			default:
			}
		}
	}

	go c.writePump()
	go c.readPump()
}
