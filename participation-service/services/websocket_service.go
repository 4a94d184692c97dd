package services

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"transparencia-backend/shared/logger"
)

// Event types pushed to connected administrators
const (
	EventConnection     = "connection"
	EventPong           = "pong"
	EventMessageCreated = "message.created"
	EventMessageUpdated = "message.updated"
	EventMessageDeleted = "message.deleted"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxInboundSize = 4096
	clientBuffer   = 32
)

// Event is one websocket frame
type Event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewEvent(eventType string, data interface{}) Event {
	return Event{Type: eventType, Data: data, Timestamp: time.Now().UTC()}
}

// wsClient is one administrator connection. Only writePump writes to conn.
type wsClient struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan Event
}

// Hub fans inbox events out to every connected administrator
type Hub struct {
	clients    map[string]*wsClient
	mutex      sync.RWMutex
	upgrader   websocket.Upgrader
	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan Event
}

// NewHub accepts handshakes from allowedOrigins. Requests without an Origin
// header are accepted.
func NewHub(allowedOrigins ...string) *Hub {
	return &Hub{
		clients: make(map[string]*wsClient),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, allowed := range allowedOrigins {
					if sameOrigin(origin, allowed) {
						return true
					}
				}
				logger.L().Warn("websocket connection rejected", "origin", origin)
				return false
			},
		},
		register:   make(chan *wsClient, 100),
		unregister: make(chan *wsClient, 100),
		broadcast:  make(chan Event, 1000),
	}
}

// Run handles the hub event loop until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client.id] = client
			total := len(h.clients)
			h.mutex.Unlock()
			logger.L().Info("websocket client connected", "user_id", client.userID, "total", total)
			h.deliver(client, NewEvent(EventConnection, map[string]string{"message": "WebSocket connection established"}))

		case client := <-h.unregister:
			h.remove(client)

		case event := <-h.broadcast:
			h.mutex.RLock()
			for _, client := range h.clients {
				h.deliver(client, event)
			}
			h.mutex.RUnlock()
		}
	}
}

// Broadcast queues event for every client without blocking
func (h *Hub) Broadcast(event Event) {
	select {
	case h.broadcast <- event:
	default:
		logger.L().Warn("broadcast queue full, dropping event", "type", event.Type)
	}
}

// Count returns the number of open connections
func (h *Hub) Count() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Serve upgrades the request and blocks until the connection closes
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := &wsClient{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		send:   make(chan Event, clientBuffer),
	}
	h.register <- client

	go h.writePump(client)
	h.readPump(client)
	return nil
}

// deliver drops slow clients instead of blocking the hub
func (h *Hub) deliver(client *wsClient, event Event) {
	select {
	case client.send <- event:
	default:
		go func() { h.unregister <- client }()
	}
}

func (h *Hub) remove(client *wsClient) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.clients[client.id]; ok {
		delete(h.clients, client.id)
		close(client.send)
		logger.L().Info("websocket client disconnected", "user_id", client.userID, "total", len(h.clients))
	}
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for id, client := range h.clients {
		delete(h.clients, id)
		close(client.send)
	}
}

func (h *Hub) readPump(client *wsClient) {
	defer func() {
		h.unregister <- client
		client.conn.Close()
	}()

	client.conn.SetReadLimit(maxInboundSize)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var message map[string]interface{}
		if err := client.conn.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.L().Warn("websocket read failed", "user_id", client.userID, "error", err)
			}
			return
		}

		if msgType, ok := message["type"].(string); ok && msgType == "ping" {
			h.mutex.RLock()
			if _, open := h.clients[client.id]; open {
				h.deliver(client, NewEvent(EventPong, nil))
			}
			h.mutex.RUnlock()
		}
	}
}

func (h *Hub) writePump(client *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case event, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteJSON(event); err != nil {
				logger.L().Warn("websocket write failed", "user_id", client.userID, "error", err)
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func sameOrigin(origin, allowed string) bool {
	o, err := url.Parse(origin)
	if err != nil {
		return false
	}
	a, err := url.Parse(allowed)
	if err != nil {
		return false
	}
	return strings.EqualFold(o.Scheme, a.Scheme) && strings.EqualFold(o.Host, a.Host)
}
