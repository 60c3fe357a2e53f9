// internal/websocket/hub.go
package websocket

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for development
		return true
	},
}

// Hub fans retention events out to connected dashboard clients. Funnel
// session events and billing events arrive via BroadcastEvent; a heartbeat
// keeps idle dashboards aware the feed is alive.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	startedAt    time.Time
	messagesSent uint64
	logger       *log.Logger
}

// NewHub creates a hub; Run must be started on its own goroutine
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		startedAt:  time.Now(),
		logger:     logger,
	}
}

// Run is the hub's event loop
func (h *Hub) Run() {
	heartbeat := time.NewTicker(pingPeriod)
	defer heartbeat.Stop()

	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.dropClient(client)
		case message := <-h.broadcast:
			h.fanOut(message)
		case <-heartbeat.C:
			h.sendHeartbeat()
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Printf("Dashboard client connected: %s (total: %d)", client.ID, count)
}

func (h *Hub) dropClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Printf("Dashboard client disconnected: %s (total: %d)", client.ID, count)
}

func (h *Hub) fanOut(message []byte) {
	h.mu.RLock()
	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			// Client buffer full, drop it
			go func(c *Client) {
				h.unregister <- c
			}(client)
		}
	}
	h.mu.RUnlock()

	h.mu.Lock()
	h.messagesSent++
	h.mu.Unlock()
}

func (h *Hub) sendHeartbeat() {
	count := h.ClientCount()
	if count == 0 {
		return
	}

	msg := NewMessage(TypeHeartbeat, "ping", HeartbeatData{
		ServerTime:  time.Now().UTC(),
		ClientCount: count,
	})
	if data, err := msg.ToJSON(); err == nil {
		h.Broadcast(data)
	}
}

// Broadcast queues a raw message for all clients. Never blocks: when the
// queue is full the message is dropped, the feed is advisory.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Println("Event feed queue full, message dropped")
	}
}

// BroadcastMessage serializes and broadcasts a Message
func (h *Hub) BroadcastMessage(msg *Message) error {
	data, err := msg.ToJSON()
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// BroadcastEvent broadcasts a typed event with the current timestamp
func (h *Hub) BroadcastEvent(msgType, event string, data interface{}) error {
	return h.BroadcastMessage(NewMessage(msgType, event, data))
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWs upgrades an HTTP request and attaches the client to the feed
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("WebSocket upgrade error: %v", err)
		return
	}

	clientID := uuid.New().String()[:8]
	client := NewClient(h, conn, clientID)
	h.register <- client

	welcome := NewMessage(TypeHealth, "connected", map[string]interface{}{
		"client_id":   clientID,
		"server_time": time.Now().UTC(),
		"message":     "Connected to Retention Service event feed",
	})
	if data, err := welcome.ToJSON(); err == nil {
		client.send <- data
	}

	go client.WritePump()
	go client.ReadPump()
}

// GetStats reports feed statistics
func (h *Hub) GetStats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := make([]map[string]interface{}, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, map[string]interface{}{
			"id":           client.ID,
			"connected_at": client.ConnectedAt,
		})
	}

	return map[string]interface{}{
		"client_count":  len(h.clients),
		"messages_sent": h.messagesSent,
		"started_at":    h.startedAt,
		"uptime":        time.Since(h.startedAt).String(),
		"clients":       clients,
	}
}
