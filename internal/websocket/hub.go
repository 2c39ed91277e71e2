package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/toilettails/api/internal/model"
)

// Client represents a WebSocket client subscribed to one upload's jobs.
type Client struct {
	UploadID string
	Conn     *websocket.Conn
	Send     chan []byte
}

// Hub pushes job status transitions to subscribers, grouped by upload id.
// The polling endpoint remains the compatibility contract; this is the
// push-based path.
type Hub struct {
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage

	mu sync.RWMutex
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	UploadID string
	Message  []byte
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.UploadID] == nil {
				h.clients[client.UploadID] = make(map[*Client]bool)
			}
			h.clients[client.UploadID][client] = true
			h.mu.Unlock()
			log.Printf("Client registered for upload %s", client.UploadID)

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.UploadID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.clients, client.UploadID)
					}
				}
			}
			h.mu.Unlock()
			log.Printf("Client unregistered from upload %s", client.UploadID)

		case msg := <-h.broadcast:
			h.mu.RLock()
			if clients, ok := h.clients[msg.UploadID]; ok {
				for client := range clients {
					select {
					case client.Send <- msg.Message:
					default:
						close(client.Send)
						delete(clients, client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a new client
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// BroadcastStatus pushes a job status transition to the upload's subscribers.
func (h *Hub) BroadcastStatus(jobID, uploadID string, status model.JobStatus, resultURL, errMsg string) {
	msgType := model.WSMessageTypeStatus
	if status == model.JobStatusFailed {
		msgType = model.WSMessageTypeError
	}

	msg := model.WSStatusMessage{
		Type:      msgType,
		JobID:     jobID,
		UploadID:  uploadID,
		Status:    status,
		ResultURL: resultURL,
		Error:     errMsg,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal status message: %v", err)
		return
	}

	h.broadcast <- &BroadcastMessage{
		UploadID: uploadID,
		Message:  data,
	}
}

// HandleConnection handles a WebSocket connection for one upload.
func (h *Hub) HandleConnection(c *websocket.Conn, uploadID string) {
	client := &Client{
		UploadID: uploadID,
		Conn:     c,
		Send:     make(chan []byte, 256),
	}

	h.Register(client)
	defer h.Unregister(client)

	// Writer goroutine with keep-alive pings.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop; incoming messages are ignored, reading only detects close.
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
	}
}
