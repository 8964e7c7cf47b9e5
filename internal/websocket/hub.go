package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Fozu7916/AlekseyBook-sub000/internal/chat"
	"github.com/Fozu7916/AlekseyBook-sub000/internal/models"
	"github.com/Fozu7916/AlekseyBook-sub000/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Hub owns every live websocket client and implements chat.Transport on
// top of them. Connection IDs are minted here and live exactly as long
// as the socket.
type Hub struct {
	coordinator *chat.SessionCoordinator

	mu      sync.Mutex
	clients map[string]*Client
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

// SetCoordinator wires the session coordinator in after construction;
// the coordinator's fan-out needs the hub as its transport first.
func (h *Hub) SetCoordinator(c *chat.SessionCoordinator) {
	h.coordinator = c
}

// HandleConnection runs the full lifecycle of one socket: register,
// pump, and tear down. It blocks until the connection is closed.
func (h *Hub) HandleConnection(conn *websocket.Conn, userID string) {
	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, 256),
		connID: uuid.NewString(),
		userID: userID,
	}

	h.mu.Lock()
	h.clients[client.connID] = client
	h.mu.Unlock()

	if err := h.coordinator.Connect(context.Background(), userID, client.connID); err != nil {
		h.remove(client.connID)
		logger.Error("Rejecting connection for user %q: %v", userID, err)
		conn.Close()
		return
	}

	go client.writePump()
	client.readPump()
}

// Send implements chat.Transport. Unknown connections and full client
// buffers surface as errors for the fan-out layer to log and drop.
func (h *Hub) Send(connID, event string, payload interface{}) error {
	h.mu.Lock()
	client, ok := h.clients[connID]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown connection %s", connID)
	}

	data, err := json.Marshal(models.ServerEvent{Type: event, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}

	select {
	case client.send <- data:
		return nil
	default:
		return fmt.Errorf("send buffer full for connection %s", connID)
	}
}

func (h *Hub) remove(connID string) {
	h.mu.Lock()
	delete(h.clients, connID)
	h.mu.Unlock()
}
