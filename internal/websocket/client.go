package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Fozu7916/AlekseyBook-sub000/internal/models"
	"github.com/Fozu7916/AlekseyBook-sub000/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
	maxFrame   = 64 * 1024
)

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	connID string
	userID string
}

func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c.connID)
		c.hub.coordinator.Disconnect(context.Background(), c.connID)
		c.conn.Close()
	}()

	// Set read deadline and pong handler for connection health
	c.conn.SetReadLimit(maxFrame)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.hub.coordinator.Touch(c.userID)
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket error on %s: %v", c.connID, err)
			}
			return
		}

		var frame models.ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			logger.Debug("Bad frame from %s: %v", c.connID, err)
			continue
		}

		c.dispatch(frame)
	}
}

func (c *Client) dispatch(frame models.ClientFrame) {
	switch frame.Type {
	case models.FrameJoinChat:
		c.hub.coordinator.JoinConversation(c.connID, frame.UserID)
	case models.FrameLeaveChat:
		c.hub.coordinator.LeaveConversation(c.connID, frame.UserID)
	case models.FrameTyping:
		c.hub.coordinator.RelayTyping(c.connID, frame.UserID, frame.IsTyping)
	case models.FrameHeartbeat:
		c.hub.coordinator.Touch(c.userID)
	default:
		logger.Debug("Unknown frame type %q from %s", frame.Type, c.connID)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Error("Write error on %s: %v", c.connID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
