package models

import "time"

// Outbound event names pushed over the realtime transport. These are a
// stable contract with the web client.
const (
	EventPresenceChanged     = "presence_changed"
	EventMessageReceived     = "message_received"
	EventTypingStatus        = "typing_status"
	EventMessageStatusUpdate = "message_status_update"
	EventChatListRefresh     = "chat_list_refresh"
	EventNotification        = "notification"
)

// Inbound frame types read off a client connection.
const (
	FrameJoinChat  = "join_chat"
	FrameLeaveChat = "leave_chat"
	FrameTyping    = "typing"
	FrameHeartbeat = "heartbeat"
)

// ClientFrame is what a connected client sends us.
type ClientFrame struct {
	Type     string `json:"type"`
	UserID   string `json:"user_id,omitempty"`
	IsTyping bool   `json:"is_typing,omitempty"`
}

// ServerEvent is the envelope for everything pushed to clients.
type ServerEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type PresenceChangedPayload struct {
	UserID   string     `json:"user_id"`
	IsOnline bool       `json:"is_online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

type TypingStatusPayload struct {
	FromUserID string `json:"from_user_id"`
	IsTyping   bool   `json:"is_typing"`
}

type MessageStatusPayload struct {
	MessageID  string `json:"message_id,omitempty"`
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	IsRead     bool   `json:"is_read"`
}
