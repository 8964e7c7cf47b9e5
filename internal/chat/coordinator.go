package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Fozu7916/AlekseyBook-sub000/internal/database"
	"github.com/Fozu7916/AlekseyBook-sub000/internal/models"
	"github.com/Fozu7916/AlekseyBook-sub000/internal/presence"
	"github.com/Fozu7916/AlekseyBook-sub000/pkg/logger"
)

var ErrUnauthenticated = errors.New("connection has no authenticated user")

// SessionCoordinator is the per-connection lifecycle orchestrator. The
// transport layer feeds it connect/disconnect and inbound frames; it
// drives the registry, tracker and fan-out and emits the outbound
// events clients rely on.
type SessionCoordinator struct {
	registry *presence.ConnectionRegistry
	tracker  *presence.PresenceTracker
	fanout   *GroupFanout
	users    database.UserRepository
}

func NewSessionCoordinator(registry *presence.ConnectionRegistry, tracker *presence.PresenceTracker, fanout *GroupFanout, users database.UserRepository) *SessionCoordinator {
	c := &SessionCoordinator{
		registry: registry,
		tracker:  tracker,
		fanout:   fanout,
		users:    users,
	}
	tracker.OnTransition(c.handleTransition)
	return c
}

// Connect registers an authenticated connection. The connection is
// rejected without touching any shared state when no user identity is
// attached.
func (c *SessionCoordinator) Connect(ctx context.Context, userID, connID string) error {
	if userID == "" {
		return ErrUnauthenticated
	}

	transition, err := c.tracker.OnConnect(userID, connID)
	if err != nil {
		return fmt.Errorf("register connection: %w", err)
	}

	// Every connection listens on its owner's personal group.
	c.fanout.Join(userID, connID)

	if transition != nil {
		if err := c.handleTransition(*transition); err != nil {
			logger.Error("Presence transition for user %s: %v", userID, err)
		}
	}

	logger.Info("User %s connected (%s)", userID, connID)
	return nil
}

// Disconnect tears down a connection. It always completes cleanup;
// unknown connections are expected during close races and ignored.
func (c *SessionCoordinator) Disconnect(ctx context.Context, connID string) {
	// Group membership is dropped even when the registry no longer
	// knows the connection, e.g. a close arriving after the sweep
	// already evicted it.
	c.fanout.LeaveAll(connID)

	userID, ok := c.registry.OwnerOf(connID)
	if !ok {
		logger.Debug("Disconnect for unknown connection %s", connID)
		return
	}

	transition := c.tracker.OnDisconnect(userID, connID)

	if transition != nil {
		if err := c.handleTransition(*transition); err != nil {
			logger.Error("Presence transition for user %s: %v", userID, err)
		}
	}

	logger.Info("User %s disconnected (%s)", userID, connID)
}

// JoinConversation subscribes the connection to the two-party room
// keyed by the other participant, so typing and status events scoped to
// that pair reach this viewer.
func (c *SessionCoordinator) JoinConversation(connID, otherUserID string) {
	c.fanout.Join(otherUserID, connID)
}

func (c *SessionCoordinator) LeaveConversation(connID, otherUserID string) {
	c.fanout.Leave(otherUserID, connID)
}

// RelayTyping forwards a typing indicator to the recipient's devices
// only, never back to the sender. Frames from connections with no
// registered owner are dropped with a log line.
func (c *SessionCoordinator) RelayTyping(connID, toUserID string, isTyping bool) {
	fromUserID, ok := c.registry.OwnerOf(connID)
	if !ok {
		logger.Debug("Typing frame from unregistered connection %s", connID)
		return
	}

	c.tracker.Touch(fromUserID)
	c.fanout.Broadcast([]string{toUserID}, models.EventTypingStatus, models.TypingStatusPayload{
		FromUserID: fromUserID,
		IsTyping:   isTyping,
	})
}

// DispatchMessage fans a persisted message out to every open device of
// both parties, and nudges the receiver's chat list. The store is the
// source of truth; this path is latency only.
func (c *SessionCoordinator) DispatchMessage(msg *models.Message) {
	c.tracker.Touch(msg.SenderID)

	c.fanout.Broadcast([]string{msg.ReceiverID, msg.SenderID}, models.EventMessageReceived, msg)
	c.fanout.Broadcast([]string{msg.ReceiverID}, models.EventChatListRefresh, nil)
}

// PropagateReadReceipt tells both parties' devices that the reader has
// caught up on the conversation.
func (c *SessionCoordinator) PropagateReadReceipt(readerID, otherUserID string) {
	c.tracker.Touch(readerID)

	c.fanout.Broadcast([]string{readerID, otherUserID}, models.EventMessageStatusUpdate, models.MessageStatusPayload{
		SenderID:   otherUserID,
		ReceiverID: readerID,
		IsRead:     true,
	})
}

// NotifyUser pushes a stored notification to the user's devices.
func (c *SessionCoordinator) NotifyUser(userID string, n *models.Notification) {
	c.fanout.Broadcast([]string{userID}, models.EventNotification, n)
}

// Touch records inbound activity (heartbeats, sends) for the sweep.
func (c *SessionCoordinator) Touch(userID string) {
	c.tracker.Touch(userID)
}

// handleTransition broadcasts a presence change to everyone and, on
// offline, persists the last-seen timestamp before returning so the
// sweep observes storage failures.
func (c *SessionCoordinator) handleTransition(t presence.Transition) error {
	payload := models.PresenceChangedPayload{
		UserID:   t.UserID,
		IsOnline: t.Kind == presence.WentOnline,
	}
	if t.Kind == presence.WentOffline {
		lastSeen := t.LastSeen
		payload.LastSeen = &lastSeen
	}

	// Torn-down connections leave every group they joined, otherwise
	// sweep-evicted connections would keep receiving room broadcasts.
	for _, connID := range t.Connections {
		c.fanout.LeaveAll(connID)
	}

	c.fanout.BroadcastAll(models.EventPresenceChanged, payload)

	if t.Kind == presence.WentOffline && c.users != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.users.SetLastSeen(ctx, t.UserID, t.LastSeen); err != nil {
			return fmt.Errorf("persist last seen: %w", err)
		}
	}
	return nil
}
