package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/Fozu7916/AlekseyBook-sub000/internal/chat"
	"github.com/Fozu7916/AlekseyBook-sub000/internal/database"
	"github.com/Fozu7916/AlekseyBook-sub000/internal/models"
)

const maxMessageLength = 4000

// MessageService persists chat messages and read receipts, then hands
// them to the coordinator for realtime fan-out. Persistence always
// happens first; delivery is best-effort on top.
type MessageService struct {
	db          database.Database
	coordinator *chat.SessionCoordinator
}

func NewMessageService(db database.Database, coordinator *chat.SessionCoordinator) *MessageService {
	return &MessageService{db: db, coordinator: coordinator}
}

func (s *MessageService) SendMessage(ctx context.Context, senderID string, req *models.SendMessageRequest) (*models.Message, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, fmt.Errorf("message content is required")
	}
	if len(content) > maxMessageLength {
		return nil, fmt.Errorf("message too long")
	}
	if req.ReceiverID == senderID {
		return nil, fmt.Errorf("cannot message yourself")
	}

	if _, err := s.db.GetUserByID(ctx, req.ReceiverID); err != nil {
		return nil, fmt.Errorf("recipient not found")
	}

	msg, err := s.db.SaveMessage(ctx, senderID, req.ReceiverID, content)
	if err != nil {
		return nil, err
	}

	s.coordinator.DispatchMessage(msg)
	return msg, nil
}

func (s *MessageService) ListConversation(ctx context.Context, userID, otherUserID string, limit int) ([]*models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.db.ListConversation(ctx, userID, otherUserID, limit)
}

// MarkRead flags the conversation as read and propagates the receipt to
// both parties' devices when anything actually changed.
func (s *MessageService) MarkRead(ctx context.Context, readerID, otherUserID string) error {
	updated, err := s.db.MarkConversationRead(ctx, readerID, otherUserID)
	if err != nil {
		return err
	}

	if updated > 0 {
		s.coordinator.PropagateReadReceipt(readerID, otherUserID)
	}
	return nil
}

func (s *MessageService) ListChats(ctx context.Context, userID string) ([]*models.ChatPreview, error) {
	return s.db.ListChats(ctx, userID)
}

func (s *MessageService) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.db.UnreadCount(ctx, userID)
}
