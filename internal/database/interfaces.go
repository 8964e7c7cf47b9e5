package database

import (
	"context"
	"time"

	"github.com/Fozu7916/AlekseyBook-sub000/internal/models"
)

type UserRepository interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	CreateUser(ctx context.Context, req *models.RegisterRequest) (*models.User, error)
	SetLastSeen(ctx context.Context, userID string, lastSeen time.Time) error
}

type MessageRepository interface {
	SaveMessage(ctx context.Context, senderID, receiverID, content string) (*models.Message, error)
	ListConversation(ctx context.Context, userID, otherUserID string, limit int) ([]*models.Message, error)
	MarkConversationRead(ctx context.Context, readerID, otherUserID string) (int64, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	ListChats(ctx context.Context, userID string) ([]*models.ChatPreview, error)
}

type NotificationRepository interface {
	CreateNotification(ctx context.Context, userID, kind, text string) (*models.Notification, error)
	ListNotifications(ctx context.Context, userID string, limit int) ([]*models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID string) error
	UnreadNotificationCount(ctx context.Context, userID string) (int, error)
}

type FriendRepository interface {
	AddFriend(ctx context.Context, userID, friendID string) error
	RemoveFriend(ctx context.Context, userID, friendID string) error
	AreFriends(ctx context.Context, userID, friendID string) (bool, error)
	ListFriends(ctx context.Context, userID string) ([]*models.Friend, error)
}

type Database interface {
	UserRepository
	MessageRepository
	NotificationRepository
	FriendRepository
	Close() error
}
