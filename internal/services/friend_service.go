package services

import (
	"context"
	"fmt"

	"github.com/Fozu7916/AlekseyBook-sub000/internal/database"
	"github.com/Fozu7916/AlekseyBook-sub000/internal/models"
	"github.com/Fozu7916/AlekseyBook-sub000/internal/presence"
)

type FriendService struct {
	db            database.Database
	registry      *presence.ConnectionRegistry
	notifications *NotificationService
}

func NewFriendService(db database.Database, registry *presence.ConnectionRegistry, notifications *NotificationService) *FriendService {
	return &FriendService{
		db:            db,
		registry:      registry,
		notifications: notifications,
	}
}

func (s *FriendService) AddFriend(ctx context.Context, userID, friendID string) error {
	if userID == friendID {
		return fmt.Errorf("cannot add yourself")
	}

	user, err := s.db.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("user not found")
	}
	if _, err := s.db.GetUserByID(ctx, friendID); err != nil {
		return fmt.Errorf("user not found")
	}

	already, err := s.db.AreFriends(ctx, userID, friendID)
	if err != nil {
		return err
	}
	if already {
		return nil
	}

	if err := s.db.AddFriend(ctx, userID, friendID); err != nil {
		return err
	}

	if _, err := s.notifications.Notify(ctx, friendID, "friend_added", fmt.Sprintf("%s added you as a friend", user.Username)); err != nil {
		return fmt.Errorf("friend added but notification failed: %w", err)
	}
	return nil
}

func (s *FriendService) RemoveFriend(ctx context.Context, userID, friendID string) error {
	return s.db.RemoveFriend(ctx, userID, friendID)
}

// ListFriends decorates the stored friend list with live presence from
// the registry.
func (s *FriendService) ListFriends(ctx context.Context, userID string) ([]*models.Friend, error) {
	friends, err := s.db.ListFriends(ctx, userID)
	if err != nil {
		return nil, err
	}

	for _, friend := range friends {
		friend.IsOnline = s.registry.IsOnline(friend.ID)
	}
	return friends, nil
}
