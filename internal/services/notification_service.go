package services

import (
	"context"

	"github.com/Fozu7916/AlekseyBook-sub000/internal/chat"
	"github.com/Fozu7916/AlekseyBook-sub000/internal/database"
	"github.com/Fozu7916/AlekseyBook-sub000/internal/models"
)

type NotificationService struct {
	db          database.Database
	coordinator *chat.SessionCoordinator
}

func NewNotificationService(db database.Database, coordinator *chat.SessionCoordinator) *NotificationService {
	return &NotificationService{db: db, coordinator: coordinator}
}

// Notify stores the notification and pushes it to the user's open
// devices. Offline users pick it up from the list endpoint later.
func (s *NotificationService) Notify(ctx context.Context, userID, kind, text string) (*models.Notification, error) {
	n, err := s.db.CreateNotification(ctx, userID, kind, text)
	if err != nil {
		return nil, err
	}

	s.coordinator.NotifyUser(userID, n)
	return n, nil
}

func (s *NotificationService) List(ctx context.Context, userID string, limit int) ([]*models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.db.ListNotifications(ctx, userID, limit)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	return s.db.MarkNotificationRead(ctx, userID, notificationID)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.db.UnreadNotificationCount(ctx, userID)
}
