package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Fozu7916/AlekseyBook-sub000/internal/models"
	"github.com/Fozu7916/AlekseyBook-sub000/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

type PostgresDB struct {
	pool *pgxpool.Pool
}

func NewPostgresDB(databaseURL string) (*PostgresDB, error) {
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database successfully")
	return &PostgresDB{pool: pool}, nil
}

func (db *PostgresDB) Close() error {
	db.pool.Close()
	return nil
}

// User Repository Implementation
func (db *PostgresDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id, username, email, password_hash, COALESCE(avatar_url, ''), last_seen, created_at FROM users WHERE email = $1`

	user := &models.User{}
	err := db.pool.QueryRow(ctx, query, email).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.AvatarURL, &user.LastSeen, &user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (db *PostgresDB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT id, username, email, COALESCE(avatar_url, ''), last_seen, created_at FROM users WHERE id = $1`

	user := &models.User{}
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Username, &user.Email, &user.AvatarURL, &user.LastSeen, &user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (db *PostgresDB) CreateUser(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	query := `
		INSERT INTO users (id, username, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, username, email, created_at`

	user := &models.User{PasswordHash: string(hash)}
	err = db.pool.QueryRow(ctx, query, uuid.NewString(), req.Username, req.Email, string(hash)).Scan(
		&user.ID, &user.Username, &user.Email, &user.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

func (db *PostgresDB) SetLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	query := `UPDATE users SET last_seen = $2 WHERE id = $1`
	_, err := db.pool.Exec(ctx, query, userID, lastSeen)
	return err
}

// Message Repository Implementation
func (db *PostgresDB) SaveMessage(ctx context.Context, senderID, receiverID, content string) (*models.Message, error) {
	query := `
		INSERT INTO messages (id, sender_id, receiver_id, content, is_read, created_at)
		VALUES ($1, $2, $3, $4, false, NOW())
		RETURNING id, sender_id, receiver_id, content, is_read, created_at`

	msg := &models.Message{}
	err := db.pool.QueryRow(ctx, query, uuid.NewString(), senderID, receiverID, content).Scan(
		&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &msg.IsRead, &msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	return msg, nil
}

func (db *PostgresDB) ListConversation(ctx context.Context, userID, otherUserID string, limit int) ([]*models.Message, error) {
	query := `
		SELECT id, sender_id, receiver_id, content, is_read, created_at
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := db.pool.Query(ctx, query, userID, otherUserID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg := &models.Message{}
		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &msg.IsRead, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	// Reverse to show oldest first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (db *PostgresDB) MarkConversationRead(ctx context.Context, readerID, otherUserID string) (int64, error) {
	query := `
		UPDATE messages SET is_read = true
		WHERE receiver_id = $1 AND sender_id = $2 AND is_read = false`

	tag, err := db.pool.Exec(ctx, query, readerID, otherUserID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (db *PostgresDB) UnreadCount(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND is_read = false`

	var count int
	err := db.pool.QueryRow(ctx, query, userID).Scan(&count)
	return count, err
}

func (db *PostgresDB) ListChats(ctx context.Context, userID string) ([]*models.ChatPreview, error) {
	query := `
		SELECT DISTINCT ON (other_id)
			other_id, u.username, m.content, m.created_at,
			(SELECT COUNT(*) FROM messages
			 WHERE receiver_id = $1 AND sender_id = other_id AND is_read = false)
		FROM (
			SELECT *, CASE WHEN sender_id = $1 THEN receiver_id ELSE sender_id END AS other_id
			FROM messages
			WHERE sender_id = $1 OR receiver_id = $1
		) m
		JOIN users u ON u.id = m.other_id
		ORDER BY other_id, m.created_at DESC`

	rows, err := db.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []*models.ChatPreview
	for rows.Next() {
		chat := &models.ChatPreview{}
		if err := rows.Scan(&chat.UserID, &chat.Username, &chat.LastMessage, &chat.LastAt, &chat.UnreadCount); err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}

	return chats, nil
}

// Notification Repository Implementation
func (db *PostgresDB) CreateNotification(ctx context.Context, userID, kind, text string) (*models.Notification, error) {
	query := `
		INSERT INTO notifications (id, user_id, type, text, is_read, created_at)
		VALUES ($1, $2, $3, $4, false, NOW())
		RETURNING id, user_id, type, text, is_read, created_at`

	n := &models.Notification{}
	err := db.pool.QueryRow(ctx, query, uuid.NewString(), userID, kind, text).Scan(
		&n.ID, &n.UserID, &n.Type, &n.Text, &n.IsRead, &n.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	return n, nil
}

func (db *PostgresDB) ListNotifications(ctx context.Context, userID string, limit int) ([]*models.Notification, error) {
	query := `
		SELECT id, user_id, type, text, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := db.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		n := &models.Notification{}
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Text, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}

	return notifications, nil
}

func (db *PostgresDB) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	query := `UPDATE notifications SET is_read = true WHERE id = $1 AND user_id = $2`
	_, err := db.pool.Exec(ctx, query, notificationID, userID)
	return err
}

func (db *PostgresDB) UnreadNotificationCount(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = false`

	var count int
	err := db.pool.QueryRow(ctx, query, userID).Scan(&count)
	return count, err
}

// Friend Repository Implementation
func (db *PostgresDB) AddFriend(ctx context.Context, userID, friendID string) error {
	query := `
		INSERT INTO friends (user_id, friend_id, created_at) VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, friend_id) DO NOTHING`

	if _, err := db.pool.Exec(ctx, query, userID, friendID); err != nil {
		return err
	}
	_, err := db.pool.Exec(ctx, query, friendID, userID)
	return err
}

func (db *PostgresDB) RemoveFriend(ctx context.Context, userID, friendID string) error {
	query := `DELETE FROM friends WHERE (user_id = $1 AND friend_id = $2) OR (user_id = $2 AND friend_id = $1)`
	_, err := db.pool.Exec(ctx, query, userID, friendID)
	return err
}

func (db *PostgresDB) AreFriends(ctx context.Context, userID, friendID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM friends WHERE user_id = $1 AND friend_id = $2)`

	var exists bool
	err := db.pool.QueryRow(ctx, query, userID, friendID).Scan(&exists)
	return exists, err
}

func (db *PostgresDB) ListFriends(ctx context.Context, userID string) ([]*models.Friend, error) {
	query := `
		SELECT u.id, u.username, COALESCE(u.avatar_url, ''), u.last_seen
		FROM friends f
		JOIN users u ON f.friend_id = u.id
		WHERE f.user_id = $1
		ORDER BY u.username`

	rows, err := db.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var friends []*models.Friend
	for rows.Next() {
		friend := &models.Friend{}
		if err := rows.Scan(&friend.ID, &friend.Username, &friend.AvatarURL, &friend.LastSeen); err != nil {
			return nil, err
		}
		friends = append(friends, friend)
	}

	return friends, nil
}
