package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Fozu7916/AlekseyBook-sub000/internal/models"
	"github.com/Fozu7916/AlekseyBook-sub000/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const unreadTTL = 10 * time.Minute

// CachedDB wraps a Database with a redis read-aside cache for unread
// message counts, the hottest query on the chat list. Writes that can
// change a count invalidate the key; everything else passes through.
type CachedDB struct {
	Database
	rdb *redis.Client
}

func NewCachedDB(inner Database, addr, password string, db int) (*CachedDB, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info("Connected to redis at %s", addr)
	return &CachedDB{Database: inner, rdb: rdb}, nil
}

func (c *CachedDB) Close() error {
	if err := c.rdb.Close(); err != nil {
		logger.Error("Error closing redis client: %v", err)
	}
	return c.Database.Close()
}

func unreadKey(userID string) string {
	return "unread:" + userID
}

func (c *CachedDB) UnreadCount(ctx context.Context, userID string) (int, error) {
	val, err := c.rdb.Get(ctx, unreadKey(userID)).Result()
	if err == nil {
		if count, convErr := strconv.Atoi(val); convErr == nil {
			return count, nil
		}
	} else if err != redis.Nil {
		logger.Debug("Redis unread lookup failed for %s: %v", userID, err)
	}

	count, err := c.Database.UnreadCount(ctx, userID)
	if err != nil {
		return 0, err
	}

	if err := c.rdb.Set(ctx, unreadKey(userID), count, unreadTTL).Err(); err != nil {
		logger.Debug("Redis unread set failed for %s: %v", userID, err)
	}
	return count, nil
}

func (c *CachedDB) SaveMessage(ctx context.Context, senderID, receiverID, content string) (*models.Message, error) {
	msg, err := c.Database.SaveMessage(ctx, senderID, receiverID, content)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, receiverID)
	return msg, nil
}

func (c *CachedDB) MarkConversationRead(ctx context.Context, readerID, otherUserID string) (int64, error) {
	updated, err := c.Database.MarkConversationRead(ctx, readerID, otherUserID)
	if err != nil {
		return 0, err
	}
	if updated > 0 {
		c.invalidate(ctx, readerID)
	}
	return updated, nil
}

func (c *CachedDB) invalidate(ctx context.Context, userID string) {
	if err := c.rdb.Del(ctx, unreadKey(userID)).Err(); err != nil {
		logger.Debug("Redis unread invalidate failed for %s: %v", userID, err)
	}
}
