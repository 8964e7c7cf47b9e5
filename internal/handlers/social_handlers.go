package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Fozu7916/AlekseyBook-sub000/internal/auth"
	"github.com/Fozu7916/AlekseyBook-sub000/internal/presence"
	"github.com/Fozu7916/AlekseyBook-sub000/internal/services"
	"github.com/Fozu7916/AlekseyBook-sub000/pkg/logger"
)

type SocialHandlers struct {
	friendService       *services.FriendService
	notificationService *services.NotificationService
	registry            *presence.ConnectionRegistry
	authService         *auth.Service
}

func NewSocialHandlers(friendService *services.FriendService, notificationService *services.NotificationService, registry *presence.ConnectionRegistry, authService *auth.Service) *SocialHandlers {
	return &SocialHandlers{
		friendService:       friendService,
		notificationService: notificationService,
		registry:            registry,
		authService:         authService,
	}
}

// GET /friends
func (h *SocialHandlers) ListFriends(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.authService)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	friends, err := h.friendService.ListFriends(r.Context(), user.ID)
	if err != nil {
		logger.Error("List friends error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, friends)
}

// POST /friends
func (h *SocialHandlers) AddFriend(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.authService)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		FriendID string `json:"friend_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FriendID == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	if err := h.friendService.AddFriend(r.Context(), user.ID, req.FriendID); err != nil {
		logger.Error("Add friend error: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DELETE /friends?id={userID}
func (h *SocialHandlers) RemoveFriend(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.authService)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	friendID := r.URL.Query().Get("id")
	if friendID == "" {
		http.Error(w, "missing id parameter", http.StatusBadRequest)
		return
	}

	if err := h.friendService.RemoveFriend(r.Context(), user.ID, friendID); err != nil {
		logger.Error("Remove friend error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GET /notifications?limit={n}
func (h *SocialHandlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.authService)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	notifications, err := h.notificationService.List(r.Context(), user.ID, limit)
	if err != nil {
		logger.Error("List notifications error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, notifications)
}

// POST /notifications/read?id={notificationID}
func (h *SocialHandlers) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.authService)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	notificationID := r.URL.Query().Get("id")
	if notificationID == "" {
		http.Error(w, "missing id parameter", http.StatusBadRequest)
		return
	}

	if err := h.notificationService.MarkRead(r.Context(), user.ID, notificationID); err != nil {
		logger.Error("Mark notification read error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GET /online returns the users currently holding at least one live
// connection.
func (h *SocialHandlers) OnlineUsers(w http.ResponseWriter, r *http.Request) {
	if _, err := currentUser(r, h.authService); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	users := h.registry.OnlineUsers()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"online": users,
		"count":  len(users),
	})
}
