package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Fozu7916/AlekseyBook-sub000/internal/auth"
	"github.com/Fozu7916/AlekseyBook-sub000/internal/models"
	"github.com/Fozu7916/AlekseyBook-sub000/internal/services"
	"github.com/Fozu7916/AlekseyBook-sub000/pkg/logger"
)

type MessageHandlers struct {
	messageService *services.MessageService
	authService    *auth.Service
}

func NewMessageHandlers(messageService *services.MessageService, authService *auth.Service) *MessageHandlers {
	return &MessageHandlers{
		messageService: messageService,
		authService:    authService,
	}
}

// POST /messages
func (h *MessageHandlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.authService)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	msg, err := h.messageService.SendMessage(r.Context(), user.ID, &req)
	if err != nil {
		logger.Error("Send message error: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

// GET /messages?with={userID}&limit={n}
func (h *MessageHandlers) GetConversation(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.authService)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	otherUserID := r.URL.Query().Get("with")
	if otherUserID == "" {
		http.Error(w, "missing with parameter", http.StatusBadRequest)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	messages, err := h.messageService.ListConversation(r.Context(), user.ID, otherUserID, limit)
	if err != nil {
		logger.Error("List conversation error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

// POST /messages/read?with={userID}
func (h *MessageHandlers) MarkRead(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.authService)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	otherUserID := r.URL.Query().Get("with")
	if otherUserID == "" {
		http.Error(w, "missing with parameter", http.StatusBadRequest)
		return
	}

	if err := h.messageService.MarkRead(r.Context(), user.ID, otherUserID); err != nil {
		logger.Error("Mark read error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GET /chats
func (h *MessageHandlers) ListChats(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.authService)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	chats, err := h.messageService.ListChats(r.Context(), user.ID)
	if err != nil {
		logger.Error("List chats error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, chats)
}

// GET /messages/unread
func (h *MessageHandlers) UnreadCount(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.authService)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	count, err := h.messageService.UnreadCount(r.Context(), user.ID)
	if err != nil {
		logger.Error("Unread count error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"unread": count})
}
