package handlers

import (
	"net/http"

	"github.com/Fozu7916/AlekseyBook-sub000/internal/auth"
	ws "github.com/Fozu7916/AlekseyBook-sub000/internal/websocket"
	"github.com/Fozu7916/AlekseyBook-sub000/pkg/logger"

	"github.com/gorilla/websocket"
)

type WebSocketHandlers struct {
	authService *auth.Service
	hub         *ws.Hub
	upgrader    websocket.Upgrader
}

func NewWebSocketHandlers(authService *auth.Service, hub *ws.Hub) *WebSocketHandlers {
	return &WebSocketHandlers{
		authService: authService,
		hub:         hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // Configure for production
		},
	}
}

func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Get JWT token from query parameters
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	// Validate token and get user
	user, err := h.authService.GetUserFromToken(r.Context(), tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	// Upgrade connection to WebSocket
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		return
	}

	h.hub.HandleConnection(conn, user.ID)
}
