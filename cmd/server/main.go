package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Fozu7916/AlekseyBook-sub000/internal/auth"
	"github.com/Fozu7916/AlekseyBook-sub000/internal/chat"
	"github.com/Fozu7916/AlekseyBook-sub000/internal/config"
	"github.com/Fozu7916/AlekseyBook-sub000/internal/database"
	"github.com/Fozu7916/AlekseyBook-sub000/internal/handlers"
	"github.com/Fozu7916/AlekseyBook-sub000/internal/presence"
	"github.com/Fozu7916/AlekseyBook-sub000/internal/services"
	ws "github.com/Fozu7916/AlekseyBook-sub000/internal/websocket"
	"github.com/Fozu7916/AlekseyBook-sub000/pkg/logger"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	var db database.Database
	db, err := database.NewPostgresDB(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}
	if cfg.Redis.Addr != "" {
		db, err = database.NewCachedDB(db, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to redis: %v", err)
		}
	}
	defer db.Close()

	// Initialize the realtime core
	registry := presence.NewConnectionRegistry(cfg.Presence.MaxConnectionsPerUser)
	tracker := presence.NewPresenceTracker(registry, cfg.Presence.SweepInterval, cfg.Presence.InactiveThreshold)
	hub := ws.NewHub()
	fanout := chat.NewGroupFanout(registry, hub)
	coordinator := chat.NewSessionCoordinator(registry, tracker, fanout, db)
	hub.SetCoordinator(coordinator)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tracker.Start(ctx)
	defer tracker.Stop()

	// Initialize services
	authService := auth.NewService(db, cfg)
	messageService := services.NewMessageService(db, coordinator)
	notificationService := services.NewNotificationService(db, coordinator)
	friendService := services.NewFriendService(db, registry, notificationService)

	// Initialize handlers
	authHandlers := handlers.NewAuthHandlers(authService)
	messageHandlers := handlers.NewMessageHandlers(messageService, authService)
	socialHandlers := handlers.NewSocialHandlers(friendService, notificationService, registry, authService)
	wsHandlers := handlers.NewWebSocketHandlers(authService, hub)

	// Setup routes
	mux := http.NewServeMux()
	setupRoutes(mux, authHandlers, messageHandlers, socialHandlers, wsHandlers)

	// Create server
	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      corsMiddleware(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	logger.Info("🚀 Server started on http://localhost%s", cfg.Server.Port)
	logger.Info("📡 WebSocket endpoint: ws://localhost%s/ws", cfg.Server.Port)
	printAPIEndpoints()

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Server shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error: %v", err)
	}
}

func setupRoutes(mux *http.ServeMux, authHandlers *handlers.AuthHandlers, messageHandlers *handlers.MessageHandlers, socialHandlers *handlers.SocialHandlers, wsHandlers *handlers.WebSocketHandlers) {
	// Auth routes
	mux.HandleFunc("/login", authHandlers.Login)
	mux.HandleFunc("/register", authHandlers.Register)

	// Message routes
	mux.HandleFunc("/messages", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			messageHandlers.GetConversation(w, r)
		case http.MethodPost:
			messageHandlers.SendMessage(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/messages/read", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		messageHandlers.MarkRead(w, r)
	})
	mux.HandleFunc("/messages/unread", messageHandlers.UnreadCount)
	mux.HandleFunc("/chats", messageHandlers.ListChats)

	// Friend routes
	mux.HandleFunc("/friends", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			socialHandlers.ListFriends(w, r)
		case http.MethodPost:
			socialHandlers.AddFriend(w, r)
		case http.MethodDelete:
			socialHandlers.RemoveFriend(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// Notification routes
	mux.HandleFunc("/notifications", socialHandlers.ListNotifications)
	mux.HandleFunc("/notifications/read", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		socialHandlers.MarkNotificationRead(w, r)
	})

	// Presence snapshot
	mux.HandleFunc("/online", socialHandlers.OnlineUsers)

	// WebSocket route
	mux.HandleFunc("/ws", wsHandlers.HandleWebSocket)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func printAPIEndpoints() {
	logger.Info("🔗 API endpoints:")
	logger.Info("   POST /login")
	logger.Info("   POST /register")
	logger.Info("   GET  /chats")
	logger.Info("   GET  /messages?with={id}")
	logger.Info("   POST /messages")
	logger.Info("   POST /messages/read?with={id}")
	logger.Info("   GET  /messages/unread")
	logger.Info("   GET  /friends")
	logger.Info("   POST /friends")
	logger.Info("   GET  /notifications")
	logger.Info("   GET  /online")
	logger.Info("   GET  /metrics")
}
