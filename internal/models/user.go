package models

import "time"

type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	AvatarURL    string     `json:"avatar_url,omitempty"`
	LastSeen     *time.Time `json:"last_seen,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

type Friend struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	AvatarURL string     `json:"avatar_url,omitempty"`
	IsOnline  bool       `json:"is_online"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
