package dto

import (
	"time"

	"stockwatch_backend/internal/models"
)

// RegisterRequest - запрос регистрации
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest - запрос входа
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest - запрос обновления сессии
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// LogoutRequest - запрос выхода
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// VerifyEmailRequest - запрос подтверждения email
type VerifyEmailRequest struct {
	Token string `json:"token" binding:"required"`
}

// PasswordResetRequest - запрос сброса пароля
type PasswordResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// PasswordResetConfirm - подтверждение сброса пароля
type PasswordResetConfirm struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// ChangePasswordRequest - смена пароля при известном текущем
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

// ClientMeta - метаданные клиента, записываются в refresh credential
type ClientMeta struct {
	UserAgent string
	IP        string
}

// SessionPair - пара учетных данных новой сессии
type SessionPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// AuthResponse - ответ с токенами и данными пользователя
type AuthResponse struct {
	SessionPair
	User UserDTO `json:"user"`
}

// UserDTO - базовая информация о пользователе
type UserDTO struct {
	ID              string      `json:"id"`
	Email           string      `json:"email"`
	Tier            models.Tier `json:"tier"`
	SubscriptionEnd *time.Time  `json:"subscription_end,omitempty"`
	IsVerified      bool        `json:"is_verified"`
	CreatedAt       time.Time   `json:"created_at"`
}
