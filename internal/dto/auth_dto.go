package dto

import (
	"time"

	"github.com/google/uuid"
)

type RegisterRequest struct {
	Name            string `json:"name" form:"name"`
	Email           string `json:"email" form:"email"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword"`
}

type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type AppleSignInRequest struct {
	IdentityToken string `json:"identity_token"`
	FullName      string `json:"full_name,omitempty"`
}

// ExternalProfile is the canonical identity a provider vouches for.
type ExternalProfile struct {
	Provider    string
	ExternalID  string
	Email       string
	DisplayName string
}

type UserResponse struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Verified  bool       `json:"verified"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	Providers []string   `json:"providers"`
	CreatedAt time.Time  `json:"created_at"`
}

type AuthResponse struct {
	Success    bool         `json:"success"`
	Message    string       `json:"message"`
	User       UserResponse `json:"user"`
	RedirectTo string       `json:"redirectTo,omitempty"`
}

type ProfileResponse struct {
	Success bool         `json:"success"`
	User    UserResponse `json:"user"`
}

type MessageResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	RedirectTo string `json:"redirectTo,omitempty"`
}

type EntryPageResponse struct {
	Title     string   `json:"title"`
	Providers []string `json:"providers"`
	Error     string   `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error   bool     `json:"error"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	DB        string `json:"db"`
	Redis     string `json:"redis,omitempty"`
}
