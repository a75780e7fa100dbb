package auth

import (
	"time"

	"github.com/angelmondragon/remitflow-backend/internal/users"
)

const tokenTypeBearer = "Bearer"

type LoginRequest struct {
	Username string `json:"username" validate:"required,max=150"`
	Password string `json:"password" validate:"required,max=128"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TokenPair is what login and refresh hand back to a client.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type LoginResponse struct {
	TokenPair
	User *users.UserDTO `json:"user"`
}

func newTokenPair(access, refresh string, ttl time.Duration) TokenPair {
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    int64(ttl / time.Second),
	}
}
