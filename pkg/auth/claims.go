package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/remitflow-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID      uuid.UUID
	Username    string
	UserType    enums.UserType
	IsSuperuser bool
	JTI         string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID      uuid.UUID      `json:"user_id"`
	Username    string         `json:"username"`
	UserType    enums.UserType `json:"user_type"`
	IsSuperuser bool           `json:"is_superuser,omitempty"`
	jwt.RegisteredClaims
}

// Actor returns the principal the claims describe.
func (c *AccessTokenClaims) Actor() Actor {
	return Actor{
		UserID:      c.UserID,
		Username:    c.Username,
		UserType:    c.UserType,
		IsSuperuser: c.IsSuperuser,
	}
}
