package auth

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/remitflow-backend/pkg/enums"
)

// Actor is the authenticated principal services authorize against.
type Actor struct {
	UserID      uuid.UUID
	Username    string
	UserType    enums.UserType
	IsSuperuser bool
}

// IsManager reports whether the actor carries the manager user type.
func (a Actor) IsManager() bool {
	return a.UserType == enums.UserTypeManager
}

// CanManage is true for managers and superusers.
func (a Actor) CanManage() bool {
	return a.IsManager() || a.IsSuperuser
}

// Role renders the actor role used in logs and outbox envelopes.
func (a Actor) Role() string {
	if a.IsSuperuser {
		return "superuser"
	}
	return string(a.UserType)
}
