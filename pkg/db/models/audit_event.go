package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/remitflow-backend/pkg/enums"
)

// AuditEvent is an append-only record of a business action.
type AuditEvent struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Action     enums.AuditAction `gorm:"column:action;type:text;not null"`
	EntityType string            `gorm:"column:entity_type;type:text;not null"`
	EntityID   *uuid.UUID        `gorm:"column:entity_id;type:uuid"`
	ActorID    *uuid.UUID        `gorm:"column:actor_id;type:uuid"`
	Details    json.RawMessage   `gorm:"column:details;type:jsonb"`
	IPAddress  *string           `gorm:"column:ip_address;type:text"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
}
