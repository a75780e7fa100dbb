package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/remitflow-backend/pkg/enums"
)

// Notification is one entry in a user's in-app inbox.
type Notification struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index"`
	Kind      enums.NotificationKind `gorm:"column:kind;not null"`
	Title     string                 `gorm:"column:title;not null"`
	Message   string                 `gorm:"column:message;not null"`
	Link      *string                `gorm:"column:link"`
	ReadAt    *time.Time             `gorm:"column:read_at"`
	CreatedAt time.Time              `gorm:"column:created_at;not null"`
}

func (n Notification) IsRead() bool { return n.ReadAt != nil }
