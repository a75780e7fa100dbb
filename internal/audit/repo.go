package audit

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/remitflow-backend/pkg/db/models"
	"github.com/angelmondragon/remitflow-backend/pkg/enums"
	"github.com/angelmondragon/remitflow-backend/pkg/pagination"
)

// Repository reads persisted audit events.
type Repository interface {
	List(ctx context.Context, params listParams) ([]models.AuditEvent, *pagination.Cursor, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the audit reader to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

type listParams struct {
	Action     enums.AuditAction
	EntityType string
	EntityID   *uuid.UUID
	ActorID    *uuid.UUID
	Limit      int
	Cursor     *pagination.Cursor
}

func (r *repository) List(ctx context.Context, params listParams) ([]models.AuditEvent, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.AuditEvent{})
	if params.Action != "" {
		query = query.Where("action = ?", params.Action)
	}
	if params.EntityType != "" {
		query = query.Where("entity_type = ?", params.EntityType)
	}
	if params.EntityID != nil {
		query = query.Where("entity_id = ?", *params.EntityID)
	}
	if params.ActorID != nil {
		query = query.Where("actor_id = ?", *params.ActorID)
	}

	var rows []models.AuditEvent
	if err := pagination.Keyset(query, params.Cursor, params.Limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Page(rows, params.Limit, func(row models.AuditEvent) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	return page, next, nil
}
