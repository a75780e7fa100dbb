package audit

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/remitflow-backend/pkg/db/models"
	"github.com/angelmondragon/remitflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/remitflow-backend/pkg/errors"
	"github.com/angelmondragon/remitflow-backend/pkg/pagination"
)

// Service exposes the audit trail to managers.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

type service struct {
	repo Repository
}

// ListParams filters the audit trail.
type ListParams struct {
	Action     string
	EntityType string
	EntityID   *uuid.UUID
	ActorID    *uuid.UUID
	Limit      int
	Cursor     string
}

// ListResult is one page of audit events.
type ListResult struct {
	Items  []models.AuditEvent `json:"items"`
	Cursor string              `json:"cursor"`
}

// NewService wires the audit reader.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "audit repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := listParams{
		EntityType: strings.TrimSpace(params.EntityType),
		EntityID:   params.EntityID,
		ActorID:    params.ActorID,
		Limit:      params.Limit,
	}
	if action := strings.TrimSpace(params.Action); action != "" {
		parsed := enums.AuditAction(action)
		if !parsed.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown audit action")
		}
		query.Action = parsed
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list audit events")
	}
	result := &ListResult{Items: rows}
	if next != nil {
		result.Cursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}
