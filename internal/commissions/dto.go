package commissions

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/remitflow-backend/pkg/db/models"
	"github.com/angelmondragon/remitflow-backend/pkg/enums"
)

// ConfigInput carries the editable fields of a commission config.
type ConfigInput struct {
	Currency         string          `json:"currency" validate:"required"`
	MinAmount        decimal.Decimal `json:"min_amount"`
	MaxAmount        decimal.Decimal `json:"max_amount"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	AgentShare       decimal.Decimal `json:"agent_share"`
	Active           *bool           `json:"active,omitempty"`
}

// ConfigDTO is the transport shape of a commission config.
type ConfigDTO struct {
	ID               uuid.UUID       `json:"id"`
	ManagerID        uuid.UUID       `json:"manager_id"`
	Currency         enums.Currency  `json:"currency"`
	MinAmount        decimal.Decimal `json:"min_amount"`
	MaxAmount        decimal.Decimal `json:"max_amount"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	AgentShare       decimal.Decimal `json:"agent_share"`
	ManagerShare     decimal.Decimal `json:"manager_share"`
	Active           bool            `json:"active"`
	PreviousID       *uuid.UUID      `json:"previous_id,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// FromModel maps a config row to its transport shape.
func FromModel(cfg *models.CommissionConfig) *ConfigDTO {
	if cfg == nil {
		return nil
	}
	return &ConfigDTO{
		ID:               cfg.ID,
		ManagerID:        cfg.ManagerID,
		Currency:         cfg.Currency,
		MinAmount:        cfg.MinAmount,
		MaxAmount:        cfg.MaxAmount,
		CommissionAmount: cfg.CommissionAmount,
		AgentShare:       cfg.AgentShare,
		ManagerShare:     cfg.ManagerShare(),
		Active:           cfg.Active,
		PreviousID:       cfg.PreviousID,
		CreatedAt:        cfg.CreatedAt,
		UpdatedAt:        cfg.UpdatedAt,
	}
}

// ListParams filters the config listing.
type ListParams struct {
	Currency string
	Active   *bool
	Limit    int
	Cursor   string
}

// ListResult is one page of configs.
type ListResult struct {
	Items  []*ConfigDTO `json:"items"`
	Cursor string       `json:"cursor"`
}

// Preview is the would-be commission for an amount, nothing persisted.
type Preview struct {
	Found     bool            `json:"found"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  enums.Currency  `json:"currency"`
	Breakdown *Breakdown      `json:"breakdown,omitempty"`
}

// Overview aggregates earned commissions for a period.
type Overview struct {
	Period   enums.OverviewPeriod `json:"period"`
	Since    time.Time            `json:"since"`
	Totals   Totals               `json:"totals"`
	PerAgent []AgentTotals        `json:"per_agent,omitempty"`
}
