package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/remitflow-backend/pkg/enums"
)

// CommissionConfig is a manager-owned rule mapping a currency and an inclusive
// amount range to a fixed commission split between agent and manager.
type CommissionConfig struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ManagerID        uuid.UUID       `gorm:"column:manager_id;type:uuid;not null"`
	Currency         enums.Currency  `gorm:"column:currency;type:currency_enum;not null"`
	MinAmount        decimal.Decimal `gorm:"column:min_amount;type:numeric(12,2);not null"`
	MaxAmount        decimal.Decimal `gorm:"column:max_amount;type:numeric(12,2);not null"`
	CommissionAmount decimal.Decimal `gorm:"column:commission_amount;type:numeric(12,4);not null"`
	AgentShare       decimal.Decimal `gorm:"column:agent_share;type:numeric(5,2);not null"`
	Active           bool            `gorm:"column:active;not null"`
	PreviousID       *uuid.UUID      `gorm:"column:previous_id;type:uuid"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// ManagerShare is the percentage of the commission kept by the manager.
func (c CommissionConfig) ManagerShare() decimal.Decimal {
	return decimal.NewFromInt(100).Sub(c.AgentShare)
}

// AppliesTo reports whether the config is active, matches currency and covers amount.
func (c CommissionConfig) AppliesTo(currency enums.Currency, amount decimal.Decimal) bool {
	return c.Active &&
		c.Currency == currency &&
		amount.GreaterThanOrEqual(c.MinAmount) &&
		amount.LessThanOrEqual(c.MaxAmount)
}
