package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CommissionDistribution is the realized commission split of one transfer.
type CommissionDistribution struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TransferID      uuid.UUID       `gorm:"column:transfer_id;type:uuid;not null;uniqueIndex"`
	AgentID         uuid.UUID       `gorm:"column:agent_id;type:uuid;not null"`
	ConfigID        *uuid.UUID      `gorm:"column:config_id;type:uuid"`
	TotalCommission decimal.Decimal `gorm:"column:total_commission;type:numeric(12,4);not null"`
	AgentAmount     decimal.Decimal `gorm:"column:declaring_agent_amount;type:numeric(12,4);not null"`
	ManagerAmount   decimal.Decimal `gorm:"column:manager_amount;type:numeric(12,4);not null"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
}
