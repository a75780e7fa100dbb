package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/remitflow-backend/pkg/enums"
)

// Transfer is a money transfer submitted by an agent on behalf of a beneficiary.
type Transfer struct {
	ID                uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReferenceID       string                 `gorm:"column:reference_id;type:varchar(9);not null;uniqueIndex"`
	AgentID           uuid.UUID              `gorm:"column:agent_id;type:uuid;not null"`
	BeneficiaryName   string                 `gorm:"column:beneficiary_name;not null"`
	BeneficiaryPhone  string                 `gorm:"column:beneficiary_phone;not null"`
	WithdrawalMethod  enums.WithdrawalMethod `gorm:"column:withdrawal_method;type:withdrawal_method_enum;not null"`
	Amount            decimal.Decimal        `gorm:"column:amount;type:numeric(12,2);not null"`
	SentCurrency      enums.Currency         `gorm:"column:sent_currency;type:currency_enum;not null"`
	ReceivedCurrency  enums.Currency         `gorm:"column:received_currency;type:currency_enum;not null"`
	Comment           *string                `gorm:"column:comment"`
	Status            enums.TransferStatus   `gorm:"column:status;type:transfer_status_enum;not null"`
	ValidatedByID     *uuid.UUID             `gorm:"column:validated_by_id;type:uuid"`
	ValidatedAt       *time.Time             `gorm:"column:validated_at"`
	ValidationComment *string                `gorm:"column:validation_comment"`
	ExecutedByID      *uuid.UUID             `gorm:"column:executed_by_id;type:uuid"`
	ExecutedAt        *time.Time             `gorm:"column:executed_at"`
	ExecutionComment  *string                `gorm:"column:execution_comment"`
	CreatedAt         time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
