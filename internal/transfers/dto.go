package transfers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/remitflow-backend/pkg/db/models"
	"github.com/angelmondragon/remitflow-backend/pkg/enums"
)

// CreateTransferInput is what an agent submits for a new transfer.
type CreateTransferInput struct {
	BeneficiaryName  string          `json:"beneficiary_name" validate:"required,max=100"`
	BeneficiaryPhone string          `json:"beneficiary_phone" validate:"required,max=20"`
	WithdrawalMethod string          `json:"withdrawal_method" validate:"required"`
	Amount           decimal.Decimal `json:"amount"`
	SentCurrency     string          `json:"sent_currency" validate:"required,currency"`
	ReceivedCurrency string          `json:"received_currency" validate:"required,currency"`
	Comment          *string         `json:"comment,omitempty"`
}

// TransitionInput carries the optional comment recorded with validate, reject and execute.
type TransitionInput struct {
	Comment string `json:"comment" validate:"max=2000"`
}

// DistributionDTO is the realized commission split attached to a transfer.
type DistributionDTO struct {
	ConfigID        *uuid.UUID      `json:"config_id,omitempty"`
	TotalCommission decimal.Decimal `json:"total_commission"`
	AgentAmount     decimal.Decimal `json:"agent_amount"`
	ManagerAmount   decimal.Decimal `json:"manager_amount"`
	CreatedAt       time.Time       `json:"created_at"`
}

// TransferDTO is the transport shape of a transfer.
type TransferDTO struct {
	ID                uuid.UUID              `json:"id"`
	ReferenceID       string                 `json:"reference_id"`
	AgentID           uuid.UUID              `json:"agent_id"`
	BeneficiaryName   string                 `json:"beneficiary_name"`
	BeneficiaryPhone  string                 `json:"beneficiary_phone"`
	WithdrawalMethod  enums.WithdrawalMethod `json:"withdrawal_method"`
	Amount            decimal.Decimal        `json:"amount"`
	SentCurrency      enums.Currency         `json:"sent_currency"`
	ReceivedCurrency  enums.Currency         `json:"received_currency"`
	Comment           *string                `json:"comment,omitempty"`
	Status            enums.TransferStatus   `json:"status"`
	ValidatedByID     *uuid.UUID             `json:"validated_by_id,omitempty"`
	ValidatedAt       *time.Time             `json:"validated_at,omitempty"`
	ValidationComment *string                `json:"validation_comment,omitempty"`
	ExecutedByID      *uuid.UUID             `json:"executed_by_id,omitempty"`
	ExecutedAt        *time.Time             `json:"executed_at,omitempty"`
	ExecutionComment  *string                `json:"execution_comment,omitempty"`
	Distribution      *DistributionDTO       `json:"distribution,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

// FromModel maps a transfer row and its optional distribution.
func FromModel(t *models.Transfer, dist *models.CommissionDistribution) *TransferDTO {
	if t == nil {
		return nil
	}
	dto := &TransferDTO{
		ID:                t.ID,
		ReferenceID:       t.ReferenceID,
		AgentID:           t.AgentID,
		BeneficiaryName:   t.BeneficiaryName,
		BeneficiaryPhone:  t.BeneficiaryPhone,
		WithdrawalMethod:  t.WithdrawalMethod,
		Amount:            t.Amount,
		SentCurrency:      t.SentCurrency,
		ReceivedCurrency:  t.ReceivedCurrency,
		Comment:           t.Comment,
		Status:            t.Status,
		ValidatedByID:     t.ValidatedByID,
		ValidatedAt:       t.ValidatedAt,
		ValidationComment: t.ValidationComment,
		ExecutedByID:      t.ExecutedByID,
		ExecutedAt:        t.ExecutedAt,
		ExecutionComment:  t.ExecutionComment,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
	if dist != nil {
		dto.Distribution = &DistributionDTO{
			ConfigID:        dist.ConfigID,
			TotalCommission: dist.TotalCommission,
			AgentAmount:     dist.AgentAmount,
			ManagerAmount:   dist.ManagerAmount,
			CreatedAt:       dist.CreatedAt,
		}
	}
	return dto
}

// ListParams filters the transfer listing.
type ListParams struct {
	Status   string
	Currency string
	Search   string
	Limit    int
	Cursor   string
}

// ListResult is one page of transfers.
type ListResult struct {
	Items  []*TransferDTO `json:"items"`
	Cursor string         `json:"cursor"`
}
