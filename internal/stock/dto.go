package stock

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/remitflow-backend/pkg/db/models"
	"github.com/angelmondragon/remitflow-backend/pkg/enums"
)

type CreateStockInput struct {
	Currency string           `json:"currency" validate:"required,currency"`
	Location string           `json:"location" validate:"required"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
}

// MovementInput applies an IN or OUT movement. A destination is only valid on
// OUT movements; CustomRate overrides the stored rate for a currency change.
type MovementInput struct {
	Type               string           `json:"type" validate:"required"`
	Amount             decimal.Decimal  `json:"amount"`
	Description        *string          `json:"description,omitempty" validate:"omitempty,max=250"`
	DestinationStockID *uuid.UUID       `json:"destination_stock_id,omitempty"`
	CustomRate         *decimal.Decimal `json:"custom_exchange_rate,omitempty"`
}

type DepositInput struct {
	StockID     uuid.UUID       `json:"stock_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Description *string         `json:"description,omitempty" validate:"omitempty,max=250"`
}

type RateInput struct {
	FromCurrency string          `json:"from_currency" validate:"required,currency"`
	ToCurrency   string          `json:"to_currency" validate:"required,currency"`
	Rate         decimal.Decimal `json:"rate"`
}

type MovementListParams struct {
	StockID *uuid.UUID
	Type    string
	Limit   int
}

type StockDTO struct {
	ID        uuid.UUID           `json:"id"`
	Currency  enums.Currency      `json:"currency"`
	Location  enums.StockLocation `json:"location"`
	Amount    decimal.Decimal     `json:"amount"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func stockFromModel(s models.Stock) StockDTO {
	return StockDTO{
		ID:        s.ID,
		Currency:  s.Currency,
		Location:  s.Location,
		Amount:    s.Amount,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

type StockOverview struct {
	Stocks []StockDTO      `json:"stocks"`
	Totals []CurrencyTotal `json:"totals"`
}

type StockDetail struct {
	Stock  StockDTO      `json:"stock"`
	Stats  MovementStats `json:"stats"`
	Recent []MovementDTO `json:"recent_movements"`
}

type MovementDTO struct {
	ID                 uuid.UUID          `json:"id"`
	StockID            uuid.UUID          `json:"stock_id"`
	Type               enums.MovementType `json:"type"`
	Amount             decimal.Decimal    `json:"amount"`
	DestinationStockID *uuid.UUID         `json:"destination_stock_id,omitempty"`
	ExchangeRate       *decimal.Decimal   `json:"exchange_rate,omitempty"`
	ConvertedAmount    *decimal.Decimal   `json:"converted_amount,omitempty"`
	Description        *string            `json:"description,omitempty"`
	CreatedByID        uuid.UUID          `json:"created_by_id"`
	CreatedAt          time.Time          `json:"created_at"`
}

func movementFromModel(m models.StockMovement) MovementDTO {
	dto := MovementDTO{
		ID:                 m.ID,
		StockID:            m.StockID,
		Type:               m.MovementType,
		Amount:             m.Amount,
		DestinationStockID: m.DestinationStockID,
		Description:        m.Description,
		CreatedByID:        m.CreatedByID,
		CreatedAt:          m.CreatedAt,
	}
	if m.ExchangeRate.Valid {
		rate := m.ExchangeRate.Decimal
		dto.ExchangeRate = &rate
	}
	if m.ConvertedAmount.Valid {
		converted := m.ConvertedAmount.Decimal
		dto.ConvertedAmount = &converted
	}
	return dto
}

// MovementResult is an applied movement with the balances it produced.
type MovementResult struct {
	Movement    MovementDTO `json:"movement"`
	Source      StockDTO    `json:"source"`
	Destination *StockDTO   `json:"destination,omitempty"`
}

type RateDTO struct {
	ID           uuid.UUID       `json:"id"`
	FromCurrency enums.Currency  `json:"from_currency"`
	ToCurrency   enums.Currency  `json:"to_currency"`
	Rate         decimal.Decimal `json:"rate"`
	Active       bool            `json:"active"`
	CreatedByID  uuid.UUID       `json:"created_by_id"`
	CreatedAt    time.Time       `json:"created_at"`
}

func rateFromModel(r models.ExchangeRate) RateDTO {
	return RateDTO{
		ID:           r.ID,
		FromCurrency: r.FromCurrency,
		ToCurrency:   r.ToCurrency,
		Rate:         r.Rate,
		Active:       r.Active,
		CreatedByID:  r.CreatedByID,
		CreatedAt:    r.CreatedAt,
	}
}

func ratesFromModels(rows []models.ExchangeRate) []RateDTO {
	out := make([]RateDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, rateFromModel(row))
	}
	return out
}
