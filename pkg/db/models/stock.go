package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/remitflow-backend/pkg/enums"
)

// Stock is a cash balance bucket for one currency at one location.
type Stock struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Currency  enums.Currency      `gorm:"column:currency;type:currency_enum;not null"`
	Location  enums.StockLocation `gorm:"column:location;type:stock_location_enum;not null"`
	Amount    decimal.Decimal     `gorm:"column:amount;type:numeric(14,4);not null;default:0"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// StockMovement records one applied IN or OUT movement, optionally crediting a destination stock.
type StockMovement struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StockID            uuid.UUID           `gorm:"column:stock_id;type:uuid;not null"`
	MovementType       enums.MovementType  `gorm:"column:movement_type;type:movement_type_enum;not null"`
	Amount             decimal.Decimal     `gorm:"column:amount;type:numeric(14,4);not null"`
	DestinationStockID *uuid.UUID          `gorm:"column:destination_stock_id;type:uuid"`
	ExchangeRate       decimal.NullDecimal `gorm:"column:exchange_rate;type:numeric(14,4)"`
	ConvertedAmount    decimal.NullDecimal `gorm:"column:converted_amount;type:numeric(14,4)"`
	Description        *string             `gorm:"column:description"`
	CreatedByID        uuid.UUID           `gorm:"column:created_by_id;type:uuid;not null"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
}

// ExchangeRate is an append-only manually entered conversion rate.
type ExchangeRate struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FromCurrency enums.Currency  `gorm:"column:from_currency;type:currency_enum;not null"`
	ToCurrency   enums.Currency  `gorm:"column:to_currency;type:currency_enum;not null"`
	Rate         decimal.Decimal `gorm:"column:rate;type:numeric(14,4);not null"`
	Active       bool            `gorm:"column:active;not null"`
	CreatedByID  uuid.UUID       `gorm:"column:created_by_id;type:uuid;not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
}
