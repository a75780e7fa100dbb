package stock

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/remitflow-backend/pkg/db/models"
	"github.com/angelmondragon/remitflow-backend/pkg/enums"
)

// Repository persists stocks, movements and exchange rates.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) CreateStock(ctx context.Context, stock *models.Stock) error {
	return r.db.WithContext(ctx).Create(stock).Error
}

func (r *Repository) FindStock(ctx context.Context, id uuid.UUID) (*models.Stock, error) {
	var stock models.Stock
	if err := r.db.WithContext(ctx).First(&stock, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &stock, nil
}

// FindStocksForUpdate locks the given stocks in id order.
func (r *Repository) FindStocksForUpdate(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]*models.Stock, error) {
	var rows []models.Stock
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]*models.Stock, len(rows))
	for i := range rows {
		out[rows[i].ID] = &rows[i]
	}
	return out, nil
}

func (r *Repository) StockExists(ctx context.Context, currency enums.Currency, location enums.StockLocation) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Stock{}).
		Where("currency = ? AND location = ?", currency, location).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) ListStocks(ctx context.Context) ([]models.Stock, error) {
	var rows []models.Stock
	if err := r.db.WithContext(ctx).Order("currency ASC, location ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CurrencyTotal is the summed balance of every stock in one currency.
type CurrencyTotal struct {
	Currency enums.Currency  `json:"currency"`
	Total    decimal.Decimal `json:"total"`
}

func (r *Repository) TotalsByCurrency(ctx context.Context) ([]CurrencyTotal, error) {
	var rows []CurrencyTotal
	err := r.db.WithContext(ctx).
		Model(&models.Stock{}).
		Select("currency, COALESCE(SUM(amount), 0) AS total").
		Group("currency").
		Order("currency ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) SetStockAmount(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Stock{}).
		Where("id = ?", id).
		Update("amount", amount).Error
}

func (r *Repository) CreateMovement(ctx context.Context, movement *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

type movementListParams struct {
	StockID *uuid.UUID
	Type    *enums.MovementType
	Limit   int
}

// ListMovements returns the most recent movements. A stock filter matches both
// the source and the destination side.
func (r *Repository) ListMovements(ctx context.Context, params movementListParams) ([]models.StockMovement, error) {
	query := r.db.WithContext(ctx).Model(&models.StockMovement{})
	if params.StockID != nil {
		query = query.Where("stock_id = ? OR destination_stock_id = ?", *params.StockID, *params.StockID)
	}
	if params.Type != nil {
		query = query.Where("movement_type = ?", *params.Type)
	}
	var rows []models.StockMovement
	if err := query.Order("created_at DESC, id DESC").Limit(params.Limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// MovementStats aggregates the movements recorded against one stock.
type MovementStats struct {
	TotalIn       decimal.Decimal `json:"total_in"`
	TotalOut      decimal.Decimal `json:"total_out"`
	MovementCount int64           `json:"movement_count"`
}

func (r *Repository) MovementStats(ctx context.Context, stockID uuid.UUID) (MovementStats, error) {
	var stats MovementStats
	err := r.db.WithContext(ctx).
		Model(&models.StockMovement{}).
		Select(`COALESCE(SUM(CASE WHEN movement_type = ? THEN amount ELSE 0 END), 0) AS total_in,
			COALESCE(SUM(CASE WHEN movement_type = ? THEN amount ELSE 0 END), 0) AS total_out,
			COUNT(*) AS movement_count`, enums.MovementTypeIn, enums.MovementTypeOut).
		Where("stock_id = ?", stockID).
		Scan(&stats).Error
	return stats, err
}
