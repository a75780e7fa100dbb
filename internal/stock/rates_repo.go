package stock

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/remitflow-backend/pkg/db/models"
	"github.com/angelmondragon/remitflow-backend/pkg/enums"
)

func (r *Repository) CreateRate(ctx context.Context, rate *models.ExchangeRate) error {
	return r.db.WithContext(ctx).Select("*").Create(rate).Error
}

func (r *Repository) FindRate(ctx context.Context, id uuid.UUID) (*models.ExchangeRate, error) {
	var rate models.ExchangeRate
	if err := r.db.WithContext(ctx).First(&rate, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rate, nil
}

func (r *Repository) FindRateForUpdate(ctx context.Context, id uuid.UUID) (*models.ExchangeRate, error) {
	var rate models.ExchangeRate
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&rate, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &rate, nil
}

// LatestActiveRate returns nil when the pair has no active rate.
func (r *Repository) LatestActiveRate(ctx context.Context, from, to enums.Currency) (*models.ExchangeRate, error) {
	var rate models.ExchangeRate
	err := r.db.WithContext(ctx).
		Where("from_currency = ? AND to_currency = ? AND active = ?", from, to, true).
		Order("created_at DESC, id DESC").
		First(&rate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rate, nil
}

// DeactivatePair switches off every active rate of the pair except keep.
func (r *Repository) DeactivatePair(ctx context.Context, from, to enums.Currency, keep uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ExchangeRate{}).
		Where("from_currency = ? AND to_currency = ? AND active = ? AND id <> ?", from, to, true, keep).
		Update("active", false)
	return res.RowsAffected, res.Error
}

func (r *Repository) SetRateActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.db.WithContext(ctx).
		Model(&models.ExchangeRate{}).
		Where("id = ?", id).
		Update("active", active).Error
}

func (r *Repository) DeleteRate(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.ExchangeRate{}, "id = ?", id).Error
}

func (r *Repository) ListRates(ctx context.Context, activeOnly bool, limit int) ([]models.ExchangeRate, error) {
	query := r.db.WithContext(ctx).Model(&models.ExchangeRate{})
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var rows []models.ExchangeRate
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) RateHistory(ctx context.Context, from, to enums.Currency) ([]models.ExchangeRate, error) {
	var rows []models.ExchangeRate
	err := r.db.WithContext(ctx).
		Where("from_currency = ? AND to_currency = ?", from, to).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
