package commissions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/remitflow-backend/pkg/db/models"
	"github.com/angelmondragon/remitflow-backend/pkg/enums"
	"github.com/angelmondragon/remitflow-backend/pkg/pagination"
)

// ConfigRepository persists commission configs.
type ConfigRepository struct {
	db *gorm.DB
}

// NewConfigRepository binds the repository to a gorm handle.
func NewConfigRepository(db *gorm.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *ConfigRepository) WithTx(tx *gorm.DB) *ConfigRepository {
	if tx == nil {
		return r
	}
	return &ConfigRepository{db: tx}
}

// Create inserts every column so an inactive config is not overridden by the column default.
func (r *ConfigRepository) Create(ctx context.Context, cfg *models.CommissionConfig) error {
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Select("*").Create(cfg).Error
}

func (r *ConfigRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.CommissionConfig, error) {
	var cfg models.CommissionConfig
	if err := r.db.WithContext(ctx).First(&cfg, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FindByIDForUpdate loads the config under a row lock.
func (r *ConfigRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.CommissionConfig, error) {
	var cfg models.CommissionConfig
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&cfg, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FindActiveMatching returns the oldest active config covering amount in currency.
// It returns (nil, nil) when no config applies.
func (r *ConfigRepository) FindActiveMatching(ctx context.Context, currency enums.Currency, amount decimal.Decimal) (*models.CommissionConfig, error) {
	return r.firstMatching(ctx, r.matching(ctx, currency, amount))
}

// FindActiveMatchingForManager narrows FindActiveMatching to configs owned by managerID.
func (r *ConfigRepository) FindActiveMatchingForManager(ctx context.Context, managerID uuid.UUID, currency enums.Currency, amount decimal.Decimal) (*models.CommissionConfig, error) {
	return r.firstMatching(ctx, r.matching(ctx, currency, amount).Where("manager_id = ?", managerID))
}

func (r *ConfigRepository) matching(ctx context.Context, currency enums.Currency, amount decimal.Decimal) *gorm.DB {
	return r.db.WithContext(ctx).
		Where("active = ? AND currency = ? AND min_amount <= ? AND max_amount >= ?", true, currency, amount, amount)
}

func (r *ConfigRepository) firstMatching(ctx context.Context, query *gorm.DB) (*models.CommissionConfig, error) {
	var cfg models.CommissionConfig
	err := query.Order("created_at ASC, id ASC").First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// HasActiveDuplicate reports whether another active config owns the same
// (manager, currency, min, max) tuple. excludeID may be uuid.Nil.
func (r *ConfigRepository) HasActiveDuplicate(ctx context.Context, cfg models.CommissionConfig, excludeID uuid.UUID) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.CommissionConfig{}).
		Where("active = ? AND manager_id = ? AND currency = ? AND min_amount = ? AND max_amount = ?",
			true, cfg.ManagerID, cfg.Currency, cfg.MinAmount, cfg.MaxAmount)
	if excludeID != uuid.Nil {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *ConfigRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.db.WithContext(ctx).Model(&models.CommissionConfig{}).
		Where("id = ?", id).
		Update("active", active).Error
}

// ListActive returns every active config, oldest first.
func (r *ConfigRepository) ListActive(ctx context.Context) ([]models.CommissionConfig, error) {
	var rows []models.CommissionConfig
	if err := r.db.WithContext(ctx).Where("active = ?", true).Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

type configListParams struct {
	ManagerID *uuid.UUID
	Currency  *enums.Currency
	Active    *bool
	Limit     int
	Cursor    *pagination.Cursor
}

// List pages configs newest first.
func (r *ConfigRepository) List(ctx context.Context, params configListParams) ([]models.CommissionConfig, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.CommissionConfig{})
	if params.ManagerID != nil {
		query = query.Where("manager_id = ?", *params.ManagerID)
	}
	if params.Currency != nil {
		query = query.Where("currency = ?", *params.Currency)
	}
	if params.Active != nil {
		query = query.Where("active = ?", *params.Active)
	}

	var rows []models.CommissionConfig
	if err := pagination.Keyset(query, params.Cursor, params.Limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Page(rows, params.Limit, func(row models.CommissionConfig) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	return page, next, nil
}
