package transfers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/remitflow-backend/pkg/db/models"
	"github.com/angelmondragon/remitflow-backend/pkg/enums"
	"github.com/angelmondragon/remitflow-backend/pkg/pagination"
)

// Repository persists transfers.
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

func (r *Repository) Create(ctx context.Context, transfer *models.Transfer) error {
	if transfer.ID == uuid.Nil {
		transfer.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(transfer).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transfer, error) {
	var transfer models.Transfer
	if err := r.db.WithContext(ctx).First(&transfer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &transfer, nil
}

// FindByIDForUpdate loads the transfer under SELECT ... FOR UPDATE.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Transfer, error) {
	var transfer models.Transfer
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&transfer, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &transfer, nil
}

func (r *Repository) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Transfer{}).
		Where("reference_id = ?", reference).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CompareAndSetStatus applies updates only while the row still holds from and
// returns the number of rows changed.
func (r *Repository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from enums.TransferStatus, updates map[string]any) (int64, error) {
	updates["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&models.Transfer{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return res.RowsAffected, res.Error
}

// ListDraftsMatching returns DRAFT transfers in currency with amount inside [min, max], oldest first.
func (r *Repository) ListDraftsMatching(ctx context.Context, currency enums.Currency, min, max decimal.Decimal) ([]models.Transfer, error) {
	var rows []models.Transfer
	err := r.db.WithContext(ctx).
		Where("status = ? AND sent_currency = ? AND amount >= ? AND amount <= ?",
			enums.TransferStatusDraft, currency, min, max).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FindUser loads the agent or actor row referenced by a transfer.
func (r *Repository) FindUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

type listParams struct {
	AgentID  *uuid.UUID
	Statuses []enums.TransferStatus
	Currency *enums.Currency
	Search   string
	Limit    int
	Cursor   *pagination.Cursor
}

// List pages transfers newest first.
func (r *Repository) List(ctx context.Context, params listParams) ([]models.Transfer, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.Transfer{})
	if params.AgentID != nil {
		query = query.Where("agent_id = ?", *params.AgentID)
	}
	if len(params.Statuses) > 0 {
		query = query.Where("status IN ?", params.Statuses)
	}
	if params.Currency != nil {
		query = query.Where("sent_currency = ?", *params.Currency)
	}
	if params.Search != "" {
		like := "%" + params.Search + "%"
		query = query.Where("(reference_id LIKE ? OR LOWER(beneficiary_name) LIKE LOWER(?) OR beneficiary_phone LIKE ?)", like, like, like)
	}

	var rows []models.Transfer
	if err := pagination.Keyset(query, params.Cursor, params.Limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Page(rows, params.Limit, func(row models.Transfer) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	return page, next, nil
}
