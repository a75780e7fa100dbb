package commissions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/remitflow-backend/pkg/db/models"
)

// DistributionRepository persists realized commission splits.
type DistributionRepository struct {
	db *gorm.DB
}

func NewDistributionRepository(db *gorm.DB) *DistributionRepository {
	return &DistributionRepository{db: db}
}

func (r *DistributionRepository) WithTx(tx *gorm.DB) *DistributionRepository {
	if tx == nil {
		return r
	}
	return &DistributionRepository{db: tx}
}

func (r *DistributionRepository) Create(ctx context.Context, dist *models.CommissionDistribution) error {
	if dist.ID == uuid.Nil {
		dist.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(dist).Error
}

func (r *DistributionRepository) ExistsForTransfer(ctx context.Context, transferID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.CommissionDistribution{}).
		Where("transfer_id = ?", transferID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindByTransfer returns (nil, nil) when the transfer has no distribution yet.
func (r *DistributionRepository) FindByTransfer(ctx context.Context, transferID uuid.UUID) (*models.CommissionDistribution, error) {
	var dist models.CommissionDistribution
	err := r.db.WithContext(ctx).First(&dist, "transfer_id = ?", transferID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &dist, nil
}

// Totals aggregates commission amounts.
type Totals struct {
	TransferCount int64           `json:"transfer_count"`
	Total         decimal.Decimal `json:"total_commission"`
	AgentTotal    decimal.Decimal `json:"agent_total"`
	ManagerTotal  decimal.Decimal `json:"manager_total"`
}

// AgentTotals aggregates commission amounts credited to one agent.
type AgentTotals struct {
	AgentID  uuid.UUID `json:"agent_id"`
	Username string    `json:"username"`
	Totals
}

// Totals sums distributions created at or after since, optionally for a single agent.
func (r *DistributionRepository) Totals(ctx context.Context, since time.Time, agentID *uuid.UUID) (Totals, error) {
	var row Totals
	query := r.db.WithContext(ctx).Model(&models.CommissionDistribution{}).
		Select(`COUNT(*) AS transfer_count,
			COALESCE(SUM(total_commission), 0) AS total,
			COALESCE(SUM(declaring_agent_amount), 0) AS agent_total,
			COALESCE(SUM(manager_amount), 0) AS manager_total`).
		Where("created_at >= ?", since)
	if agentID != nil {
		query = query.Where("agent_id = ?", *agentID)
	}
	if err := query.Scan(&row).Error; err != nil {
		return Totals{}, err
	}
	return row, nil
}

// TotalsByAgent groups the same sums per agent, highest agent earnings first.
func (r *DistributionRepository) TotalsByAgent(ctx context.Context, since time.Time) ([]AgentTotals, error) {
	var rows []AgentTotals
	err := r.db.WithContext(ctx).Table("commission_distributions AS d").
		Select(`d.agent_id AS agent_id, u.username AS username,
			COUNT(*) AS transfer_count,
			COALESCE(SUM(d.total_commission), 0) AS total,
			COALESCE(SUM(d.declaring_agent_amount), 0) AS agent_total,
			COALESCE(SUM(d.manager_amount), 0) AS manager_total`).
		Joins("JOIN users u ON u.id = d.agent_id").
		Where("d.created_at >= ?", since).
		Group("d.agent_id, u.username").
		Order("agent_total DESC, u.username ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
