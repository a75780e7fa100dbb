package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/remitflow-backend/pkg/db/models"
	"github.com/angelmondragon/remitflow-backend/pkg/enums"
)

// DLQRepository stores outbox rows the relay gave up on.
type DLQRepository struct {
	db *gorm.DB
}

// DLQSummary counts dead letters per event type and reason.
type DLQSummary struct {
	EventType   enums.OutboxEventType      `gorm:"column:event_type"`
	ErrorReason enums.OutboxDLQErrorReason `gorm:"column:error_reason"`
	Count       int64                      `gorm:"column:count"`
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// InsertTx writes entry in the relay's transaction. The error message is
// capped like outbox_events.last_error.
func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.ErrorMessage != nil && len(*entry.ErrorMessage) > maxLastErrorLen {
		msg := (*entry.ErrorMessage)[:maxLastErrorLen]
		entry.ErrorMessage = &msg
	}
	return tx.Create(&entry).Error
}

// SummarizeSince groups dead letters recorded at or after since.
func (r *DLQRepository) SummarizeSince(ctx context.Context, since time.Time) ([]DLQSummary, error) {
	var rows []DLQSummary
	err := r.db.WithContext(ctx).
		Model(&models.OutboxDLQ{}).
		Select("event_type, error_reason, COUNT(*) AS count").
		Where("failed_at >= ?", since).
		Group("event_type, error_reason").
		Order("event_type, error_reason").
		Scan(&rows).Error
	return rows, err
}
