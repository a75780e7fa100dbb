package outbox

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/remitflow-backend/pkg/db/dbtest"
	"github.com/angelmondragon/remitflow-backend/pkg/db/models"
	"github.com/angelmondragon/remitflow-backend/pkg/enums"
)

func deadLetter(eventType enums.OutboxEventType, reason enums.OutboxDLQErrorReason, failedAt time.Time, message string) models.OutboxDLQ {
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateTransfer,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{}`),
		AttemptCount:  3,
	}
	return event.DeadLetter(reason, errors.New(message), failedAt)
}

func TestDLQRepositoryInsertCapsMessageAndSummarizes(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewDLQRepository(conn)
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

	long := strings.Repeat("x", maxLastErrorLen+50)
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		for _, entry := range []models.OutboxDLQ{
			deadLetter(enums.EventTransferStatusChanged, enums.OutboxDLQReasonMaxAttempts, now.Add(-time.Minute), long),
			deadLetter(enums.EventTransferStatusChanged, enums.OutboxDLQReasonMaxAttempts, now.Add(-2*time.Minute), "timeout"),
			deadLetter(enums.EventNotificationRequested, enums.OutboxDLQReasonNonRetryable, now.Add(-3*time.Minute), "bad payload"),
			deadLetter(enums.EventNotificationRequested, enums.OutboxDLQReasonNonRetryable, now.Add(-2*time.Hour), "old"),
		} {
			if err := repo.InsertTx(tx, entry); err != nil {
				return err
			}
		}
		return nil
	}))

	var stored models.OutboxDLQ
	require.NoError(t, conn.Order("failed_at DESC").First(&stored).Error)
	require.NotNil(t, stored.ErrorMessage)
	require.Len(t, *stored.ErrorMessage, maxLastErrorLen)
	require.Equal(t, 3, stored.AttemptCount)
	require.Equal(t, enums.AggregateTransfer, stored.AggregateType)

	summary, err := repo.SummarizeSince(context.Background(), now.Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, []DLQSummary{
		{EventType: enums.EventNotificationRequested, ErrorReason: enums.OutboxDLQReasonNonRetryable, Count: 1},
		{EventType: enums.EventTransferStatusChanged, ErrorReason: enums.OutboxDLQReasonMaxAttempts, Count: 2},
	}, summary)
}

func TestDLQRepositoryInsertNeedsTransaction(t *testing.T) {
	repo := NewDLQRepository(nil)
	require.Error(t, repo.InsertTx(nil, models.OutboxDLQ{}))
}
