package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/remitflow-backend/pkg/enums"
	"github.com/angelmondragon/remitflow-backend/pkg/logger"
	"github.com/angelmondragon/remitflow-backend/pkg/outbox"
)

type deadLetterSummarizer interface {
	SummarizeSince(ctx context.Context, since time.Time) ([]outbox.DLQSummary, error)
}

type adminNotifier interface {
	NotifyAdmin(ctx context.Context, subject, message string, kind enums.NotificationKind, data map[string]any) error
}

// dlqAlertJob tells superusers about outbox events that were dead-lettered
// during the previous window.
type dlqAlertJob struct {
	logg     *logger.Logger
	dlq      deadLetterSummarizer
	notifier adminNotifier
	window   time.Duration
	now      func() time.Time
}

func NewDLQAlertJob(logg *logger.Logger, dlq deadLetterSummarizer, notifier adminNotifier, window time.Duration) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if dlq == nil {
		return nil, fmt.Errorf("dlq repository required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("admin notifier required")
	}
	if window <= 0 {
		return nil, fmt.Errorf("alert window must be positive")
	}
	return &dlqAlertJob{logg: logg, dlq: dlq, notifier: notifier, window: window, now: time.Now}, nil
}

func (j *dlqAlertJob) Name() string { return "outbox-dlq-alert" }

func (j *dlqAlertJob) Run(ctx context.Context) error {
	since := j.now().UTC().Add(-j.window)
	rows, err := j.dlq.SummarizeSince(ctx, since)
	if err != nil {
		return fmt.Errorf("summarize dead letters: %w", err)
	}

	var total int64
	breakdown := make(map[string]int64, len(rows))
	for _, row := range rows {
		total += row.Count
		breakdown[string(row.EventType)+"/"+string(row.ErrorReason)] += row.Count
	}
	if total == 0 {
		return nil
	}

	j.logg.Warn(j.logg.WithFields(ctx, map[string]any{
		"since":        since,
		"dead_letters": total,
		"breakdown":    breakdown,
	}), "outbox dead letters recorded")

	message := fmt.Sprintf("%d outbox event(s) could not be delivered since %s.", total, since.Format(time.RFC3339))
	if err := j.notifier.NotifyAdmin(ctx, "Undelivered events", message, enums.NotificationSystemAlert, map[string]any{
		"since":     since,
		"total":     total,
		"breakdown": breakdown,
	}); err != nil {
		return fmt.Errorf("notify admins: %w", err)
	}
	return nil
}
