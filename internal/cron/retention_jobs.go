package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/remitflow-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type purgeFunc func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)

type outboxPurger interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type notificationPurger interface {
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// retentionJob deletes rows older than a fixed number of days.
type retentionJob struct {
	name  string
	days  int
	logg  *logger.Logger
	db    txRunner
	purge purgeFunc
	now   func() time.Time
}

func newRetentionJob(name string, days int, logg *logger.Logger, db txRunner, purge purgeFunc) (*retentionJob, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if db == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if days <= 0 {
		return nil, fmt.Errorf("%s: retention days must be positive", name)
	}
	return &retentionJob{name: name, days: days, logg: logg, db: db, purge: purge, now: time.Now}, nil
}

// NewOutboxRetentionJob purges published outbox rows.
func NewOutboxRetentionJob(logg *logger.Logger, db txRunner, repo outboxPurger, days int) (Job, error) {
	if repo == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	return newRetentionJob("outbox-retention", days, logg, db, repo.DeletePublishedBefore)
}

// NewNotificationCleanupJob purges in-app notifications, read or not.
func NewNotificationCleanupJob(logg *logger.Logger, db txRunner, repo notificationPurger, days int) (Job, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	return newRetentionJob("notification-cleanup", days, logg, db, repo.DeleteOlderThan)
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.days)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := j.purge(ctx, tx, cutoff)
		deleted = n
		return err
	})
	if err != nil {
		return fmt.Errorf("purge before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "retention purge complete")
	return nil
}
