package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/remitflow-backend/pkg/logger"
)

type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

type fakePurger struct {
	cutoff time.Time
	calls  int
	err    error
}

func (f *fakePurger) DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	return f.record(cutoff)
}

func (f *fakePurger) DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	return f.record(cutoff)
}

func (f *fakePurger) record(cutoff time.Time) (int64, error) {
	f.calls++
	f.cutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return 3, nil
}

func TestRetentionJobsUseConfiguredDays(t *testing.T) {
	now := time.Date(2026, 3, 31, 8, 0, 0, 0, time.UTC)
	logg := logger.New(logger.Options{ServiceName: "test"})

	outboxRepo := &fakePurger{}
	outboxJob, err := NewOutboxRetentionJob(logg, passthroughTx{}, outboxRepo, 30)
	if err != nil {
		t.Fatalf("outbox job: %v", err)
	}
	outboxJob.(*retentionJob).now = func() time.Time { return now }

	notifRepo := &fakePurger{}
	notifJob, err := NewNotificationCleanupJob(logg, passthroughTx{}, notifRepo, 90)
	if err != nil {
		t.Fatalf("notification job: %v", err)
	}
	notifJob.(*retentionJob).now = func() time.Time { return now }

	ctx := context.Background()
	if err := outboxJob.Run(ctx); err != nil {
		t.Fatalf("outbox run: %v", err)
	}
	if err := notifJob.Run(ctx); err != nil {
		t.Fatalf("notification run: %v", err)
	}
	if want := now.AddDate(0, 0, -30); !outboxRepo.cutoff.Equal(want) {
		t.Fatalf("outbox cutoff %s, want %s", outboxRepo.cutoff, want)
	}
	if want := now.AddDate(0, 0, -90); !notifRepo.cutoff.Equal(want) {
		t.Fatalf("notification cutoff %s, want %s", notifRepo.cutoff, want)
	}
	if outboxJob.Name() != "outbox-retention" || notifJob.Name() != "notification-cleanup" {
		t.Fatal("unexpected job names")
	}
}

func TestRetentionJobPropagatesError(t *testing.T) {
	repo := &fakePurger{err: errors.New("boom")}
	job, err := NewOutboxRetentionJob(logger.New(logger.Options{ServiceName: "test"}), passthroughTx{}, repo, 7)
	if err != nil {
		t.Fatalf("job: %v", err)
	}
	if err := job.Run(context.Background()); !errors.Is(err, repo.err) {
		t.Fatalf("expected wrapped repo error, got %v", err)
	}
}

func TestRetentionJobRejectsNonPositiveDays(t *testing.T) {
	if _, err := NewNotificationCleanupJob(logger.New(logger.Options{ServiceName: "test"}), passthroughTx{}, &fakePurger{}, 0); err == nil {
		t.Fatal("expected error for zero retention")
	}
}
