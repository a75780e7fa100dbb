package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/remitflow-backend/pkg/enums"
	"github.com/angelmondragon/remitflow-backend/pkg/logger"
	"github.com/angelmondragon/remitflow-backend/pkg/outbox"
)

type fakeSummarizer struct {
	since time.Time
	rows  []outbox.DLQSummary
	err   error
}

func (f *fakeSummarizer) SummarizeSince(ctx context.Context, since time.Time) ([]outbox.DLQSummary, error) {
	f.since = since
	return f.rows, f.err
}

type adminCall struct {
	subject string
	kind    enums.NotificationKind
	data    map[string]any
}

type fakeAdminNotifier struct {
	calls []adminCall
}

func (f *fakeAdminNotifier) NotifyAdmin(ctx context.Context, subject, message string, kind enums.NotificationKind, data map[string]any) error {
	f.calls = append(f.calls, adminCall{subject: subject, kind: kind, data: data})
	return nil
}

func TestDLQAlertJobNotifiesWithBreakdown(t *testing.T) {
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	summarizer := &fakeSummarizer{rows: []outbox.DLQSummary{
		{EventType: enums.EventTransferStatusChanged, ErrorReason: enums.OutboxDLQReasonMaxAttempts, Count: 2},
		{EventType: enums.EventNotificationRequested, ErrorReason: enums.OutboxDLQReasonNonRetryable, Count: 1},
	}}
	notifier := &fakeAdminNotifier{}
	job, err := NewDLQAlertJob(logger.New(logger.Options{ServiceName: "test"}), summarizer, notifier, 5*time.Minute)
	require.NoError(t, err)
	job.(*dlqAlertJob).now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, now.Add(-5*time.Minute), summarizer.since)
	require.Len(t, notifier.calls, 1)
	require.Equal(t, enums.NotificationSystemAlert, notifier.calls[0].kind)
	require.Equal(t, int64(3), notifier.calls[0].data["total"])
	require.Equal(t, map[string]int64{
		"transfer_status_changed/max_attempts":  2,
		"notification_requested/non_retryable": 1,
	}, notifier.calls[0].data["breakdown"])
}

func TestDLQAlertJobQuietWhenEmpty(t *testing.T) {
	notifier := &fakeAdminNotifier{}
	job, err := NewDLQAlertJob(logger.New(logger.Options{ServiceName: "test"}), &fakeSummarizer{}, notifier, time.Minute)
	require.NoError(t, err)
	require.NoError(t, job.Run(context.Background()))
	require.Empty(t, notifier.calls)
}

func TestDLQAlertJobSurfacesQueryError(t *testing.T) {
	job, err := NewDLQAlertJob(logger.New(logger.Options{ServiceName: "test"}), &fakeSummarizer{err: errors.New("db down")}, &fakeAdminNotifier{}, time.Minute)
	require.NoError(t, err)
	require.Error(t, job.Run(context.Background()))

	_, err = NewDLQAlertJob(logger.New(logger.Options{ServiceName: "test"}), &fakeSummarizer{}, &fakeAdminNotifier{}, 0)
	require.Error(t, err)
}
