package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/remitflow-backend/pkg/config"
	"github.com/angelmondragon/remitflow-backend/pkg/db/models"
	"github.com/angelmondragon/remitflow-backend/pkg/enums"
	"github.com/angelmondragon/remitflow-backend/pkg/logger"
	"github.com/angelmondragon/remitflow-backend/pkg/outbox"
	"github.com/angelmondragon/remitflow-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/remitflow-backend/pkg/outbox/registry"
)

// statusChanged builds a transfer row; rows sharing an aggregate share an
// ordering key.
func statusChanged(t *testing.T, aggregate uuid.UUID) models.OutboxEvent {
	t.Helper()
	id := uuid.New()
	return models.OutboxEvent{
		ID:            id,
		EventType:     enums.EventTransferStatusChanged,
		AggregateType: enums.AggregateTransfer,
		AggregateID:   aggregate,
		Payload:       envelopeFor(t, id),
	}
}

func notificationRequested(t *testing.T) models.OutboxEvent {
	t.Helper()
	id := uuid.New()
	return models.OutboxEvent{
		ID:            id,
		EventType:     enums.EventNotificationRequested,
		AggregateType: enums.AggregateNotification,
		AggregateID:   uuid.New(),
		Payload:       envelopeFor(t, id),
	}
}

func envelopeFor(t *testing.T, id uuid.UUID) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    outbox.EnvelopeVersion,
		EventID:    id.String(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	return raw
}

func resolvesTo(topic string, payload any) *fakeRegistry {
	return &fakeRegistry{resolved: &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: topic},
		Payload:    payload,
	}}
}

func transferTopic() *fakeRegistry {
	return resolvesTo("transfer-topic", &payloads.TransferStatusChangedEvent{})
}

// results queues one publish outcome per message; nil means success.
func results(errs ...error) *fakePublisher {
	pub := &fakePublisher{}
	for _, err := range errs {
		pub.results = append(pub.results, fakePublishResult{err: err})
	}
	return pub
}

type harness struct {
	repo    *fakeRepo
	pub     *fakePublisher
	dlq     *fakeDLQRepo
	metrics *fakeMetrics
	svc     *Service
}

func newHarness(t *testing.T, events []models.OutboxEvent, pub *fakePublisher, reg registryResolver, maxAttempts int) *harness {
	t.Helper()
	h := &harness{
		repo:    &fakeRepo{events: events},
		pub:     pub,
		dlq:     &fakeDLQRepo{},
		metrics: &fakeMetrics{},
	}
	cfg := &config.Config{Outbox: config.OutboxConfig{
		BatchSize:    len(events) + 1,
		PollInterval: 100 * time.Millisecond,
		MaxAttempts:  maxAttempts,
	}}
	svc, err := NewService(ServiceParams{
		Config:           cfg,
		Logger:           logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:               &fakeDB{},
		PubSub:           &fakePubSubClient{},
		Repository:       h.repo,
		Registry:         reg,
		PublisherFactory: func(string) publisher { return pub },
		DLQRepository:    h.dlq,
	})
	require.NoError(t, err)
	svc.metrics = h.metrics
	h.svc = svc
	return h
}

func (h *harness) runBatch(t *testing.T) bool {
	t.Helper()
	processed, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	return processed
}

func TestProcessBatchKeepsGoingPastAFailedPublish(t *testing.T) {
	events := []models.OutboxEvent{statusChanged(t, uuid.New()), statusChanged(t, uuid.New())}
	h := newHarness(t, events, results(errors.New("transient"), nil), transferTopic(), 5)

	assert.True(t, h.runBatch(t))
	assert.Equal(t, []uuid.UUID{events[0].ID}, h.repo.failed)
	assert.Equal(t, []uuid.UUID{events[1].ID}, h.repo.published)
	assert.Empty(t, h.dlq.entries)
}

func TestProcessBatchOrdersTransferEventsOnly(t *testing.T) {
	transfer := statusChanged(t, uuid.New())
	events := []models.OutboxEvent{transfer, notificationRequested(t)}
	h := newHarness(t, events, results(errors.New("transient"), nil), transferTopic(), 5)

	h.runBatch(t)

	require.Len(t, h.pub.messages, 2)
	key := "transfer:" + transfer.AggregateID.String()
	assert.Equal(t, key, h.pub.messages[0].OrderingKey)
	assert.Empty(t, h.pub.messages[1].OrderingKey, "notifications are unordered")
	assert.Equal(t, []string{key}, h.pub.resumed)
	assert.Equal(t, 1, h.metrics.failed)
	assert.Equal(t, 1, h.metrics.published)
}

func TestProcessBatchResumesSharedKeyOnce(t *testing.T) {
	aggregate := uuid.New()
	events := []models.OutboxEvent{statusChanged(t, aggregate), statusChanged(t, aggregate)}
	h := newHarness(t, events, results(errors.New("unavailable"), errors.New("ordering key paused")), transferTopic(), 5)

	h.runBatch(t)

	assert.Len(t, h.repo.failed, 2)
	assert.Empty(t, h.repo.published)
	assert.Len(t, h.pub.resumed, 1)
	assert.Equal(t, 2, h.metrics.failed)
}

func TestProcessBatchDeadLetters(t *testing.T) {
	cases := []struct {
		name        string
		event       func(*testing.T) models.OutboxEvent
		pub         *fakePublisher
		reg         registryResolver
		maxAttempts int
		reason      enums.OutboxDLQErrorReason
	}{
		{
			name:        "registry rejects the row",
			event:       func(t *testing.T) models.OutboxEvent { return statusChanged(t, uuid.New()) },
			pub:         results(),
			reg:         &fakeRegistry{err: registry.Permanent(errors.New("invalid payload"))},
			maxAttempts: 5,
			reason:      enums.OutboxDLQReasonNonRetryable,
		},
		{
			name: "last attempt fails",
			event: func(t *testing.T) models.OutboxEvent {
				ev := statusChanged(t, uuid.New())
				ev.AttemptCount = 1
				return ev
			},
			pub:         results(errors.New("transient")),
			reg:         transferTopic(),
			maxAttempts: 2,
			reason:      enums.OutboxDLQReasonMaxAttempts,
		},
		{
			name:        "publisher returns no result",
			event:       func(t *testing.T) models.OutboxEvent { return notificationRequested(t) },
			pub:         &fakePublisher{},
			reg:         resolvesTo("notification-topic", &payloads.NotificationRequestedEvent{}),
			maxAttempts: 5,
			reason:      enums.OutboxDLQReasonNonRetryable,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			event := tc.event(t)
			h := newHarness(t, []models.OutboxEvent{event}, tc.pub, tc.reg, tc.maxAttempts)

			assert.True(t, h.runBatch(t))
			require.Len(t, h.dlq.entries, 1)
			entry := h.dlq.entries[0]
			assert.Equal(t, event.ID, entry.EventID)
			assert.Equal(t, tc.reason, entry.ErrorReason)
			assert.JSONEq(t, string(event.Payload), string(entry.Payload))
			assert.Equal(t, 1, h.metrics.deadLettered)
		})
	}
}

func TestProcessBatchIdle(t *testing.T) {
	h := newHarness(t, nil, results(), &fakeRegistry{}, 5)
	assert.False(t, h.runBatch(t))
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
}

func (f *fakeRepo) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakeDB struct{}

func (f *fakeDB) Ping(context.Context) error {
	return nil
}

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakePubSubClient struct{}

func (f *fakePubSubClient) Ping(context.Context) error {
	return nil
}

func (f *fakePubSubClient) Publisher(name string) *gcppubsub.Publisher {
	return nil
}

type fakePublisher struct {
	results  []publishResult
	messages []*gcppubsub.Message
	resumed  []string
}

func (f *fakePublisher) ResumePublish(orderingKey string) {
	f.resumed = append(f.resumed, orderingKey)
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "", f.err
}

type fakeRegistry struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.resolved == nil {
		return nil, f.err
	}
	resolved := *f.resolved
	resolved.Descriptor.AggregateType = event.AggregateType
	resolved.Envelope.EventID = event.ID.String()
	resolved.Envelope.OccurredAt = time.Now()
	return &resolved, f.err
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQRepo) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeMetrics struct {
	published    int
	failed       int
	deadLettered int
}

func (f *fakeMetrics) IncPublished(string) { f.published++ }

func (f *fakeMetrics) IncFailed(string) { f.failed++ }

func (f *fakeMetrics) IncDeadLettered(string, string) { f.deadLettered++ }
