package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/remitflow-backend/pkg/db/models"
	"github.com/angelmondragon/remitflow-backend/pkg/enums"
	"github.com/angelmondragon/remitflow-backend/pkg/logger"
	"github.com/angelmondragon/remitflow-backend/pkg/outbox"
	"github.com/angelmondragon/remitflow-backend/pkg/outbox/payloads"
)

type fakeWriter struct {
	rows []models.Notification
	err  error
}

func (f *fakeWriter) CreateMany(ctx context.Context, rows []models.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, rows...)
	return nil
}

type fakeResolver struct {
	managers []uuid.UUID
	admins   []uuid.UUID
}

func (f fakeResolver) ListManagerIDs(ctx context.Context) ([]uuid.UUID, error) {
	return f.managers, nil
}

func (f fakeResolver) ListSuperuserIDs(ctx context.Context) ([]uuid.UUID, error) {
	return f.admins, nil
}

type fakeGuard struct {
	seen    map[uuid.UUID]bool
	released []uuid.UUID
	err     error
}

func (f *fakeGuard) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.seen == nil {
		f.seen = map[uuid.UUID]bool{}
	}
	claimed := !f.seen[eventID]
	f.seen[eventID] = true
	return claimed, nil
}

func (f *fakeGuard) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	delete(f.seen, eventID)
	f.released = append(f.released, eventID)
	return nil
}

func newTestConsumer(t *testing.T, writer *fakeWriter, resolver fakeResolver, guard *fakeGuard) *Consumer {
	t.Helper()
	return &Consumer{
		repo:        writer,
		recipients:  resolver,
		idempotency: guard,
		logg:        logger.New(logger.Options{ServiceName: "test"}),
	}
}

func envelopeFor(t *testing.T, eventID uuid.UUID, event payloads.NotificationRequestedEvent) []byte {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	raw, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID.String(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	require.NoError(t, err)
	return raw
}

func attrs() map[string]string {
	return map[string]string{"event_type": string(enums.EventNotificationRequested)}
}

func TestConsumerFansOutToManagers(t *testing.T) {
	writer := &fakeWriter{}
	managers := []uuid.UUID{uuid.New(), uuid.New()}
	consumer := newTestConsumer(t, writer, fakeResolver{managers: managers}, &fakeGuard{})

	eventID := uuid.New()
	body := envelopeFor(t, eventID, payloads.NotificationRequestedEvent{
		Audience: enums.AudienceManagers,
		Kind:     enums.NotificationDraftCreated,
		Title:    "Transfer 2345-ABCD needs a commission config",
		Message:  "parked",
		Link:     "/transfers/x",
	})

	require.True(t, consumer.process(context.Background(), "m-1", attrs(), body))
	require.Len(t, writer.rows, 2)
	require.Equal(t, managers[0], writer.rows[0].UserID)
	require.Equal(t, enums.NotificationDraftCreated, writer.rows[1].Kind)
	require.NotNil(t, writer.rows[0].Link)

	require.True(t, consumer.process(context.Background(), "m-1", attrs(), body))
	require.Len(t, writer.rows, 2, "redelivery must not duplicate rows")
}

func TestConsumerDeliversToSingleUser(t *testing.T) {
	writer := &fakeWriter{}
	consumer := newTestConsumer(t, writer, fakeResolver{}, &fakeGuard{})
	agent := uuid.New()

	body := envelopeFor(t, uuid.New(), payloads.NotificationRequestedEvent{
		Audience: enums.AudienceUser,
		UserID:   &agent,
		Kind:     enums.NotificationAutoPromotion,
		Title:    "1 transfer(s) moved to PENDING",
	})
	require.True(t, consumer.process(context.Background(), "m-2", attrs(), body))
	require.Len(t, writer.rows, 1)
	require.Equal(t, agent, writer.rows[0].UserID)
	require.Nil(t, writer.rows[0].Link)
}

func TestConsumerNacksAndReleasesOnWriteFailure(t *testing.T) {
	writer := &fakeWriter{err: errors.New("db down")}
	guard := &fakeGuard{}
	consumer := newTestConsumer(t, writer, fakeResolver{admins: []uuid.UUID{uuid.New()}}, guard)
	eventID := uuid.New()

	body := envelopeFor(t, eventID, payloads.NotificationRequestedEvent{
		Audience: enums.AudienceAdmins,
		Kind:     enums.NotificationAdminAlert,
		Title:    "Auto-promotion failed",
	})
	require.False(t, consumer.process(context.Background(), "m-3", attrs(), body))
	require.Equal(t, []uuid.UUID{eventID}, guard.released)
}

func TestConsumerAcksMalformedRequests(t *testing.T) {
	writer := &fakeWriter{}
	consumer := newTestConsumer(t, writer, fakeResolver{}, &fakeGuard{})

	body := envelopeFor(t, uuid.New(), payloads.NotificationRequestedEvent{Audience: enums.AudienceUser, Kind: enums.NotificationUserMessage})
	require.True(t, consumer.process(context.Background(), "m-4", attrs(), body))
	require.True(t, consumer.process(context.Background(), "m-5", attrs(), []byte("not json")))
	require.True(t, consumer.process(context.Background(), "m-6", map[string]string{"event_type": "transfer_status_changed"}, nil))
	require.Empty(t, writer.rows)
}

func TestConsumerNacksWhenIdempotencyStoreFails(t *testing.T) {
	consumer := newTestConsumer(t, &fakeWriter{}, fakeResolver{}, &fakeGuard{err: errors.New("redis down")})
	body := envelopeFor(t, uuid.New(), payloads.NotificationRequestedEvent{Audience: enums.AudienceAdmins})
	require.False(t, consumer.process(context.Background(), "m-7", attrs(), body))
}

func TestNewConsumerValidatesDependencies(t *testing.T) {
	_, err := NewConsumer(nil, fakeResolver{}, nil, &fakeGuard{}, nil)
	require.Error(t, err)
}
