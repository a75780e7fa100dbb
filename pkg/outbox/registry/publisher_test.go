package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/remitflow-backend/pkg/config"
	"github.com/angelmondragon/remitflow-backend/pkg/db/models"
	"github.com/angelmondragon/remitflow-backend/pkg/enums"
	"github.com/angelmondragon/remitflow-backend/pkg/outbox"
	"github.com/angelmondragon/remitflow-backend/pkg/outbox/payloads"
)

func TestEventRegistryResolveNotificationRequested(t *testing.T) {
	reg := newTestEventRegistry(t)

	userID := uuid.New()
	payloadBytes := mustMarshal(t, payloads.NotificationRequestedEvent{
		Audience: enums.AudienceUser,
		UserID:   &userID,
		Kind:     enums.NotificationAutoPromotion,
		Title:    "Transfers promoted",
		Message:  "2 transfers moved to pending",
	})

	resolved, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventNotificationRequested,
		AggregateType: enums.AggregateNotification,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelope(t, payloadBytes),
	})
	require.NoError(t, err)
	assert.Equal(t, "notification-topic", resolved.Descriptor.Topic)

	payload, ok := resolved.Payload.(*payloads.NotificationRequestedEvent)
	require.True(t, ok, "unexpected payload type %T", resolved.Payload)
	require.NotNil(t, payload.UserID)
	assert.Equal(t, userID, *payload.UserID)
	assert.NotEmpty(t, resolved.Envelope.EventID)
	assert.False(t, resolved.Envelope.OccurredAt.IsZero())
}

func TestEventRegistryRoutesTransferEvents(t *testing.T) {
	reg := newTestEventRegistry(t)

	resolved, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventTransferStatusChanged,
		AggregateType: enums.AggregateTransfer,
		AggregateID:   uuid.New(),
		Payload: mustEnvelope(t, mustMarshal(t, payloads.TransferStatusChangedEvent{
			TransferID: uuid.New(),
			From:       enums.TransferStatusDraft,
			To:         enums.TransferStatusPending,
		})),
	})
	require.NoError(t, err)
	assert.Equal(t, "transfer-topic", resolved.Descriptor.Topic)

	assert.Equal(t, []string{"notification-topic", "transfer-topic"}, reg.Topics())
}

func TestEventRegistryRejectsEnvelopeTypeMismatch(t *testing.T) {
	reg := newTestEventRegistry(t)
	raw := mustMarshal(t, outbox.PayloadEnvelope{
		Version:   outbox.EnvelopeVersion,
		EventID:   uuid.NewString(),
		EventType: enums.EventCommissionConfigSaved,
		Data:      []byte(`{"to":"PENDING"}`),
	})

	_, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventTransferStatusChanged,
		AggregateType: enums.AggregateTransfer,
		AggregateID:   uuid.New(),
		Payload:       raw,
	})
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.Contains(t, err.Error(), "envelope says")
}

func TestPermanentKeepsCause(t *testing.T) {
	cause := errors.New("bad payload")
	err := Permanent(cause)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsPermanent(cause))
}

func TestEventRegistryResolveNonRetryable(t *testing.T) {
	reg := newTestEventRegistry(t)

	cases := []struct {
		name  string
		event models.OutboxEvent
	}{
		{
			name: "unknown event",
			event: models.OutboxEvent{
				EventType:     enums.OutboxEventType("stock_moved"),
				AggregateType: enums.AggregateTransfer,
				AggregateID:   uuid.New(),
				Payload:       mustEnvelope(t, []byte(`{}`)),
			},
		},
		{
			name: "aggregate mismatch",
			event: models.OutboxEvent{
				EventType:     enums.EventTransferStatusChanged,
				AggregateType: enums.AggregateNotification,
				AggregateID:   uuid.New(),
				Payload:       mustEnvelope(t, []byte(`{"to":"PENDING"}`)),
			},
		},
		{
			name: "missing aggregate id",
			event: models.OutboxEvent{
				EventType:     enums.EventTransferStatusChanged,
				AggregateType: enums.AggregateTransfer,
				AggregateID:   uuid.Nil,
				Payload:       mustEnvelope(t, []byte(`{}`)),
			},
		},
		{
			name: "null payload",
			event: models.OutboxEvent{
				EventType:     enums.EventNotificationRequested,
				AggregateType: enums.AggregateNotification,
				AggregateID:   uuid.New(),
				Payload:       mustEnvelope(t, []byte("null")),
			},
		},
		{
			name: "broken envelope",
			event: models.OutboxEvent{
				EventType:     enums.EventNotificationRequested,
				AggregateType: enums.AggregateNotification,
				AggregateID:   uuid.New(),
				Payload:       json.RawMessage(`{"data":`),
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := reg.Resolve(tc.event)
			require.Error(t, err)
			assert.True(t, IsPermanent(err), "expected non-retryable error, got %v", err)
		})
	}
}

func TestNewEventRegistryRequiresTopics(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{NotificationTopic: "n"})
	require.Error(t, err)
	_, err = NewEventRegistry(config.PubSubConfig{TransferTopic: "t"})
	require.Error(t, err)
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{
		TransferTopic:     "transfer-topic",
		NotificationTopic: "notification-topic",
	})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func mustEnvelope(t *testing.T, payload []byte) json.RawMessage {
	t.Helper()
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return data
}
