package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/remitflow-backend/pkg/enums"
	"github.com/angelmondragon/remitflow-backend/pkg/logger"
	"github.com/angelmondragon/remitflow-backend/pkg/outbox"
	"github.com/angelmondragon/remitflow-backend/pkg/outbox/payloads"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeEmitter struct {
	events []outbox.DomainEvent
	failOn int
	calls  int
}

func (f *fakeEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.calls++
	if f.failOn > 0 && f.calls == f.failOn {
		return errors.New("outbox unavailable")
	}
	f.events = append(f.events, event)
	return nil
}

func newTestDispatcher(t *testing.T, emitter *fakeEmitter) *OutboxDispatcher {
	t.Helper()
	d, err := NewOutboxDispatcher(fakeTxRunner{}, emitter, logger.New(logger.Options{ServiceName: "test"}))
	require.NoError(t, err)
	return d
}

func TestNotifyAgentsOfPromotionGroupsPerAgent(t *testing.T) {
	emitter := &fakeEmitter{}
	d := newTestDispatcher(t, emitter)
	agentA, agentB := uuid.New(), uuid.New()

	notified, err := d.NotifyAgentsOfPromotion(context.Background(), []PromotedTransfer{
		{TransferID: uuid.New(), Reference: "2345-ABCD", AgentID: agentA, Amount: decimal.NewFromInt(30), Currency: enums.CurrencyEUR},
		{TransferID: uuid.New(), Reference: "3456-BCDE", AgentID: agentB, Amount: decimal.NewFromInt(40), Currency: enums.CurrencyEUR},
		{TransferID: uuid.New(), Reference: "4567-CDEF", AgentID: agentA, Amount: decimal.NewFromInt(45), Currency: enums.CurrencyEUR},
	}, uuid.New())
	require.NoError(t, err)
	require.Equal(t, 2, notified)
	require.Len(t, emitter.events, 2)

	perAgent := map[uuid.UUID]payloads.NotificationRequestedEvent{}
	for _, event := range emitter.events {
		require.Equal(t, enums.EventNotificationRequested, event.EventType)
		payload := event.Data.(payloads.NotificationRequestedEvent)
		perAgent[*payload.UserID] = payload
	}
	require.Equal(t, 2, perAgent[agentA].Context["count"])
	require.Equal(t, []string{"2345-ABCD", "4567-CDEF"}, perAgent[agentA].Context["references"])
	require.Equal(t, enums.NotificationAutoPromotion, perAgent[agentB].Kind)
}

func TestNotifyAgentsOfPromotionContinuesAfterFailure(t *testing.T) {
	emitter := &fakeEmitter{failOn: 1}
	d := newTestDispatcher(t, emitter)

	notified, err := d.NotifyAgentsOfPromotion(context.Background(), []PromotedTransfer{
		{Reference: "2345-ABCD", AgentID: uuid.New()},
		{Reference: "3456-BCDE", AgentID: uuid.New()},
	}, uuid.New())
	require.Error(t, err)
	require.Equal(t, 1, notified)
}

func TestNotifyManagersOfDraftTargetsManagersAudience(t *testing.T) {
	emitter := &fakeEmitter{}
	d := newTestDispatcher(t, emitter)

	err := d.NotifyManagersOfDraft(context.Background(), DraftNotice{
		TransferID: uuid.New(),
		Reference:  "2345-ABCD",
		Amount:     decimal.NewFromInt(500),
		Currency:   enums.CurrencyEUR,
		AgentID:    uuid.New(),
		AgentName:  "Alice Ndayishimiye",
	})
	require.NoError(t, err)
	require.Len(t, emitter.events, 1)
	payload := emitter.events[0].Data.(payloads.NotificationRequestedEvent)
	require.Equal(t, enums.AudienceManagers, payload.Audience)
	require.Nil(t, payload.UserID)
	require.Contains(t, payload.Message, "500.00 EUR")
}

func TestNotifyUserValidatesInput(t *testing.T) {
	d := newTestDispatcher(t, &fakeEmitter{})
	require.Error(t, d.NotifyUser(context.Background(), uuid.Nil, enums.NotificationUserMessage, nil))
	require.Error(t, d.NotifyUser(context.Background(), uuid.New(), "bogus", nil))
	require.NoError(t, d.NotifyUser(context.Background(), uuid.New(), enums.NotificationPasswordSetup, map[string]any{"username": "agent.one"}))
}

func TestNotifyAdminDefaultsKind(t *testing.T) {
	emitter := &fakeEmitter{}
	d := newTestDispatcher(t, emitter)
	require.NoError(t, d.NotifyAdmin(context.Background(), "Auto-promotion failed", "boom", "", nil))
	payload := emitter.events[0].Data.(payloads.NotificationRequestedEvent)
	require.Equal(t, enums.NotificationAdminAlert, payload.Kind)
	require.Equal(t, enums.AudienceAdmins, payload.Audience)
}
