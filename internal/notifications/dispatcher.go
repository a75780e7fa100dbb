package notifications

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/remitflow-backend/pkg/enums"
	"github.com/angelmondragon/remitflow-backend/pkg/logger"
	"github.com/angelmondragon/remitflow-backend/pkg/outbox"
	"github.com/angelmondragon/remitflow-backend/pkg/outbox/payloads"
)

// Dispatcher is the best-effort side channel used by transfers, the reconciler
// and user management. Callers log returned errors and carry on.
type Dispatcher interface {
	NotifyManagersOfDraft(ctx context.Context, draft DraftNotice) error
	NotifyAgentsOfPromotion(ctx context.Context, promoted []PromotedTransfer, configID uuid.UUID) (int, error)
	NotifyAgentOfManualPromotion(ctx context.Context, transfer PromotedTransfer, promoterName string) error
	NotifyUser(ctx context.Context, userID uuid.UUID, kind enums.NotificationKind, data map[string]any) error
	NotifyAdmin(ctx context.Context, subject, message string, kind enums.NotificationKind, data map[string]any) error
}

// DraftNotice describes a transfer parked in DRAFT for lack of a config.
type DraftNotice struct {
	TransferID uuid.UUID
	Reference  string
	Amount     decimal.Decimal
	Currency   enums.Currency
	AgentID    uuid.UUID
	AgentName  string
}

// PromotedTransfer summarises one DRAFT moved to PENDING.
type PromotedTransfer struct {
	TransferID  uuid.UUID       `json:"id"`
	Reference   string          `json:"reference"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    enums.Currency  `json:"currency"`
	Beneficiary string          `json:"beneficiary"`
	AgentID     uuid.UUID       `json:"agent_id"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// OutboxDispatcher turns notification requests into notification_requested
// outbox events. Each call commits on its own, after the business transaction.
type OutboxDispatcher struct {
	db      txRunner
	emitter outbox.Emitter
	logg    *logger.Logger
}

// NewOutboxDispatcher wires a dispatcher writing to the outbox.
func NewOutboxDispatcher(db txRunner, emitter outbox.Emitter, logg *logger.Logger) (*OutboxDispatcher, error) {
	if db == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &OutboxDispatcher{db: db, emitter: emitter, logg: logg}, nil
}

func (d *OutboxDispatcher) NotifyManagersOfDraft(ctx context.Context, draft DraftNotice) error {
	agent := strings.TrimSpace(draft.AgentName)
	if agent == "" {
		agent = draft.AgentID.String()
	}
	return d.emit(ctx, payloads.NotificationRequestedEvent{
		Audience: enums.AudienceManagers,
		Kind:     enums.NotificationDraftCreated,
		Title:    fmt.Sprintf("Transfer %s needs a commission config", draft.Reference),
		Message: fmt.Sprintf("%s submitted %s %s with no matching commission configuration. It stays in DRAFT until one is activated.",
			agent, draft.Amount.StringFixed(2), draft.Currency),
		Link: transferLink(draft.TransferID),
		Context: map[string]any{
			"transfer_id": draft.TransferID.String(),
			"reference":   draft.Reference,
			"amount":      draft.Amount.StringFixed(2),
			"currency":    string(draft.Currency),
			"agent_id":    draft.AgentID.String(),
		},
	})
}

// NotifyAgentsOfPromotion sends one grouped message per agent and returns how
// many agents were notified. Per-agent failures do not stop the others.
func (d *OutboxDispatcher) NotifyAgentsOfPromotion(ctx context.Context, promoted []PromotedTransfer, configID uuid.UUID) (int, error) {
	groups := GroupByAgent(promoted)
	agentIDs := make([]uuid.UUID, 0, len(groups))
	for agentID := range groups {
		agentIDs = append(agentIDs, agentID)
	}
	sort.Slice(agentIDs, func(i, j int) bool { return agentIDs[i].String() < agentIDs[j].String() })

	notified := 0
	var firstErr error
	for _, agentID := range agentIDs {
		items := groups[agentID]
		references := make([]string, 0, len(items))
		for _, item := range items {
			references = append(references, item.Reference)
		}
		recipient := agentID
		err := d.emit(ctx, payloads.NotificationRequestedEvent{
			Audience: enums.AudienceUser,
			UserID:   &recipient,
			Kind:     enums.NotificationAutoPromotion,
			Title:    fmt.Sprintf("%d transfer(s) moved to PENDING", len(items)),
			Message:  fmt.Sprintf("A commission configuration now covers %s. They are waiting for validation.", strings.Join(references, ", ")),
			Link:     "/transfers?status=PENDING",
			Context: map[string]any{
				"config_id":  configID.String(),
				"references": references,
				"count":      len(items),
			},
		})
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		notified++
	}
	return notified, firstErr
}

func (d *OutboxDispatcher) NotifyAgentOfManualPromotion(ctx context.Context, transfer PromotedTransfer, promoterName string) error {
	recipient := transfer.AgentID
	return d.emit(ctx, payloads.NotificationRequestedEvent{
		Audience: enums.AudienceUser,
		UserID:   &recipient,
		Kind:     enums.NotificationManualPromotion,
		Title:    fmt.Sprintf("Transfer %s promoted", transfer.Reference),
		Message: fmt.Sprintf("%s promoted your transfer of %s %s to %s. It is now PENDING.",
			promoterName, transfer.Amount.StringFixed(2), transfer.Currency, transfer.Beneficiary),
		Link: transferLink(transfer.TransferID),
		Context: map[string]any{
			"transfer_id": transfer.TransferID.String(),
			"reference":   transfer.Reference,
		},
	})
}

func (d *OutboxDispatcher) NotifyUser(ctx context.Context, userID uuid.UUID, kind enums.NotificationKind, data map[string]any) error {
	if userID == uuid.Nil {
		return fmt.Errorf("user id required")
	}
	if !kind.IsValid() {
		return fmt.Errorf("invalid notification kind %q", kind)
	}
	title, message, link := renderUserMessage(kind, data)
	recipient := userID
	return d.emit(ctx, payloads.NotificationRequestedEvent{
		Audience: enums.AudienceUser,
		UserID:   &recipient,
		Kind:     kind,
		Title:    title,
		Message:  message,
		Link:     link,
		Context:  data,
	})
}

func (d *OutboxDispatcher) NotifyAdmin(ctx context.Context, subject, message string, kind enums.NotificationKind, data map[string]any) error {
	if kind == "" {
		kind = enums.NotificationAdminAlert
	}
	if !kind.IsValid() {
		return fmt.Errorf("invalid notification kind %q", kind)
	}
	return d.emit(ctx, payloads.NotificationRequestedEvent{
		Audience: enums.AudienceAdmins,
		Kind:     kind,
		Title:    subject,
		Message:  message,
		Context:  data,
	})
}

func (d *OutboxDispatcher) emit(ctx context.Context, event payloads.NotificationRequestedEvent) error {
	aggregateID := uuid.New()
	if event.UserID != nil {
		aggregateID = *event.UserID
	}
	err := d.db.WithTx(ctx, func(tx *gorm.DB) error {
		return d.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventNotificationRequested,
			AggregateType: enums.AggregateNotification,
			AggregateID:   aggregateID,
			Data:          event,
		})
	})
	if err != nil {
		logCtx := d.logg.WithFields(ctx, map[string]any{
			"notification_kind": string(event.Kind),
			"audience":          string(event.Audience),
		})
		d.logg.Error(logCtx, "queue notification failed", err)
		return err
	}
	return nil
}

// GroupByAgent buckets promoted transfers by owning agent, preserving order.
func GroupByAgent(promoted []PromotedTransfer) map[uuid.UUID][]PromotedTransfer {
	groups := make(map[uuid.UUID][]PromotedTransfer)
	for _, item := range promoted {
		groups[item.AgentID] = append(groups[item.AgentID], item)
	}
	return groups
}

func transferLink(id uuid.UUID) string {
	return "/transfers/" + id.String()
}

func renderUserMessage(kind enums.NotificationKind, data map[string]any) (string, string, string) {
	lookup := func(key string) string {
		if data == nil {
			return ""
		}
		if value, ok := data[key]; ok && value != nil {
			return fmt.Sprint(value)
		}
		return ""
	}
	switch kind {
	case enums.NotificationPasswordSetup:
		return "Your RemitFlow account is ready",
			fmt.Sprintf("An account was opened for %s. Sign in and change your temporary password.", lookup("username")),
			"/account/password"
	case enums.NotificationTransferUpdate:
		return fmt.Sprintf("Transfer %s is now %s", lookup("reference"), lookup("status")),
			strings.TrimSpace(fmt.Sprintf("Status changed to %s. %s", lookup("status"), lookup("comment"))),
			"/transfers/" + lookup("transfer_id")
	default:
		title := lookup("title")
		if title == "" {
			title = "New message"
		}
		return title, lookup("message"), lookup("link")
	}
}
