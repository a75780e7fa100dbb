package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/remitflow-backend/pkg/db/models"
	"github.com/angelmondragon/remitflow-backend/pkg/enums"
	"github.com/angelmondragon/remitflow-backend/pkg/logger"
	"github.com/angelmondragon/remitflow-backend/pkg/outbox"
	"github.com/angelmondragon/remitflow-backend/pkg/outbox/payloads"
)

const notificationConsumerName = "notification-delivery"

var errMalformedRequest = errors.New("malformed notification request")

type notificationWriter interface {
	CreateMany(ctx context.Context, rows []models.Notification) error
}

// RecipientResolver expands group audiences into user ids.
type RecipientResolver interface {
	ListManagerIDs(ctx context.Context) ([]uuid.UUID, error)
	ListSuperuserIDs(ctx context.Context) ([]uuid.UUID, error)
}

type idempotencyGuard interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type messageSource interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// Consumer turns notification_requested events into in-app notification rows.
type Consumer struct {
	repo         notificationWriter
	recipients   RecipientResolver
	subscription messageSource
	idempotency  idempotencyGuard
	logg         *logger.Logger
}

// NewConsumer builds the notification delivery consumer.
func NewConsumer(repo notificationWriter, recipients RecipientResolver, subscription messageSource, guard idempotencyGuard, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if recipients == nil {
		return nil, fmt.Errorf("recipient resolver required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("notification subscription required")
	}
	if guard == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		recipients:   recipients,
		subscription: subscription,
		idempotency:  guard,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg.ID, msg.Attributes, msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// process returns true when the message should be acked.
func (c *Consumer) process(ctx context.Context, messageID string, attributes map[string]string, data []byte) bool {
	eventType := attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": messageID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventNotificationRequested) {
		c.logg.Info(logCtx, "skipping non-notification event")
		return true
	}

	var payload payloads.NotificationRequestedEvent
	envelope, err := outbox.DecodeEnvelope(data, &payload)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode notification request", err)
		return true
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return true
	}

	claimed, err := c.idempotency.Claim(ctx, notificationConsumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return false
	}
	if !claimed {
		c.logg.Info(logCtx, "event already processed")
		return true
	}

	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"audience":          string(payload.Audience),
		"notification_kind": string(payload.Kind),
	})

	if err := c.deliver(ctx, payload); err != nil {
		if errors.Is(err, errMalformedRequest) {
			c.logg.Error(logCtx, "dropping notification request", err)
			return true
		}
		c.logg.Error(logCtx, "notification delivery failed", err)
		if err := c.idempotency.Release(ctx, notificationConsumerName, eventID); err != nil {
			c.logg.Warn(logCtx, "failed to release idempotency claim")
		}
		return false
	}
	c.logg.Info(logCtx, "notification delivered")
	return true
}

func (c *Consumer) deliver(ctx context.Context, payload payloads.NotificationRequestedEvent) error {
	recipients, err := c.resolve(ctx, payload)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}
	kind := payload.Kind
	if !kind.IsValid() {
		kind = enums.NotificationSystemAlert
	}
	var link *string
	if trimmed := strings.TrimSpace(payload.Link); trimmed != "" {
		link = &trimmed
	}

	rows := make([]models.Notification, 0, len(recipients))
	for _, userID := range recipients {
		rows = append(rows, models.Notification{
			UserID:  userID,
			Kind:    kind,
			Title:   strings.TrimSpace(payload.Title),
			Message: strings.TrimSpace(payload.Message),
			Link:    link,
		})
	}
	return c.repo.CreateMany(ctx, rows)
}

func (c *Consumer) resolve(ctx context.Context, payload payloads.NotificationRequestedEvent) ([]uuid.UUID, error) {
	switch payload.Audience {
	case enums.AudienceUser:
		if payload.UserID == nil || *payload.UserID == uuid.Nil {
			return nil, fmt.Errorf("%w: user audience without user id", errMalformedRequest)
		}
		return []uuid.UUID{*payload.UserID}, nil
	case enums.AudienceManagers:
		return c.recipients.ListManagerIDs(ctx)
	case enums.AudienceAdmins:
		return c.recipients.ListSuperuserIDs(ctx)
	default:
		return nil, fmt.Errorf("%w: unknown audience %q", errMalformedRequest, payload.Audience)
	}
}
