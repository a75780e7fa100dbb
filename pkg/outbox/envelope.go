package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/remitflow-backend/pkg/auth"
	"github.com/angelmondragon/remitflow-backend/pkg/enums"
)

// EnvelopeVersion is the envelope layout Emit writes.
const EnvelopeVersion = 1

var ErrEmptyPayload = errors.New("envelope carries no data")

// ActorRef names the user behind an event. Events without one were caused
// by the system (cron, reconciler).
type ActorRef struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role,omitempty"`
}

func ActorOf(a *auth.Actor) *ActorRef {
	if a == nil {
		return nil
	}
	return &ActorRef{UserID: a.UserID, Role: a.Role()}
}

// PayloadEnvelope is stored in outbox_events.payload and published verbatim
// as the Pub/Sub message body. EventID equals the outbox row id.
type PayloadEnvelope struct {
	Version       int                       `json:"version"`
	EventID       string                    `json:"event_id"`
	EventType     enums.OutboxEventType     `json:"event_type,omitempty"`
	AggregateType enums.OutboxAggregateType `json:"aggregate_type,omitempty"`
	AggregateID   string                    `json:"aggregate_id,omitempty"`
	OccurredAt    time.Time                 `json:"occurred_at"`
	Actor         *ActorRef                 `json:"actor,omitempty"`
	Data          json.RawMessage           `json:"data"`
}

// DecodeEnvelope parses raw and unmarshals its data into out.
func DecodeEnvelope(raw []byte, out any) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return env, ErrEmptyPayload
	}
	if err := json.Unmarshal(data, out); err != nil {
		return env, fmt.Errorf("decode %s data: %w", env.EventType, err)
	}
	return env, nil
}
