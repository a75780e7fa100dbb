package payloads

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/remitflow-backend/pkg/enums"
)

// TransferStatusChangedEvent is emitted in the same transaction as every transfer transition.
type TransferStatusChangedEvent struct {
	TransferID  uuid.UUID            `json:"transfer_id"`
	ReferenceID string               `json:"reference_id"`
	AgentID     uuid.UUID            `json:"agent_id"`
	From        enums.TransferStatus `json:"from,omitempty"`
	To          enums.TransferStatus `json:"to"`
	Amount      string               `json:"amount"`
	Currency    enums.Currency       `json:"currency"`
	Comment     string               `json:"comment,omitempty"`
}

// CommissionConfigSavedEvent is emitted whenever a commission config is created, toggled or replaced.
type CommissionConfigSavedEvent struct {
	ConfigID   uuid.UUID      `json:"config_id"`
	ManagerID  uuid.UUID      `json:"manager_id"`
	Currency   enums.Currency `json:"currency"`
	MinAmount  string         `json:"min_amount"`
	MaxAmount  string         `json:"max_amount"`
	Active     bool           `json:"active"`
	Created    bool           `json:"created"`
	PreviousID *uuid.UUID     `json:"previous_id,omitempty"`
}

// NotificationRequestedEvent asks the notification worker to deliver a message.
// UserID is set only for the user audience; managers and admins fan out at delivery time.
type NotificationRequestedEvent struct {
	Audience enums.NotificationAudience `json:"audience"`
	UserID   *uuid.UUID                 `json:"user_id,omitempty"`
	Kind     enums.NotificationKind     `json:"kind"`
	Title    string                     `json:"title"`
	Message  string                     `json:"message"`
	Link     string                     `json:"link,omitempty"`
	Context  map[string]any             `json:"context,omitempty"`
}
