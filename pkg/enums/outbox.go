package enums

import "slices"

// OutboxAggregateType names the entity an outbox event belongs to. Values
// mirror the aggregate_type_enum Postgres type.
type OutboxAggregateType string

const (
	AggregateTransfer         OutboxAggregateType = "transfer"
	AggregateCommissionConfig OutboxAggregateType = "commission_config"
	AggregateNotification     OutboxAggregateType = "notification"
)

func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains([]OutboxAggregateType{AggregateTransfer, AggregateCommissionConfig, AggregateNotification}, a)
}

// OutboxEventType mirrors event_type_enum.
type OutboxEventType string

const (
	EventTransferStatusChanged OutboxEventType = "transfer_status_changed"
	EventCommissionConfigSaved OutboxEventType = "commission_config_saved"
	EventNotificationRequested OutboxEventType = "notification_requested"
)

func (e OutboxEventType) IsValid() bool {
	return slices.Contains([]OutboxEventType{EventTransferStatusChanged, EventCommissionConfigSaved, EventNotificationRequested}, e)
}

// OutboxDLQErrorReason records why the publisher stopped retrying an event.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	return r == OutboxDLQReasonMaxAttempts || r == OutboxDLQReasonNonRetryable
}
