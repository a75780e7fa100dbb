package enums

import "fmt"

// TransferStatus maps to the transfer_status enum in Postgres.
type TransferStatus string

const (
	TransferStatusDraft     TransferStatus = "DRAFT"
	TransferStatusPending   TransferStatus = "PENDING"
	TransferStatusValidated TransferStatus = "VALIDATED"
	TransferStatusCompleted TransferStatus = "COMPLETED"
	TransferStatusCanceled  TransferStatus = "CANCELED"
)

var validTransferStatuses = []TransferStatus{
	TransferStatusDraft,
	TransferStatusPending,
	TransferStatusValidated,
	TransferStatusCompleted,
	TransferStatusCanceled,
}

var transferTransitions = map[TransferStatus][]TransferStatus{
	TransferStatusDraft:     {TransferStatusPending},
	TransferStatusPending:   {TransferStatusValidated, TransferStatusCanceled},
	TransferStatusValidated: {TransferStatusCompleted},
}

// String implements fmt.Stringer.
func (s TransferStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is part of the lifecycle.
func (s TransferStatus) IsValid() bool {
	for _, candidate := range validTransferStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves the status.
func (s TransferStatus) IsTerminal() bool {
	return s == TransferStatusCompleted || s == TransferStatusCanceled
}

// CanTransitionTo reports whether next is reachable from s in a single step.
func (s TransferStatus) CanTransitionTo(next TransferStatus) bool {
	for _, candidate := range transferTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseTransferStatus converts raw input into TransferStatus.
func ParseTransferStatus(value string) (TransferStatus, error) {
	for _, candidate := range validTransferStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transfer status %q", value)
}
