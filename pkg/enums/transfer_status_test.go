package enums

import "testing"

func TestTransferStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to TransferStatus
		want     bool
	}{
		{TransferStatusDraft, TransferStatusPending, true},
		{TransferStatusDraft, TransferStatusValidated, false},
		{TransferStatusPending, TransferStatusValidated, true},
		{TransferStatusPending, TransferStatusCanceled, true},
		{TransferStatusPending, TransferStatusDraft, false},
		{TransferStatusValidated, TransferStatusCompleted, true},
		{TransferStatusValidated, TransferStatusCanceled, false},
		{TransferStatusCompleted, TransferStatusPending, false},
		{TransferStatusCanceled, TransferStatusPending, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Fatalf("%s -> %s: expected %v got %v", tc.from, tc.to, tc.want, got)
		}
	}
	if !TransferStatusCompleted.IsTerminal() || !TransferStatusCanceled.IsTerminal() || TransferStatusPending.IsTerminal() {
		t.Fatal("unexpected terminal classification")
	}
}

func TestParseTransferStatus(t *testing.T) {
	if got, err := ParseTransferStatus("PENDING"); err != nil || got != TransferStatusPending {
		t.Fatalf("unexpected parse result %q %v", got, err)
	}
	if _, err := ParseTransferStatus("pending"); err == nil {
		t.Fatal("expected lowercase status to be rejected")
	}
}
