package enums

import "testing"

func TestTransactionStatusMonotonic(t *testing.T) {
	if !TransactionStatusPending.CanTransitionTo(TransactionStatusCompleted) {
		t.Fatal("pending -> completed must be allowed")
	}
	if !TransactionStatusPending.CanTransitionTo(TransactionStatusFailed) {
		t.Fatal("pending -> failed must be allowed")
	}
	for _, terminal := range []TransactionStatus{TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled} {
		for _, next := range validTransactionStatuses {
			if terminal.CanTransitionTo(next) {
				t.Fatalf("terminal %s must not transition to %s", terminal, next)
			}
		}
	}
	if TransactionStatusPending.CanTransitionTo("bogus") {
		t.Fatal("unknown status must be rejected")
	}
}

func TestBookingStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to BookingStatus
		want     bool
	}{
		{BookingStatusPending, BookingStatusConfirmed, true},
		{BookingStatusConfirmed, BookingStatusInProgress, true},
		{BookingStatusInProgress, BookingStatusCompleted, true},
		{BookingStatusPending, BookingStatusCancelled, true},
		{BookingStatusConfirmed, BookingStatusCancelled, true},
		{BookingStatusInProgress, BookingStatusCancelled, true},
		{BookingStatusCompleted, BookingStatusCancelled, false},
		{BookingStatusCancelled, BookingStatusConfirmed, false},
		{BookingStatusPending, BookingStatusInProgress, false},
		{BookingStatusConfirmed, BookingStatusCompleted, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Fatalf("%s -> %s: expected %v got %v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestParsersRejectUnknown(t *testing.T) {
	if _, err := ParseTransactionStatus("paid"); err == nil {
		t.Fatal("expected error for unknown transaction status")
	}
	if _, err := ParsePaymentMethod("stripe"); err == nil {
		t.Fatal("expected error for unknown payment method")
	}
	if _, err := ParseBookingStatus("done"); err == nil {
		t.Fatal("expected error for unknown booking status")
	}
	if _, err := ParseCancelRequestStatus("denied"); err == nil {
		t.Fatal("expected error for unknown cancel request status")
	}
}
