package enums

import "fmt"

// BookingStatus tracks the rental lifecycle of a materialized booking.
type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "pending"
	BookingStatusConfirmed  BookingStatus = "confirmed"
	BookingStatusInProgress BookingStatus = "in_progress"
	BookingStatusCompleted  BookingStatus = "completed"
	BookingStatusCancelled  BookingStatus = "cancelled"
)

var validBookingStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusConfirmed,
	BookingStatusInProgress,
	BookingStatusCompleted,
	BookingStatusCancelled,
}

// String implements fmt.Stringer.
func (b BookingStatus) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BookingStatus.
func (b BookingStatus) IsValid() bool {
	for _, candidate := range validBookingStatuses {
		if candidate == b {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the booking can no longer move.
func (b BookingStatus) IsTerminal() bool {
	return b == BookingStatusCompleted || b == BookingStatusCancelled
}

// CanTransitionTo enforces pending→confirmed→in_progress→completed, with
// cancellation allowed from any non-terminal state.
func (b BookingStatus) CanTransitionTo(next BookingStatus) bool {
	if !next.IsValid() || b == next || b.IsTerminal() {
		return false
	}
	if next == BookingStatusCancelled {
		return true
	}
	switch b {
	case BookingStatusPending:
		return next == BookingStatusConfirmed
	case BookingStatusConfirmed:
		return next == BookingStatusInProgress
	case BookingStatusInProgress:
		return next == BookingStatusCompleted
	default:
		return false
	}
}

// ParseBookingStatus converts raw input into a BookingStatus.
func ParseBookingStatus(value string) (BookingStatus, error) {
	for _, candidate := range validBookingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid booking status %q", value)
}
