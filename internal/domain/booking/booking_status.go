package booking

import "fmt"

// BookingStatus represents the current state of a booking in its lifecycle.
type BookingStatus string

const (
	StatusDraft          BookingStatus = "DRAFT"
	StatusWaitingPayment BookingStatus = "WAITING_PAYMENT"
	StatusConfirmed      BookingStatus = "CONFIRMED"
	StatusCanceled       BookingStatus = "CANCELED"
)

// validTransitions defines the state machine for booking status transitions.
var validTransitions = map[BookingStatus][]BookingStatus{
	StatusDraft:          {StatusWaitingPayment, StatusCanceled},
	StatusWaitingPayment: {StatusConfirmed, StatusCanceled},
	StatusConfirmed:      {},
	StatusCanceled:       {},
}

// BlockingStatuses are the statuses that hold a slot on a resource.
func BlockingStatuses() []BookingStatus {
	return []BookingStatus{StatusWaitingPayment, StatusConfirmed}
}

// IsValid returns true if the status is a recognized booking status.
func (s BookingStatus) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this status to the target is allowed.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible from this status.
func (s BookingStatus) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

// Blocks reports whether a booking in this status occupies its interval.
func (s BookingStatus) Blocks() bool {
	return s == StatusWaitingPayment || s == StatusConfirmed
}

func (s BookingStatus) String() string {
	return string(s)
}

// ParseBookingStatus converts a string to a BookingStatus, returning an error if invalid.
func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid booking status: %s", s)
	}
	return status, nil
}
