package booking

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/resbook/service-booking/pkg/domain"
)

const (
	CodeBookingConflict  = "BOOKING_CONFLICT"
	CodeInvalidTimeRange = "INVALID_TIME_RANGE"
)

// ErrOverlapViolation is returned by stores when the persistent overlap
// constraint rejects a write.
var ErrOverlapViolation = errors.New("booking overlap constraint violated")

// NewTimeRangeError reports an interval whose end is not after its start.
func NewTimeRangeError(start, end time.Time) *domain.DomainError {
	return domain.NewValidationErrorWithCode(CodeInvalidTimeRange,
		fmt.Sprintf("Invalid time range: start=%s, end=%s", start.Format(time.RFC3339), end.Format(time.RFC3339))).
		WithDetail("start", start).
		WithDetail("end", end)
}

// NewConflictError reports that [start, end) on resourceID is already held.
func NewConflictError(resourceID uuid.UUID, start, end time.Time) *domain.DomainError {
	return domain.New(domain.KindConflict, CodeBookingConflict,
		fmt.Sprintf("Booking conflict for resource %s in range [%s - %s]",
			resourceID, start.Format(time.RFC3339), end.Format(time.RFC3339))).
		WithDetail("resource_id", resourceID.String()).
		WithDetail("start", start).
		WithDetail("end", end)
}

// NewStatusError reports an operation attempted from the wrong status.
func NewStatusError(bookingID uuid.UUID, current BookingStatus, expected string) *domain.DomainError {
	return domain.New(domain.KindInvalidState, domain.CodeInvalidStatus,
		fmt.Sprintf("Invalid booking status for %s. Current=%s, expected: %s", bookingID, current, expected)).
		WithDetail("booking_id", bookingID.String()).
		WithDetail("current", current.String()).
		WithDetail("expected", expected)
}

// NewAccessDeniedError reports that the caller may not act on bookingID.
// A nil id denotes an admin-only listing.
func NewAccessDeniedError(bookingID *uuid.UUID) *domain.DomainError {
	if bookingID == nil {
		return domain.NewForbiddenError("Not allowed to list all bookings")
	}
	return domain.NewForbiddenError(fmt.Sprintf("Not allowed for booking: %s", bookingID)).
		WithDetail("booking_id", bookingID.String())
}

// NewNotFoundError reports a missing booking.
func NewNotFoundError(id uuid.UUID) *domain.DomainError {
	return domain.NewNotFoundError("Booking", id.String())
}
