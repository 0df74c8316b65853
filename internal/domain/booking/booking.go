package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/resbook/service-booking/pkg/domain"
)

// Booking is the aggregate root for the booking domain: one user's claim
// on a resource for the half-open interval [startTime, endTime).
type Booking struct {
	id         uuid.UUID
	userID     uuid.UUID
	resourceID uuid.UUID
	startTime  time.Time
	endTime    time.Time
	status     BookingStatus

	paidAt *time.Time
	paidBy *string

	version   int64
	createdAt time.Time
	createdBy string
	updatedAt time.Time
	updatedBy string
}

// NewBooking creates a new Booking aggregate with status=DRAFT.
func NewBooking(userID, resourceID uuid.UUID, startTime, endTime time.Time, createdBy string) (*Booking, error) {
	if userID == uuid.Nil {
		return nil, domain.NewValidationError("user ID is required")
	}
	if resourceID == uuid.Nil {
		return nil, domain.NewValidationError("resource ID is required")
	}
	startTime, endTime = startTime.UTC(), endTime.UTC()
	if !endTime.After(startTime) {
		return nil, NewTimeRangeError(startTime, endTime)
	}

	now := time.Now().UTC()
	return &Booking{
		id:         uuid.New(),
		userID:     userID,
		resourceID: resourceID,
		startTime:  startTime,
		endTime:    endTime,
		status:     StatusDraft,
		version:    1,
		createdAt:  now,
		createdBy:  createdBy,
		updatedAt:  now,
		updatedBy:  createdBy,
	}, nil
}

// ReconstructBooking rebuilds a Booking from persistence data (no validation).
func ReconstructBooking(
	id uuid.UUID,
	userID uuid.UUID,
	resourceID uuid.UUID,
	startTime time.Time,
	endTime time.Time,
	status BookingStatus,
	paidAt *time.Time,
	paidBy *string,
	version int64,
	createdAt time.Time,
	createdBy string,
	updatedAt time.Time,
	updatedBy string,
) *Booking {
	return &Booking{
		id:         id,
		userID:     userID,
		resourceID: resourceID,
		startTime:  startTime,
		endTime:    endTime,
		status:     status,
		paidAt:     paidAt,
		paidBy:     paidBy,
		version:    version,
		createdAt:  createdAt,
		createdBy:  createdBy,
		updatedAt:  updatedAt,
		updatedBy:  updatedBy,
	}
}

// --- Getters ---

func (b *Booking) ID() uuid.UUID         { return b.id }
func (b *Booking) UserID() uuid.UUID     { return b.userID }
func (b *Booking) ResourceID() uuid.UUID { return b.resourceID }
func (b *Booking) StartTime() time.Time  { return b.startTime }
func (b *Booking) EndTime() time.Time    { return b.endTime }
func (b *Booking) Status() BookingStatus { return b.status }

// PaidAt returns when the first successful payment landed, or nil.
func (b *Booking) PaidAt() *time.Time { return b.paidAt }

// PaidBy returns who paid, or nil.
func (b *Booking) PaidBy() *string { return b.paidBy }

// Version returns the entity version for optimistic locking.
func (b *Booking) Version() int64 { return b.version }

func (b *Booking) CreatedAt() time.Time { return b.createdAt }
func (b *Booking) CreatedBy() string    { return b.createdBy }
func (b *Booking) UpdatedAt() time.Time { return b.updatedAt }
func (b *Booking) UpdatedBy() string    { return b.updatedBy }

// --- Behavior ---

// IsOwnedBy reports whether userID owns the booking.
func (b *Booking) IsOwnedBy(userID uuid.UUID) bool {
	return b.userID == userID
}

// Overlaps reports whether the booking intersects [start, end).
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.startTime.Before(end) && b.endTime.After(start)
}

// MarkWaitingPayment moves a DRAFT booking to WAITING_PAYMENT.
func (b *Booking) MarkWaitingPayment(actor string) error {
	if b.status != StatusDraft {
		return NewStatusError(b.id, b.status, StatusDraft.String())
	}
	b.transition(StatusWaitingPayment, actor)
	return nil
}

// ConfirmPayment moves a WAITING_PAYMENT booking to CONFIRMED. paidAt and
// paidBy are stamped only the first time.
func (b *Booking) ConfirmPayment(paidBy string, at time.Time) error {
	if b.status != StatusWaitingPayment {
		return NewStatusError(b.id, b.status, StatusWaitingPayment.String())
	}
	b.transition(StatusConfirmed, paidBy)
	if b.paidAt == nil {
		paidAt := at.UTC()
		b.paidAt = &paidAt
		b.paidBy = &paidBy
	}
	return nil
}

// Cancel moves the booking to CANCELED. Confirmed bookings cannot be canceled.
func (b *Booking) Cancel(actor string) error {
	if b.status == StatusConfirmed {
		return NewStatusError(b.id, b.status, "not "+StatusConfirmed.String())
	}
	if !b.status.CanTransitionTo(StatusCanceled) {
		return domain.NewInvalidStateError(string(b.status), string(StatusCanceled))
	}
	b.transition(StatusCanceled, actor)
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
}

func (b *Booking) transition(to BookingStatus, actor string) {
	b.status = to
	b.updatedAt = time.Now().UTC()
	b.updatedBy = actor
}
