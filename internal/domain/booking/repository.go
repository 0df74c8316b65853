package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BookingRepository defines the persistence contract for booking aggregates.
// Every call joins the transaction carried by ctx, if any.
type BookingRepository interface {
	// FindByID retrieves a booking by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindByUserID retrieves a user's bookings, latest start first.
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]*Booking, error)

	// FindAllOrderByStartDesc retrieves all bookings with pagination (admin).
	FindAllOrderByStartDesc(ctx context.Context, page, limit int) ([]*Booking, int64, error)

	// FindConflicts returns bookings on resourceID in one of statuses whose
	// interval intersects [start, end).
	FindConflicts(ctx context.Context, resourceID uuid.UUID, start, end time.Time, statuses []BookingStatus) ([]*Booking, error)

	// CountByStatus returns booking counts grouped by status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// Save persists a new booking.
	Save(ctx context.Context, booking *Booking) error

	// Update writes changes immediately with optimistic locking. A write
	// rejected by the overlap constraint returns ErrOverlapViolation.
	Update(ctx context.Context, booking *Booking) error
}
