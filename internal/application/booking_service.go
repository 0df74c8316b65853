package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/resbook/service-booking/internal/domain/booking"
	"github.com/resbook/service-booking/internal/domain/principal"
	resourceDomain "github.com/resbook/service-booking/internal/domain/resource"
	userDomain "github.com/resbook/service-booking/internal/domain/user"
	"github.com/resbook/service-booking/pkg/domain"
	"github.com/resbook/service-booking/pkg/events"
)

// CreateBookingRequest holds the data needed to create a draft booking.
type CreateBookingRequest struct {
	ResourceID uuid.UUID `json:"resource_id" binding:"required"`
	StartTime  time.Time `json:"start_time" binding:"required"`
	EndTime    time.Time `json:"end_time" binding:"required"`
}

// BookingDTO is the response representation of a booking.
type BookingDTO struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	ResourceID uuid.UUID  `json:"resource_id"`
	StartTime  time.Time  `json:"start_time"`
	EndTime    time.Time  `json:"end_time"`
	Status     string     `json:"status"`
	PaidAt     *time.Time `json:"paid_at,omitempty"`
	PaidBy     *string    `json:"paid_by,omitempty"`
	Version    int64      `json:"version"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// BookingStatsDTO holds booking statistics for the admin dashboard.
type BookingStatsDTO struct {
	TotalBookings int64            `json:"total_bookings"`
	ByStatus      map[string]int64 `json:"by_status"`
}

// BookingService is the booking engine: it owns every booking state change.
type BookingService struct {
	tx        Transactor
	bookings  bookingDomain.BookingRepository
	resources resourceDomain.ResourceRepository
	users     userDomain.UserRepository
	events    eventSink
	logger    *zap.Logger
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	tx Transactor,
	bookings bookingDomain.BookingRepository,
	resources resourceDomain.ResourceRepository,
	users userDomain.UserRepository,
	publisher EventPublisher,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		tx:        tx,
		bookings:  bookings,
		resources: resources,
		users:     users,
		events:    eventSink{publisher: publisher, logger: logger},
		logger:    logger,
	}
}

// CreateDraft reserves nothing yet: it records a DRAFT booking after
// checking the slot is free of blocking bookings.
func (s *BookingService) CreateDraft(ctx context.Context, p principal.Principal, req CreateBookingRequest) (*BookingDTO, error) {
	if !req.EndTime.After(req.StartTime) {
		return nil, bookingDomain.NewTimeRangeError(req.StartTime, req.EndTime)
	}

	var bk *bookingDomain.Booking
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		// Serializes draft creation per resource until commit.
		res, err := s.resources.FindByIDForUpdate(ctx, req.ResourceID)
		if err != nil {
			return err
		}
		if !res.IsActive() {
			return resourceDomain.NewInactiveError(res.ID())
		}

		if _, err := s.users.FindByID(ctx, p.UserID); err != nil {
			if domain.IsNotFound(err) {
				return userDomain.NewMissingPrincipalError(p.UserID)
			}
			return err
		}

		conflicts, err := s.bookings.FindConflicts(ctx, res.ID(), req.StartTime, req.EndTime, bookingDomain.BlockingStatuses())
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return bookingDomain.NewConflictError(res.ID(), req.StartTime, req.EndTime)
		}

		bk, err = bookingDomain.NewBooking(p.UserID, res.ID(), req.StartTime, req.EndTime, p.Email)
		if err != nil {
			return err
		}
		return s.bookings.Save(ctx, bk)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking draft created",
		zap.String("booking_id", bk.ID().String()),
		zap.String("resource_id", bk.ResourceID().String()),
		zap.String("user_id", bk.UserID().String()),
	)

	s.events.publish(ctx, pendingEvent{
		topic:     events.TopicBookingEvents,
		eventType: events.BookingCreated,
		key:       bk.ID().String(),
		data: events.BookingCreatedEvent{
			BookingID:  bk.ID(),
			UserID:     bk.UserID(),
			ResourceID: bk.ResourceID(),
			StartTime:  bk.StartTime(),
			EndTime:    bk.EndTime(),
			OccurredAt: time.Now().UTC(),
		},
	})

	result := toBookingDTO(bk)
	return &result, nil
}

// Cancel cancels a DRAFT or WAITING_PAYMENT booking. Canceling an already
// canceled booking returns it unchanged without writing.
func (s *BookingService) Cancel(ctx context.Context, p principal.Principal, bookingID uuid.UUID) (*BookingDTO, error) {
	var (
		bk      *bookingDomain.Booking
		changed bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		bk, err = s.bookings.FindByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if !p.CanAccess(bk.UserID()) {
			return bookingDomain.NewAccessDeniedError(&bookingID)
		}
		if bk.Status() == bookingDomain.StatusCanceled {
			return nil
		}

		if err := bk.Cancel(p.Email); err != nil {
			return err
		}
		bk.IncrementVersion()
		if err := s.bookings.Update(ctx, bk); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.events.publish(ctx, bookingCancelledEvent(bk, p.Email, "cancelled by request"))
	}

	result := toBookingDTO(bk)
	return &result, nil
}

// GetByID retrieves a single booking visible to p.
func (s *BookingService) GetByID(ctx context.Context, p principal.Principal, bookingID uuid.UUID) (*BookingDTO, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !p.CanAccess(bk.UserID()) {
		return nil, bookingDomain.NewAccessDeniedError(&bookingID)
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// ListForUser returns the principal's own bookings, latest start first.
func (s *BookingService) ListForUser(ctx context.Context, p principal.Principal) ([]BookingDTO, error) {
	bookings, err := s.bookings.FindByUserID(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	return toBookingDTOs(bookings), nil
}

// --- Admin methods ---

// ListAll returns a page of all bookings, latest start first.
func (s *BookingService) ListAll(ctx context.Context, p principal.Principal, page, limit int) (*domain.PaginatedResult[BookingDTO], error) {
	if !p.IsAdmin() {
		return nil, bookingDomain.NewAccessDeniedError(nil)
	}
	page, limit = domain.NormalizePage(page, limit)

	bookings, total, err := s.bookings.FindAllOrderByStartDesc(ctx, page, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	return &domain.PaginatedResult[BookingDTO]{
		Items: toBookingDTOs(bookings),
		Total: total,
		Page:  page,
		Limit: limit,
	}, nil
}

// GetStats returns aggregate booking statistics.
func (s *BookingService) GetStats(ctx context.Context, p principal.Principal) (*BookingStatsDTO, error) {
	if !p.IsAdmin() {
		return nil, bookingDomain.NewAccessDeniedError(nil)
	}
	counts, err := s.bookings.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking stats: %w", err)
	}

	var total int64
	for _, c := range counts {
		total += c
	}

	return &BookingStatsDTO{
		TotalBookings: total,
		ByStatus:      counts,
	}, nil
}

// --- Payment-driven transitions ---
//
// The methods below are reachable only from PaymentService and must run
// inside its transaction.

// markWaitingPayment moves a DRAFT booking to WAITING_PAYMENT and writes it
// at once, so the overlap constraint is evaluated in the caller's transaction.
func (s *BookingService) markWaitingPayment(ctx context.Context, bookingID uuid.UUID, actor string) (*bookingDomain.Booking, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := bk.MarkWaitingPayment(actor); err != nil {
		return nil, err
	}
	if err := s.writeBlocking(ctx, bk); err != nil {
		return nil, err
	}
	return bk, nil
}

// confirmAfterPayment moves a WAITING_PAYMENT booking to CONFIRMED.
func (s *BookingService) confirmAfterPayment(ctx context.Context, bookingID uuid.UUID, paidBy string) (*bookingDomain.Booking, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := bk.ConfirmPayment(paidBy, time.Now()); err != nil {
		return nil, err
	}
	if err := s.writeBlocking(ctx, bk); err != nil {
		return nil, err
	}
	return bk, nil
}

// releaseAfterFailedPayment cancels the booking if it is still
// WAITING_PAYMENT. Any other state is left alone and reported unchanged.
func (s *BookingService) releaseAfterFailedPayment(ctx context.Context, bookingID uuid.UUID, actor string) (*bookingDomain.Booking, bool, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, false, err
	}
	if bk.Status() != bookingDomain.StatusWaitingPayment {
		return bk, false, nil
	}
	if err := bk.Cancel(actor); err != nil {
		return nil, false, err
	}
	bk.IncrementVersion()
	if err := s.bookings.Update(ctx, bk); err != nil {
		return nil, false, err
	}
	return bk, true, nil
}

// writeBlocking persists a booking entering a blocking status. An overlap
// rejection from the store becomes a booking conflict here and nowhere else.
func (s *BookingService) writeBlocking(ctx context.Context, bk *bookingDomain.Booking) error {
	bk.IncrementVersion()
	if err := s.bookings.Update(ctx, bk); err != nil {
		if errors.Is(err, bookingDomain.ErrOverlapViolation) {
			return bookingDomain.NewConflictError(bk.ResourceID(), bk.StartTime(), bk.EndTime())
		}
		return err
	}
	return nil
}

// --- Helpers ---

func bookingCancelledEvent(bk *bookingDomain.Booking, actor, reason string) pendingEvent {
	return pendingEvent{
		topic:     events.TopicBookingEvents,
		eventType: events.BookingCancelled,
		key:       bk.ID().String(),
		data: events.BookingCancelledEvent{
			BookingID:   bk.ID(),
			ResourceID:  bk.ResourceID(),
			CancelledBy: actor,
			Reason:      reason,
			OccurredAt:  time.Now().UTC(),
		},
	}
}

func toBookingDTO(bk *bookingDomain.Booking) BookingDTO {
	return BookingDTO{
		ID:         bk.ID(),
		UserID:     bk.UserID(),
		ResourceID: bk.ResourceID(),
		StartTime:  bk.StartTime(),
		EndTime:    bk.EndTime(),
		Status:     bk.Status().String(),
		PaidAt:     bk.PaidAt(),
		PaidBy:     bk.PaidBy(),
		Version:    bk.Version(),
		CreatedAt:  bk.CreatedAt(),
		UpdatedAt:  bk.UpdatedAt(),
	}
}

func toBookingDTOs(bookings []*bookingDomain.Booking) []BookingDTO {
	dtos := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		dtos[i] = toBookingDTO(bk)
	}
	return dtos
}
