package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	bookingDomain "github.com/resbook/service-booking/internal/domain/booking"
	"github.com/resbook/service-booking/pkg/domain"
)

// BookingModel is the GORM model for the bookings table.
type BookingModel struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID     uuid.UUID  `gorm:"type:uuid;index;not null"`
	ResourceID uuid.UUID  `gorm:"type:uuid;index;not null"`
	StartTime  time.Time  `gorm:"type:timestamptz;not null"`
	EndTime    time.Time  `gorm:"type:timestamptz;not null"`
	Status     string     `gorm:"not null;size:30;index"`
	PaidAt     *time.Time `gorm:"type:timestamptz"`
	PaidBy     *string    `gorm:"size:255"`
	Version    int64      `gorm:"not null;default:1"`
	CreatedAt  time.Time  `gorm:"not null"`
	CreatedBy  string     `gorm:"not null;size:255"`
	UpdatedAt  time.Time  `gorm:"not null"`
	UpdatedBy  string     `gorm:"not null;size:255"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// GormBookingRepository is the GORM-based implementation of BookingRepository.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// FindByID retrieves a booking by its unique identifier.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := conn(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, bookingDomain.NewNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	return toDomainBooking(&model)
}

// FindByUserID retrieves a user's bookings, latest start first.
func (r *GormBookingRepository) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*bookingDomain.Booking, error) {
	var models []BookingModel
	if err := conn(ctx, r.db).
		Where("user_id = ?", userID).
		Order("start_time DESC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find user bookings: %w", err)
	}
	return toDomainBookings(models)
}

// FindAllOrderByStartDesc retrieves all bookings with pagination (admin).
func (r *GormBookingRepository) FindAllOrderByStartDesc(ctx context.Context, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	var total int64
	if err := conn(ctx, r.db).Model(&BookingModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := conn(ctx, r.db).
		Order("start_time DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	bookings, err := toDomainBookings(models)
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

// FindConflicts returns bookings on resourceID in one of statuses whose
// interval intersects [start, end).
func (r *GormBookingRepository) FindConflicts(
	ctx context.Context,
	resourceID uuid.UUID,
	start, end time.Time,
	statuses []bookingDomain.BookingStatus,
) ([]*bookingDomain.Booking, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = s.String()
	}

	var models []BookingModel
	if err := conn(ctx, r.db).
		Where("resource_id = ?", resourceID).
		Where("status IN ?", names).
		Where("start_time < ? AND end_time > ?", end, start).
		Order("start_time ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find conflicting bookings: %w", err)
	}
	return toDomainBookings(models)
}

// CountByStatus returns booking counts grouped by status (admin).
func (r *GormBookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := conn(ctx, r.db).Model(&BookingModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// Save persists a new booking.
func (r *GormBookingRepository) Save(ctx context.Context, bk *bookingDomain.Booking) error {
	if err := conn(ctx, r.db).Create(toBookingModel(bk)).Error; err != nil {
		return translateBookingWriteError("failed to save booking", err)
	}
	return nil
}

// Update persists changes to an existing booking with optimistic locking.
// The write reaches the database immediately so the overlap constraint is
// checked inside the caller's transaction.
func (r *GormBookingRepository) Update(ctx context.Context, bk *bookingDomain.Booking) error {
	model := toBookingModel(bk)

	// IncrementVersion was called before Update, so the stored row still holds version-1.
	expectedVersion := bk.Version() - 1
	result := conn(ctx, r.db).
		Model(&BookingModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":     model.Status,
			"start_time": model.StartTime,
			"end_time":   model.EndTime,
			"paid_at":    model.PaidAt,
			"paid_by":    model.PaidBy,
			"version":    model.Version,
			"updated_at": model.UpdatedAt,
			"updated_by": model.UpdatedBy,
		})

	if result.Error != nil {
		return translateBookingWriteError("failed to update booking", result.Error)
	}

	if result.RowsAffected == 0 {
		return domain.NewConflictError("booking was modified by another transaction").
			WithDetail("booking_id", bk.ID().String())
	}

	return nil
}

// translateBookingWriteError maps an exclusion-constraint rejection to
// ErrOverlapViolation and wraps everything else.
func translateBookingWriteError(msg string, err error) error {
	if pgErrorCode(err) == pgExclusionViolation {
		return fmt.Errorf("%s: %w", msg, bookingDomain.ErrOverlapViolation)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// --- Conversion Helpers ---

func toBookingModel(bk *bookingDomain.Booking) *BookingModel {
	return &BookingModel{
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
		CreatedBy:  bk.CreatedBy(),
		UpdatedAt:  bk.UpdatedAt(),
		UpdatedBy:  bk.UpdatedBy(),
	}
}

func toDomainBooking(m *BookingModel) (*bookingDomain.Booking, error) {
	status, err := bookingDomain.ParseBookingStatus(m.Status)
	if err != nil {
		return nil, err
	}

	var paidAt *time.Time
	if m.PaidAt != nil {
		t := m.PaidAt.UTC()
		paidAt = &t
	}

	return bookingDomain.ReconstructBooking(
		m.ID,
		m.UserID,
		m.ResourceID,
		m.StartTime.UTC(),
		m.EndTime.UTC(),
		status,
		paidAt,
		m.PaidBy,
		m.Version,
		m.CreatedAt,
		m.CreatedBy,
		m.UpdatedAt,
		m.UpdatedBy,
	), nil
}

func toDomainBookings(models []BookingModel) ([]*bookingDomain.Booking, error) {
	bookings := make([]*bookingDomain.Booking, len(models))
	for i := range models {
		bk, err := toDomainBooking(&models[i])
		if err != nil {
			return nil, err
		}
		bookings[i] = bk
	}
	return bookings, nil
}
