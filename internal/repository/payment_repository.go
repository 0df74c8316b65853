package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	paymentDomain "github.com/resbook/service-booking/internal/domain/payment"
	"github.com/resbook/service-booking/pkg/domain"
)

// PaymentModel is the GORM model for the payments table.
type PaymentModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BookingID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Provider    string          `gorm:"type:varchar(20);not null"`
	PaymentType string          `gorm:"column:type;type:varchar(20);not null"`
	Status      string          `gorm:"type:varchar(20);not null;index"`
	Amount      decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Currency    string          `gorm:"type:char(3);not null"`
	Payload     datatypes.JSON  `gorm:"type:jsonb"`
	Version     int64           `gorm:"not null;default:1"`
	CreatedAt   time.Time       `gorm:"not null"`
	UpdatedAt   time.Time       `gorm:"not null"`
}

// TableName sets the table name.
func (PaymentModel) TableName() string { return "payments" }

// GormPaymentRepository implements PaymentRepository using GORM.
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository.
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// FindByID returns a single payment by ID.
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*paymentDomain.Payment, error) {
	var model PaymentModel
	if err := conn(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Payment", id.String())
		}
		return nil, fmt.Errorf("failed to find payment: %w", err)
	}
	return toPaymentDomain(&model), nil
}

// FindByBookingID returns all payment attempts for a booking, oldest first.
func (r *GormPaymentRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*paymentDomain.Payment, error) {
	var models []PaymentModel
	if err := conn(ctx, r.db).
		Where("booking_id = ?", bookingID).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find booking payments: %w", err)
	}
	return toPaymentDomains(models), nil
}

// FindByUserID returns the payments of every booking owned by userID, newest first.
func (r *GormPaymentRepository) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*paymentDomain.Payment, error) {
	var models []PaymentModel
	if err := conn(ctx, r.db).
		Joins("JOIN bookings ON bookings.id = payments.booking_id").
		Where("bookings.user_id = ?", userID).
		Order("payments.created_at DESC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find user payments: %w", err)
	}
	return toPaymentDomains(models), nil
}

// FindAll returns every payment, newest first (admin).
func (r *GormPaymentRepository) FindAll(ctx context.Context) ([]*paymentDomain.Payment, error) {
	var models []PaymentModel
	if err := conn(ctx, r.db).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return toPaymentDomains(models), nil
}

// Save persists a new payment.
func (r *GormPaymentRepository) Save(ctx context.Context, p *paymentDomain.Payment) error {
	if err := conn(ctx, r.db).Create(toPaymentModel(p)).Error; err != nil {
		return fmt.Errorf("failed to save payment: %w", err)
	}
	return nil
}

// Update persists the payment status with optimistic locking.
func (r *GormPaymentRepository) Update(ctx context.Context, p *paymentDomain.Payment) error {
	previousVersion := p.Version() - 1
	result := conn(ctx, r.db).
		Model(&PaymentModel{}).
		Where("id = ? AND version = ?", p.ID(), previousVersion).
		Updates(map[string]interface{}{
			"status":     p.Status().String(),
			"version":    p.Version(),
			"updated_at": p.UpdatedAt(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update payment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("payment was modified by another transaction").
			WithDetail("payment_id", p.ID().String())
	}
	return nil
}

func toPaymentModel(p *paymentDomain.Payment) *PaymentModel {
	var payload datatypes.JSON
	if len(p.Payload()) > 0 {
		payload = datatypes.JSON(p.Payload())
	}
	return &PaymentModel{
		ID:          p.ID(),
		BookingID:   p.BookingID(),
		Provider:    p.Provider().String(),
		PaymentType: p.Type().String(),
		Status:      p.Status().String(),
		Amount:      p.Amount(),
		Currency:    p.Currency(),
		Payload:     payload,
		Version:     p.Version(),
		CreatedAt:   p.CreatedAt(),
		UpdatedAt:   p.UpdatedAt(),
	}
}

func toPaymentDomain(m *PaymentModel) *paymentDomain.Payment {
	var payload json.RawMessage
	if len(m.Payload) > 0 {
		payload = json.RawMessage(m.Payload)
	}
	return paymentDomain.Reconstruct(
		m.ID,
		m.BookingID,
		paymentDomain.Provider(m.Provider),
		paymentDomain.Type(m.PaymentType),
		paymentDomain.Status(m.Status),
		m.Amount,
		m.Currency,
		payload,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	)
}

func toPaymentDomains(models []PaymentModel) []*paymentDomain.Payment {
	out := make([]*paymentDomain.Payment, len(models))
	for i := range models {
		out[i] = toPaymentDomain(&models[i])
	}
	return out
}
