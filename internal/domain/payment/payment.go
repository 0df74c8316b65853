package payment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/resbook/service-booking/pkg/domain"
)

// Payment is one attempt to pay for a booking.
type Payment struct {
	id          uuid.UUID
	bookingID   uuid.UUID
	provider    Provider
	paymentType Type
	status      Status
	amount      decimal.Decimal
	currency    string
	payload     json.RawMessage

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// NewPayment creates a payment attempt in status NEW.
func NewPayment(
	bookingID uuid.UUID,
	provider Provider,
	paymentType Type,
	amount decimal.Decimal,
	currency string,
	payload json.RawMessage,
) (*Payment, error) {
	if bookingID == uuid.Nil {
		return nil, domain.NewValidationError("booking ID is required")
	}
	if !provider.IsValid() {
		return nil, NewUnknownProviderError(provider.String())
	}
	if !paymentType.IsValid() {
		return nil, domain.NewValidationError("unsupported payment type: " + paymentType.String())
	}
	if !amount.IsPositive() {
		return nil, NewInvalidAmountError(amount.String(), "must be positive")
	}

	now := time.Now().UTC()
	return &Payment{
		id:          uuid.New(),
		bookingID:   bookingID,
		provider:    provider,
		paymentType: paymentType,
		status:      StatusNew,
		amount:      amount,
		currency:    currency,
		payload:     payload,
		version:     1,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// Reconstruct rebuilds a Payment from persistence data (no validation).
func Reconstruct(
	id, bookingID uuid.UUID,
	provider Provider,
	paymentType Type,
	status Status,
	amount decimal.Decimal,
	currency string,
	payload json.RawMessage,
	version int64,
	createdAt, updatedAt time.Time,
) *Payment {
	return &Payment{
		id:          id,
		bookingID:   bookingID,
		provider:    provider,
		paymentType: paymentType,
		status:      status,
		amount:      amount,
		currency:    currency,
		payload:     payload,
		version:     version,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

func (p *Payment) ID() uuid.UUID            { return p.id }
func (p *Payment) BookingID() uuid.UUID     { return p.bookingID }
func (p *Payment) Provider() Provider       { return p.provider }
func (p *Payment) Type() Type               { return p.paymentType }
func (p *Payment) Status() Status           { return p.status }
func (p *Payment) Amount() decimal.Decimal  { return p.amount }
func (p *Payment) Currency() string         { return p.currency }
func (p *Payment) Payload() json.RawMessage { return p.payload }
func (p *Payment) Version() int64           { return p.version }
func (p *Payment) CreatedAt() time.Time     { return p.createdAt }
func (p *Payment) UpdatedAt() time.Time     { return p.updatedAt }

// MarkSucceeded records a successful charge.
func (p *Payment) MarkSucceeded() error {
	return p.transition(StatusSuccess)
}

// MarkFailed records a declined charge.
func (p *Payment) MarkFailed() error {
	return p.transition(StatusFailed)
}

// IncrementVersion bumps the version for optimistic locking.
func (p *Payment) IncrementVersion() {
	p.version++
}

func (p *Payment) transition(to Status) error {
	if !p.status.CanTransitionTo(to) {
		return domain.NewInvalidStateError(string(p.status), string(to)).
			WithDetail("payment_id", p.id.String())
	}
	p.status = to
	p.updatedAt = time.Now().UTC()
	return nil
}

// PaymentRepository defines persistence operations for payments.
type PaymentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*Payment, error)
	// FindByUserID returns payments whose booking belongs to userID.
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]*Payment, error)
	FindAll(ctx context.Context) ([]*Payment, error)
	Save(ctx context.Context, payment *Payment) error
	Update(ctx context.Context, payment *Payment) error
}

// ProviderClient talks to one external payment provider.
type ProviderClient interface {
	Provider() Provider
	// Charge returns false when the provider declined the payment and an
	// error when the outcome is unknown.
	Charge(ctx context.Context, amount decimal.Decimal, currency string, payload json.RawMessage) (bool, error)
	Cancel(ctx context.Context, payload json.RawMessage) (bool, error)
}
