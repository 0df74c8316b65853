package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	bookingDomain "github.com/resbook/service-booking/internal/domain/booking"
	paymentDomain "github.com/resbook/service-booking/internal/domain/payment"
	"github.com/resbook/service-booking/internal/domain/principal"
	"github.com/resbook/service-booking/pkg/domain"
	"github.com/resbook/service-booking/pkg/events"
)

// finalizeTimeout bounds phase 2 once it is detached from the request.
const finalizeTimeout = 10 * time.Second

// StartPaymentRequest holds the raw payment attempt as received from the caller.
type StartPaymentRequest struct {
	BookingID uuid.UUID `json:"-"`
	Provider  string    `json:"provider" binding:"required,notblank"`
	Type      string    `json:"type" binding:"required,notblank"`
	Amount    string    `json:"amount" binding:"required,notblank"`
	Currency  string    `json:"currency" binding:"required,notblank"`
	Payload   string    `json:"payload_json"`
}

// PaymentDTO is the response representation of a payment.
type PaymentDTO struct {
	ID        uuid.UUID       `json:"id"`
	BookingID uuid.UUID       `json:"booking_id"`
	Provider  string          `json:"provider"`
	Type      string          `json:"type"`
	Status    string          `json:"status"`
	Amount    string          `json:"amount"`
	Currency  string          `json:"currency"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Version   int64           `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// PaymentService is the payment orchestrator. A payment runs in two
// transactions with the provider call between them, so no database
// transaction is held open while the provider works.
type PaymentService struct {
	tx        Transactor
	payments  paymentDomain.PaymentRepository
	bookings  bookingDomain.BookingRepository
	engine    *BookingService
	providers ProviderLookup
	events    eventSink
	logger    *zap.Logger
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(
	tx Transactor,
	payments paymentDomain.PaymentRepository,
	bookings bookingDomain.BookingRepository,
	engine *BookingService,
	providers ProviderLookup,
	publisher EventPublisher,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		tx:        tx,
		payments:  payments,
		bookings:  bookings,
		engine:    engine,
		providers: providers,
		events:    eventSink{publisher: publisher, logger: logger},
		logger:    logger,
	}
}

// validatedPayment is a StartPaymentRequest after parsing.
type validatedPayment struct {
	bookingID uuid.UUID
	provider  paymentDomain.Provider
	typ       paymentDomain.Type
	amount    decimal.Decimal
	currency  string
	payload   json.RawMessage
	client    paymentDomain.ProviderClient
}

// StartPayment reserves the booking, charges the provider and finalizes
// the outcome. A provider error is returned as is and leaves the payment
// NEW and the booking WAITING_PAYMENT until it is reconciled.
func (s *PaymentService) StartPayment(ctx context.Context, p principal.Principal, req StartPaymentRequest) (*PaymentDTO, error) {
	s.logger.Info("payment.start",
		zap.String("requested_by", p.Email),
		zap.Bool("admin", p.IsAdmin()),
		zap.String("booking_id", req.BookingID.String()),
		zap.String("provider", req.Provider),
		zap.String("type", req.Type),
		zap.String("amount", req.Amount),
		zap.String("currency", req.Currency),
		zap.Bool("payload_present", strings.TrimSpace(req.Payload) != ""),
	)

	v, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	paymentID, err := s.reserve(ctx, p, v)
	if err != nil {
		return nil, err
	}
	s.logger.Info("payment.tx.started",
		zap.String("booking_id", v.bookingID.String()),
		zap.String("payment_id", paymentID.String()),
	)

	ok, err := v.client.Charge(ctx, v.amount, v.currency, v.payload)
	if err != nil {
		s.logger.Error("payment.charge.error",
			zap.String("booking_id", v.bookingID.String()),
			zap.String("payment_id", paymentID.String()),
			zap.String("provider", v.provider.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("charge payment %s via %s: %w", paymentID, v.provider, err)
	}
	s.logger.Info("payment.charge.result",
		zap.String("booking_id", v.bookingID.String()),
		zap.String("payment_id", paymentID.String()),
		zap.Bool("ok", ok),
	)

	// The provider already answered, so the outcome is recorded even if the
	// caller has gone away.
	finalizeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	return s.FinalizePayment(finalizeCtx, p, paymentID, ok)
}

func (s *PaymentService) validate(req StartPaymentRequest) (*validatedPayment, error) {
	provider, err := paymentDomain.ParseProvider(req.Provider)
	if err != nil {
		return nil, err
	}
	typ, err := paymentDomain.ParseType(req.Type)
	if err != nil {
		return nil, err
	}
	client, ok := s.providers.Lookup(provider)
	if !ok {
		s.logger.Warn("payment.start unknown provider",
			zap.String("booking_id", req.BookingID.String()),
			zap.String("provider", provider.String()),
		)
		return nil, paymentDomain.NewUnknownProviderError(provider.String())
	}
	amount, err := paymentDomain.ParseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	currency, err := paymentDomain.NormalizeCurrency(req.Currency)
	if err != nil {
		return nil, err
	}
	payload, err := paymentDomain.ParsePayload(req.Payload)
	if err != nil {
		s.logger.Warn("payment.payload.invalid", zap.Int("payload_length", len(req.Payload)))
		return nil, err
	}

	return &validatedPayment{
		bookingID: req.BookingID,
		provider:  provider,
		typ:       typ,
		amount:    amount,
		currency:  currency,
		payload:   payload,
		client:    client,
	}, nil
}

// reserve is phase one: the booking enters WAITING_PAYMENT and a NEW
// payment is recorded, atomically.
func (s *PaymentService) reserve(ctx context.Context, p principal.Principal, v *validatedPayment) (uuid.UUID, error) {
	var pay *paymentDomain.Payment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		bk, err := s.bookings.FindByID(ctx, v.bookingID)
		if err != nil {
			return err
		}
		if !p.CanAccess(bk.UserID()) {
			return paymentDomain.NewAccessDeniedError(&v.bookingID)
		}
		if bk.Status() != bookingDomain.StatusDraft {
			return bookingDomain.NewStatusError(bk.ID(), bk.Status(), bookingDomain.StatusDraft.String())
		}

		pay, err = paymentDomain.NewPayment(bk.ID(), v.provider, v.typ, v.amount, v.currency, v.payload)
		if err != nil {
			return err
		}
		if err := s.payments.Save(ctx, pay); err != nil {
			return err
		}

		_, err = s.engine.markWaitingPayment(ctx, bk.ID(), p.Email)
		return err
	})
	if err != nil {
		return uuid.Nil, err
	}

	s.events.publish(ctx, pendingEvent{
		topic:     events.TopicPaymentEvents,
		eventType: events.PaymentStarted,
		key:       pay.BookingID().String(),
		data: events.PaymentStartedEvent{
			PaymentID:  pay.ID(),
			BookingID:  pay.BookingID(),
			Provider:   pay.Provider().String(),
			Type:       pay.Type().String(),
			Amount:     pay.Amount().StringFixed(paymentDomain.AmountScale),
			Currency:   pay.Currency(),
			OccurredAt: time.Now().UTC(),
		},
	})
	return pay.ID(), nil
}

// FinalizePayment is phase two. On success the payment becomes SUCCESS and
// the booking CONFIRMED; on failure the payment becomes FAILED and the
// booking is released if it is still WAITING_PAYMENT. Both rows change in
// one transaction or neither does.
func (s *PaymentService) FinalizePayment(ctx context.Context, p principal.Principal, paymentID uuid.UUID, succeeded bool) (*PaymentDTO, error) {
	var (
		pay     *paymentDomain.Payment
		bk      *bookingDomain.Booking
		pending []pendingEvent
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		pay, err = s.payments.FindByID(ctx, paymentID)
		if err != nil {
			if domain.IsNotFound(err) {
				return paymentDomain.NewMissingPaymentError(paymentID)
			}
			return err
		}
		bookingID := pay.BookingID()

		owner, err := s.bookings.FindByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if !p.CanAccess(owner.UserID()) {
			return paymentDomain.NewAccessDeniedError(&bookingID)
		}

		pending = pending[:0]
		if succeeded {
			if err := pay.MarkSucceeded(); err != nil {
				return err
			}
			bk, err = s.engine.confirmAfterPayment(ctx, bookingID, p.Email)
			if err != nil {
				return err
			}
			pending = append(pending, bookingConfirmedEvent(bk, pay.ID()))
		} else {
			if err := pay.MarkFailed(); err != nil {
				return err
			}
			var released bool
			bk, released, err = s.engine.releaseAfterFailedPayment(ctx, bookingID, p.Email)
			if err != nil {
				return err
			}
			if released {
				pending = append(pending, bookingCancelledEvent(bk, p.Email, "payment failed"))
			}
		}

		pay.IncrementVersion()
		return s.payments.Update(ctx, pay)
	})
	if err != nil {
		return nil, err
	}

	eventType := events.PaymentFailed
	if succeeded {
		eventType = events.PaymentSucceeded
	}
	pending = append([]pendingEvent{{
		topic:     events.TopicPaymentEvents,
		eventType: eventType,
		key:       pay.BookingID().String(),
		data: events.PaymentFinalizedEvent{
			PaymentID:     pay.ID(),
			BookingID:     pay.BookingID(),
			Status:        pay.Status().String(),
			BookingStatus: bk.Status().String(),
			Amount:        pay.Amount().StringFixed(paymentDomain.AmountScale),
			Currency:      pay.Currency(),
			OccurredAt:    time.Now().UTC(),
		},
	}}, pending...)
	s.events.publish(ctx, pending...)

	s.logger.Info("payment.finalized",
		zap.String("requested_by", p.Email),
		zap.String("booking_id", pay.BookingID().String()),
		zap.String("payment_id", pay.ID().String()),
		zap.String("status", pay.Status().String()),
		zap.String("booking_status", bk.Status().String()),
	)

	result := toPaymentDTO(pay)
	return &result, nil
}

// ListByBooking returns every payment attempt for a booking visible to p.
func (s *PaymentService) ListByBooking(ctx context.Context, p principal.Principal, bookingID uuid.UUID) ([]PaymentDTO, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !p.CanAccess(bk.UserID()) {
		s.logger.Warn("payment.listByBooking access denied",
			zap.String("requested_by", p.Email),
			zap.String("booking_id", bookingID.String()),
		)
		return nil, paymentDomain.NewAccessDeniedError(&bookingID)
	}

	payments, err := s.payments.FindByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return toPaymentDTOs(payments), nil
}

// ListMine returns the payments of the principal's bookings.
func (s *PaymentService) ListMine(ctx context.Context, p principal.Principal) ([]PaymentDTO, error) {
	payments, err := s.payments.FindByUserID(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	return toPaymentDTOs(payments), nil
}

// ListAll returns every payment (admin).
func (s *PaymentService) ListAll(ctx context.Context, p principal.Principal) ([]PaymentDTO, error) {
	if !p.IsAdmin() {
		return nil, paymentDomain.NewAccessDeniedError(nil)
	}
	payments, err := s.payments.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return toPaymentDTOs(payments), nil
}

// --- Helpers ---

func bookingConfirmedEvent(bk *bookingDomain.Booking, paymentID uuid.UUID) pendingEvent {
	evt := events.BookingConfirmedEvent{
		BookingID:  bk.ID(),
		PaymentID:  paymentID,
		OccurredAt: time.Now().UTC(),
	}
	if bk.PaidBy() != nil {
		evt.PaidBy = *bk.PaidBy()
	}
	if bk.PaidAt() != nil {
		evt.PaidAt = *bk.PaidAt()
	}
	return pendingEvent{
		topic:     events.TopicBookingEvents,
		eventType: events.BookingConfirmed,
		key:       bk.ID().String(),
		data:      evt,
	}
}

func toPaymentDTO(p *paymentDomain.Payment) PaymentDTO {
	return PaymentDTO{
		ID:        p.ID(),
		BookingID: p.BookingID(),
		Provider:  p.Provider().String(),
		Type:      p.Type().String(),
		Status:    p.Status().String(),
		Amount:    p.Amount().StringFixed(paymentDomain.AmountScale),
		Currency:  p.Currency(),
		Payload:   p.Payload(),
		Version:   p.Version(),
		CreatedAt: p.CreatedAt(),
		UpdatedAt: p.UpdatedAt(),
	}
}

func toPaymentDTOs(payments []*paymentDomain.Payment) []PaymentDTO {
	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	return dtos
}
