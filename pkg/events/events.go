// Package events defines the Kafka topics, CloudEvent types and payloads
// exchanged by the booking service.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Topics.
const (
	TopicBookingEvents         = "booking.events"
	TopicPaymentEvents         = "payment.events"
	TopicPaymentReconciliation = "payment.reconciliation"
)

// Event types.
const (
	BookingCreated   = "booking.created"
	BookingCancelled = "booking.cancelled"
	BookingConfirmed = "booking.confirmed"

	PaymentStarted   = "payment.started"
	PaymentSucceeded = "payment.succeeded"
	PaymentFailed    = "payment.failed"

	PaymentReconcile = "payment.reconcile"
)

type BookingCreatedEvent struct {
	BookingID  uuid.UUID `json:"booking_id"`
	UserID     uuid.UUID `json:"user_id"`
	ResourceID uuid.UUID `json:"resource_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	OccurredAt time.Time `json:"occurred_at"`
}

type BookingCancelledEvent struct {
	BookingID   uuid.UUID `json:"booking_id"`
	ResourceID  uuid.UUID `json:"resource_id"`
	CancelledBy string    `json:"cancelled_by"`
	Reason      string    `json:"reason"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type BookingConfirmedEvent struct {
	BookingID  uuid.UUID `json:"booking_id"`
	PaymentID  uuid.UUID `json:"payment_id"`
	PaidBy     string    `json:"paid_by"`
	PaidAt     time.Time `json:"paid_at"`
	OccurredAt time.Time `json:"occurred_at"`
}

type PaymentStartedEvent struct {
	PaymentID  uuid.UUID `json:"payment_id"`
	BookingID  uuid.UUID `json:"booking_id"`
	Provider   string    `json:"provider"`
	Type       string    `json:"type"`
	Amount     string    `json:"amount"`
	Currency   string    `json:"currency"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PaymentFinalizedEvent is published for both succeeded and failed payments.
type PaymentFinalizedEvent struct {
	PaymentID     uuid.UUID `json:"payment_id"`
	BookingID     uuid.UUID `json:"booking_id"`
	Status        string    `json:"status"`
	BookingStatus string    `json:"booking_status"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// ReconcilePaymentCommand asks the service to finalize a payment left in
// NEW after a provider failure.
type ReconcilePaymentCommand struct {
	PaymentID uuid.UUID `json:"payment_id"`
	Succeeded bool      `json:"succeeded"`
	Operator  string    `json:"operator"`
}
