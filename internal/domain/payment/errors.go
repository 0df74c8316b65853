package payment

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/resbook/service-booking/pkg/domain"
)

const (
	CodeInvalidAmount   = "INVALID_AMOUNT"
	CodeInvalidCurrency = "INVALID_CURRENCY"
	CodeInvalidPayload  = "INVALID_PAYLOAD"
	CodeUnknownProvider = "UNKNOWN_PROVIDER"
	CodePaymentNotFound = "PAYMENT_NOT_FOUND"
)

func NewInvalidAmountError(raw, reason string) *domain.DomainError {
	return domain.NewValidationErrorWithCode(CodeInvalidAmount,
		fmt.Sprintf("Invalid amount %q: %s", raw, reason))
}

func NewUnknownProviderError(provider string) *domain.DomainError {
	return domain.NewValidationErrorWithCode(CodeUnknownProvider,
		fmt.Sprintf("No client for provider: %s", provider)).
		WithDetail("provider", provider)
}

// NewAccessDeniedError reports that the caller may not touch the payments
// of bookingID. A nil id denotes the admin-only listing.
func NewAccessDeniedError(bookingID *uuid.UUID) *domain.DomainError {
	if bookingID == nil {
		return domain.NewForbiddenError("Access denied to payments")
	}
	return domain.NewForbiddenError(fmt.Sprintf("Access denied to payments for booking: %s", bookingID)).
		WithDetail("booking_id", bookingID.String())
}

// NewMissingPaymentError is raised when finalize is called with an id that
// was never reserved. It signals a broken caller, not bad user input.
func NewMissingPaymentError(id uuid.UUID) *domain.DomainError {
	return domain.NewInternalError(CodePaymentNotFound, fmt.Sprintf("Payment not found: %s", id)).
		WithDetail("payment_id", id.String())
}
