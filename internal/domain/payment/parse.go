package payment

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/resbook/service-booking/pkg/domain"
)

const (
	// AmountScale and AmountPrecision mirror the numeric(12,2) column.
	AmountScale     = 2
	AmountPrecision = 12
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// ParseAmount parses a positive decimal with at most two fractional digits
// that fits numeric(12,2).
func ParseAmount(s string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return decimal.Zero, NewInvalidAmountError(s, "amount is required")
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, NewInvalidAmountError(s, "not a decimal number")
	}
	if !amount.IsPositive() {
		return decimal.Zero, NewInvalidAmountError(s, "must be positive")
	}
	if !amount.Equal(amount.Truncate(AmountScale)) {
		return decimal.Zero, NewInvalidAmountError(s, fmt.Sprintf("at most %d fractional digits", AmountScale))
	}
	limit := decimal.New(1, AmountPrecision-AmountScale)
	if amount.GreaterThanOrEqual(limit) {
		return decimal.Zero, NewInvalidAmountError(s, fmt.Sprintf("must be less than %s", limit.String()))
	}
	return amount.Round(AmountScale), nil
}

// NormalizeCurrency upper-cases a three-letter ISO currency code.
func NormalizeCurrency(s string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(s))
	if !currencyPattern.MatchString(c) {
		return "", domain.NewValidationErrorWithCode(CodeInvalidCurrency,
			fmt.Sprintf("Invalid currency: %q", s))
	}
	return c, nil
}

// ParsePayload validates an opaque provider payload. Blank input yields nil.
// The original bytes are kept so providers see exactly what the caller sent.
func ParsePayload(s string) (json.RawMessage, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return nil, nil
	}
	if !json.Valid([]byte(raw)) {
		return nil, domain.NewValidationErrorWithCode(CodeInvalidPayload, "Invalid payloadJson").
			WithDetail("payload_length", len(s))
	}
	return json.RawMessage(raw), nil
}
