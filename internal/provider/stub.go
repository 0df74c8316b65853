package provider

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/resbook/service-booking/internal/domain/payment"
)

// CardClient is the sandbox card provider. A payload containing
// "forceFail":true is declined, everything else is approved.
type CardClient struct{}

func NewCardClient() *CardClient { return &CardClient{} }

func (CardClient) Provider() payment.Provider { return payment.ProviderCard }

func (CardClient) Charge(_ context.Context, _ decimal.Decimal, _ string, payload json.RawMessage) (bool, error) {
	return !bytes.Contains(payload, []byte(`"forceFail":true`)), nil
}

// Cancel backs operator-driven refunds; the sandbox always accepts.
func (CardClient) Cancel(context.Context, json.RawMessage) (bool, error) {
	return true, nil
}

// PaypalClient is the sandbox PayPal provider. Any payload mentioning
// "fail" is declined.
type PaypalClient struct{}

func NewPaypalClient() *PaypalClient { return &PaypalClient{} }

func (PaypalClient) Provider() payment.Provider { return payment.ProviderPaypal }

func (PaypalClient) Charge(_ context.Context, _ decimal.Decimal, _ string, payload json.RawMessage) (bool, error) {
	return !bytes.Contains(payload, []byte("fail")), nil
}

// Cancel backs operator-driven refunds; the sandbox always accepts.
func (PaypalClient) Cancel(context.Context, json.RawMessage) (bool, error) {
	return true, nil
}
