package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/resbook/service-booking/internal/domain/payment"
)

// ErrChargePending means the provider accepted the request but has not
// decided yet. The payment stays NEW until it is reconciled.
var ErrChargePending = errors.New("charge is pending at provider")

// omisePayload is the provider payload understood by OmiseCardClient.
type omisePayload struct {
	CardToken   string `json:"card_token"`
	ChargeID    string `json:"charge_id"`
	Description string `json:"description"`
}

// OmiseCardClient charges cards through Omise.
type OmiseCardClient struct {
	client *omise.Client
	logger *zap.Logger
}

// NewOmiseCardClient builds a card client from Omise API keys.
func NewOmiseCardClient(publicKey, secretKey string, logger *zap.Logger) (*OmiseCardClient, error) {
	c, err := omise.NewClient(publicKey, secretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create omise client: %w", err)
	}
	return &OmiseCardClient{client: c, logger: logger}, nil
}

func (o *OmiseCardClient) Provider() payment.Provider { return payment.ProviderCard }

// Charge creates an Omise charge for the card token in payload.
func (o *OmiseCardClient) Charge(ctx context.Context, amount decimal.Decimal, currency string, payload json.RawMessage) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var p omisePayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			return false, fmt.Errorf("omise payload: %w", err)
		}
	}
	if p.CardToken == "" {
		return false, errors.New("omise payload: card_token is required")
	}

	ch := &omise.Charge{}
	err := o.client.Do(ch, &operations.CreateCharge{
		Amount:      toMinorUnits(amount),
		Currency:    currency,
		Card:        p.CardToken,
		Description: p.Description,
	})
	if err != nil {
		return false, fmt.Errorf("omise create charge: %w", err)
	}

	o.logger.Info("omise charge created",
		zap.String("charge_id", ch.ID),
		zap.String("status", string(ch.Status)),
	)

	switch string(ch.Status) {
	case "successful":
		return true, nil
	case "failed", "expired", "reversed":
		if ch.FailureCode != nil {
			o.logger.Warn("omise charge declined", zap.String("charge_id", ch.ID), zap.String("failure_code", *ch.FailureCode))
		}
		return false, nil
	default:
		return false, fmt.Errorf("%w: %s is %s", ErrChargePending, ch.ID, ch.Status)
	}
}

// Cancel refunds the charge named by charge_id in payload. It backs
// operator-driven refunds and is not called by the payment flow.
func (o *OmiseCardClient) Cancel(ctx context.Context, payload json.RawMessage) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var p omisePayload
	if err := json.Unmarshal(payload, &p); err != nil || p.ChargeID == "" {
		return false, errors.New("omise payload: charge_id is required")
	}

	ch := &omise.Charge{}
	if err := o.client.Do(ch, &operations.RetrieveCharge{ChargeID: p.ChargeID}); err != nil {
		return false, fmt.Errorf("omise retrieve charge: %w", err)
	}

	refund := &omise.Refund{}
	if err := o.client.Do(refund, &operations.CreateRefund{ChargeID: ch.ID, Amount: ch.Amount}); err != nil {
		return false, fmt.Errorf("omise create refund: %w", err)
	}
	return true, nil
}

// toMinorUnits converts 12.34 into 1234.
func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(payment.AmountScale).Round(0).IntPart()
}
