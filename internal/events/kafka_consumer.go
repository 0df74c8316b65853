package events

import (
	"context"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/resbook/service-booking/internal/application"
	"github.com/resbook/service-booking/internal/domain/principal"
	"github.com/resbook/service-booking/pkg/domain"
	"github.com/resbook/service-booking/pkg/events"
	"github.com/resbook/service-booking/pkg/kafka"
)

// PaymentFinalizer settles a payment left in progress.
type PaymentFinalizer interface {
	FinalizePayment(ctx context.Context, p principal.Principal, paymentID uuid.UUID, succeeded bool) (*application.PaymentDTO, error)
}

// PaymentReconciliationConsumer listens for reconcile commands and
// finalizes payments whose provider call ended without an answer.
type PaymentReconciliationConsumer struct {
	consumer  *kafka.Consumer
	finalizer PaymentFinalizer
	logger    *zap.Logger
}

// NewPaymentReconciliationConsumer creates a new PaymentReconciliationConsumer.
func NewPaymentReconciliationConsumer(
	brokers []string,
	groupID string,
	finalizer PaymentFinalizer,
	logger *zap.Logger,
) *PaymentReconciliationConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, events.TopicPaymentReconciliation, logger)
	return &PaymentReconciliationConsumer{
		consumer:  consumer,
		finalizer: finalizer,
		logger:    logger,
	}
}

// Start begins consuming reconcile commands. This blocks until the context is cancelled.
func (c *PaymentReconciliationConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *PaymentReconciliationConsumer) Close() error {
	return c.consumer.Close()
}

func (c *PaymentReconciliationConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from reconciliation topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case events.PaymentReconcile:
		return c.handleReconcile(ctx, cloudEvent)
	default:
		c.logger.Debug("ignoring unhandled reconciliation event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

func (c *PaymentReconciliationConsumer) handleReconcile(ctx context.Context, cloudEvent kafka.CloudEvent) error {
	var cmd events.ReconcilePaymentCommand
	if err := cloudEvent.ParseData(&cmd); err != nil || cmd.PaymentID == uuid.Nil {
		c.logger.Error("failed to parse ReconcilePaymentCommand data",
			zap.String("event_id", cloudEvent.ID),
			zap.Error(err),
		)
		return nil
	}

	c.logger.Info("processing payment reconcile command",
		zap.String("payment_id", cmd.PaymentID.String()),
		zap.Bool("succeeded", cmd.Succeeded),
		zap.String("operator", cmd.Operator),
	)

	dto, err := c.finalizer.FinalizePayment(ctx, principal.System(cmd.Operator), cmd.PaymentID, cmd.Succeeded)
	if err != nil {
		if de, ok := domain.AsDomainError(err); ok && de.Code != domain.CodeConcurrentModification {
			// Replaying a rejected command cannot change the outcome.
			c.logger.Warn("payment reconcile rejected",
				zap.String("payment_id", cmd.PaymentID.String()),
				zap.Error(err),
			)
			return nil
		}
		c.logger.Error("failed to reconcile payment",
			zap.String("payment_id", cmd.PaymentID.String()),
			zap.Error(err),
		)
		return err
	}

	c.logger.Info("payment reconciled",
		zap.String("payment_id", dto.ID.String()),
		zap.String("status", dto.Status),
	)
	return nil
}
