package application

import (
	"context"

	"go.uber.org/zap"

	"github.com/resbook/service-booking/internal/domain/payment"
	"github.com/resbook/service-booking/pkg/kafka"
)

const eventSource = "service-booking"

// Transactor runs fn as one unit of work. Store calls made with the ctx
// passed to fn join that unit of work; a nested call joins the outer one.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher delivers CloudEvents to a topic.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error
}

// ProviderLookup resolves the client for a payment provider.
type ProviderLookup interface {
	Lookup(p payment.Provider) (payment.ProviderClient, bool)
}

// pendingEvent is an event collected inside a transaction and published
// only after it commits.
type pendingEvent struct {
	topic     string
	eventType string
	key       string
	data      interface{}
}

type eventSink struct {
	publisher EventPublisher
	logger    *zap.Logger
}

// publish sends events in order. Failures are logged, never returned: the
// state change they describe has already been committed.
func (s eventSink) publish(ctx context.Context, evts ...pendingEvent) {
	if s.publisher == nil {
		return
	}
	for _, e := range evts {
		cloudEvent, err := kafka.NewCloudEvent(eventSource, e.eventType, e.data)
		if err != nil {
			s.logger.Error("failed to create cloud event",
				zap.String("event_type", e.eventType),
				zap.Error(err),
			)
			continue
		}
		cloudEvent.Subject = e.key

		if err := s.publisher.PublishEvent(ctx, e.topic, cloudEvent); err != nil {
			s.logger.Error("failed to publish event",
				zap.String("topic", e.topic),
				zap.String("event_type", e.eventType),
				zap.Error(err),
			)
		}
	}
}
