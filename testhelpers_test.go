//go:build integration

package main_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/resbook/service-booking/internal/application"
	"github.com/resbook/service-booking/internal/domain/payment"
	"github.com/resbook/service-booking/internal/domain/principal"
	bookingEvents "github.com/resbook/service-booking/internal/events"
	"github.com/resbook/service-booking/internal/provider"
	"github.com/resbook/service-booking/internal/repository"
	"github.com/resbook/service-booking/pkg/database"
	"github.com/resbook/service-booking/pkg/events"
	"github.com/resbook/service-booking/pkg/kafka"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// bookingStack holds wired-up service components.
type bookingStack struct {
	Bookings        *application.BookingService
	Payments        *application.PaymentService
	Reconciler      *bookingEvents.PaymentReconciliationConsumer
	CleanupProducer func()
}

// setupContainers starts PostgreSQL and Kafka, applies the SQL migrations
// and returns a connected GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	pgContainer, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("test_booking"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err, "failed to start PostgreSQL container")

	dbURL, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = gorm.Open(postgres.Open(dbURL), &gorm.Config{})
		if err != nil {
			return false
		}
		sqlDB, err := db.DB()
		if err != nil {
			return false
		}
		return sqlDB.Ping() == nil
	}, 30*time.Second, time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, database.RunMigrations(dbURL, "migrations", logger))

	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	createTopics(t, kafkaBrokers,
		events.TopicBookingEvents,
		events.TopicPaymentEvents,
		events.TopicPaymentReconciliation,
	)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupBookingStack wires the engine, the orchestrator and the reconciler
// against the containers. Extra clients take precedence over the stubs.
func setupBookingStack(t *testing.T, db *gorm.DB, brokers []string, clients ...payment.ProviderClient) *bookingStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	tx := repository.NewGormTransactor(db)
	bookingRepo := repository.NewGormBookingRepository(db)
	producer := kafka.NewProducer(brokers, logger)

	registry := provider.NewRegistry(logger,
		append(clients, provider.NewCardClient(), provider.NewPaypalClient())...)

	bookingSvc := application.NewBookingService(
		tx,
		bookingRepo,
		repository.NewGormResourceRepository(db),
		repository.NewGormUserRepository(db),
		producer,
		logger,
	)
	paymentSvc := application.NewPaymentService(
		tx,
		repository.NewGormPaymentRepository(db),
		bookingRepo,
		bookingSvc,
		registry,
		producer,
		logger,
	)

	groupID := fmt.Sprintf("test-reconciler-%s", uuid.New().String()[:8])
	reconciler := bookingEvents.NewPaymentReconciliationConsumer(brokers, groupID, paymentSvc, logger)

	return &bookingStack{
		Bookings:        bookingSvc,
		Payments:        paymentSvc,
		Reconciler:      reconciler,
		CleanupProducer: func() { _ = producer.Close() },
	}
}

// seedUser inserts an account into the identity table and returns its principal.
func seedUser(t *testing.T, db *gorm.DB, email string) principal.Principal {
	t.Helper()
	model := repository.UserModel{ID: uuid.New(), Email: email, Role: "USER"}
	require.NoError(t, db.Create(&model).Error, "failed to seed user")
	return principal.New(model.ID, model.Email, false)
}

// seedResource inserts an active resource.
func seedResource(t *testing.T, db *gorm.DB, name string) uuid.UUID {
	t.Helper()
	now := time.Now().UTC()
	model := repository.ResourceModel{
		ID:        uuid.New(),
		Name:      name,
		Active:    true,
		Version:   1,
		CreatedAt: now,
		CreatedBy: "seed",
		UpdatedAt: now,
		UpdatedBy: "seed",
	}
	require.NoError(t, db.Create(&model).Error, "failed to seed resource")
	return model.ID
}

// slot returns an hour-aligned interval far enough in the future to stay valid.
func slot(offsetHours, lengthHours int) (time.Time, time.Time) {
	base := time.Date(2031, 3, 1, 9, 0, 0, 0, time.UTC)
	start := base.Add(time.Duration(offsetHours) * time.Hour)
	return start, start.Add(time.Duration(lengthHours) * time.Hour)
}

// pendingClient answers every charge with an unknown outcome.
type pendingClient struct{}

func (pendingClient) Provider() payment.Provider { return payment.ProviderPaypal }

func (pendingClient) Charge(context.Context, decimal.Decimal, string, json.RawMessage) (bool, error) {
	return false, errors.New("provider gateway timeout")
}

func (pendingClient) Cancel(context.Context, json.RawMessage) (bool, error) { return true, nil }

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, eventType, key string, data interface{}) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := kafka.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := kafka.NewCloudEvent("integration-test", eventType, data)
	require.NoError(t, err, "failed to create cloud event")
	ce.Subject = key

	err = producer.PublishEvent(context.Background(), topic, ce)
	require.NoError(t, err, "failed to publish event")
}

// waitForBookingStatus polls the bookings table until the status matches.
func waitForBookingStatus(t *testing.T, db *gorm.DB, bookingID uuid.UUID, expectedStatus string, timeout time.Duration) repository.BookingModel {
	t.Helper()
	var result repository.BookingModel
	require.Eventually(t, func() bool {
		var model repository.BookingModel
		if err := db.Where("id = ?", bookingID).First(&model).Error; err != nil {
			return false
		}
		if model.Status == expectedStatus {
			result = model
			return true
		}
		return false
	}, timeout, 200*time.Millisecond, "booking did not transition to %s", expectedStatus)
	return result
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the
// expected type whose subject matches key.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType, key string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType && ce.Subject == key {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	require.NoError(t, controllerConn.CreateTopics(topicConfigs...), "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(time.Second)
}
