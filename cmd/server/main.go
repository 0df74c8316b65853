package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/resbook/service-booking/internal/application"
	"github.com/resbook/service-booking/internal/config"
	"github.com/resbook/service-booking/internal/domain/payment"
	bookingEvents "github.com/resbook/service-booking/internal/events"
	"github.com/resbook/service-booking/internal/handler"
	"github.com/resbook/service-booking/internal/provider"
	"github.com/resbook/service-booking/internal/repository"
	"github.com/resbook/service-booking/pkg/auth"
	"github.com/resbook/service-booking/pkg/database"
	"github.com/resbook/service-booking/pkg/health"
	"github.com/resbook/service-booking/pkg/kafka"
	"github.com/resbook/service-booking/pkg/logger"
	"github.com/resbook/service-booking/pkg/middleware"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, "service-booking")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-booking",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.AppEnv),
	)

	// Connect to database
	dbConfig := database.PostgresConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.DBName,
		SSLMode:  cfg.DBConfig.SSLMode,
	}
	db, err := database.Connect(dbConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// The overlap exclusion constraint only exists in the SQL migrations,
	// so every environment migrates from files.
	if err := database.RunMigrations(dbConfig.DatabaseURL(), "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	jwtManager := auth.NewJWTManager(
		cfg.JWTConfig.Secret,
		cfg.JWTConfig.AccessTTL,
		cfg.JWTConfig.RefreshTTL,
	)

	kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
	defer func() { _ = kafkaProducer.Close() }()

	// Repositories
	transactor := repository.NewGormTransactor(db)
	bookingRepo := repository.NewGormBookingRepository(db)
	resourceRepo := repository.NewGormResourceRepository(db)
	userRepo := repository.NewGormUserRepository(db)
	paymentRepo := repository.NewGormPaymentRepository(db)

	registry := provider.NewRegistry(log, paymentClients(cfg, log)...)
	log.Info("payment providers registered", zap.Any("providers", registry.Providers()))

	// Application services
	bookingService := application.NewBookingService(
		transactor,
		bookingRepo,
		resourceRepo,
		userRepo,
		kafkaProducer,
		log,
	)
	paymentService := application.NewPaymentService(
		transactor,
		paymentRepo,
		bookingRepo,
		bookingService,
		registry,
		kafkaProducer,
		log,
	)
	resourceService := application.NewResourceService(resourceRepo, log)

	// Start the reconciliation consumer in a goroutine
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	groupID := cfg.KafkaConfig.GroupPrefix + "booking-reconciler"
	reconciler := bookingEvents.NewPaymentReconciliationConsumer(
		cfg.KafkaConfig.Brokers,
		groupID,
		paymentService,
		log,
	)
	defer func() { _ = reconciler.Close() }()

	go func() {
		log.Info("starting payment reconciliation consumer")
		if err := reconciler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("payment reconciliation consumer error", zap.Error(err))
		}
	}()

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	health.NewHandler(db, "service-booking").RegisterRoutes(router)

	handler.NewBookingHandler(bookingService).RegisterRoutes(&router.RouterGroup, jwtManager)
	handler.NewPaymentHandler(paymentService).RegisterRoutes(&router.RouterGroup, jwtManager)
	handler.NewResourceHandler(resourceService).RegisterRoutes(&router.RouterGroup, jwtManager)
	handler.NewAdminHandler(bookingService, paymentService).RegisterRoutes(&router.RouterGroup, jwtManager)

	srv := &http.Server{
		Addr:    cfg.Port,
		Handler: router,
		// Payment requests wait on the provider inside the handler.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-booking...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info("service-booking stopped")
}

// paymentClients returns the provider clients in priority order. A
// configured Omise account takes the CARD provider ahead of the stub.
func paymentClients(cfg *config.ServiceConfig, log *zap.Logger) []payment.ProviderClient {
	var clients []payment.ProviderClient
	if cfg.PaymentConfig.OmiseSecretKey != "" {
		omiseClient, err := provider.NewOmiseCardClient(
			cfg.PaymentConfig.OmisePublicKey,
			cfg.PaymentConfig.OmiseSecretKey,
			log,
		)
		if err != nil {
			log.Fatal("failed to create omise client", zap.Error(err))
		}
		clients = append(clients, omiseClient)
	}
	return append(clients, provider.NewCardClient(), provider.NewPaypalClient())
}
