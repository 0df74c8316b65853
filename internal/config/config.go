package config

import (
	"github.com/resbook/service-booking/pkg/config"
)

// PaymentConfig holds provider credentials. An empty Omise secret key
// disables the Omise card client.
type PaymentConfig struct {
	OmisePublicKey string
	OmiseSecretKey string
}

// ServiceConfig holds all configuration for the booking service.
type ServiceConfig struct {
	Port          string
	AppEnv        string
	DBConfig      config.DatabaseConfig
	JWTConfig     config.JWTConfig
	KafkaConfig   config.KafkaConfig
	PaymentConfig PaymentConfig
}

// Load reads configuration from BOOKING_* environment variables and an
// optional .env file.
func Load(envFiles ...string) (*ServiceConfig, error) {
	v, err := config.Load("BOOKING", envFiles...)
	if err != nil {
		return nil, err
	}
	v.SetDefault("DB_NAME", "booking")

	return &ServiceConfig{
		Port:        config.GetServicePort(v, "SERVICE_PORT"),
		AppEnv:      config.GetAppEnv(v),
		DBConfig:    config.LoadDatabaseConfig(v, "DB_NAME"),
		JWTConfig:   config.LoadJWTConfig(v),
		KafkaConfig: config.LoadKafkaConfig(v),
		PaymentConfig: PaymentConfig{
			OmisePublicKey: v.GetString("OMISE_PUBLIC_KEY"),
			OmiseSecretKey: v.GetString("OMISE_SECRET_KEY"),
		},
	}, nil
}
