package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// PricingConfig holds the checkout knobs. Tax and fee rates are
// deployment configuration, not constants.
type PricingConfig struct {
	DeliveryFeeBase float64
	ServiceFeeRate  float64
	TaxRate         float64
	LoyaltyRate     float64
	DeliveryETA     time.Duration
}

type Config struct {
	App struct {
		Port string
	}
	Postgres PostgresConfig
	Auth     AuthConfig
	Pricing  PricingConfig
}

// Load reads configuration from the environment, optionally seeded from a
// .env file. Database credentials and the JWT secret are required.
func Load(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	cfg := &Config{}
	cfg.App.Port = getEnv("APP_PORT", "8080")

	for _, required := range []struct {
		name  string
		value *string
	}{
		{"DB_HOST", &cfg.Postgres.Host},
		{"DB_PORT", &cfg.Postgres.Port},
		{"DB_USER", &cfg.Postgres.User},
		{"DB_PASSWORD", &cfg.Postgres.Password},
		{"DB_NAME", &cfg.Postgres.DBName},
		{"JWT_SECRET", &cfg.Auth.JWTSecret},
	} {
		v := os.Getenv(required.name)
		if v == "" {
			return nil, fmt.Errorf("%s is required", required.name)
		}
		*required.value = v
	}

	cfg.Postgres.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Postgres.MaxConns = int32(getEnvInt("DB_MAX_CONNS", 10))
	cfg.Postgres.MinConns = int32(getEnvInt("DB_MIN_CONNS", 2))
	cfg.Postgres.MaxConnLifetime = getEnvDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute)

	cfg.Auth.TokenTTL = getEnvDuration("JWT_TTL", 24*time.Hour)

	cfg.Pricing.DeliveryFeeBase = getEnvFloat("DELIVERY_FEE_BASE", 2.99)
	cfg.Pricing.ServiceFeeRate = getEnvFloat("SERVICE_FEE_RATE", 0.05)
	cfg.Pricing.TaxRate = getEnvFloat("TAX_RATE", 0.08)
	cfg.Pricing.LoyaltyRate = getEnvFloat("LOYALTY_RATE", 0.10)
	cfg.Pricing.DeliveryETA = getEnvDuration("DELIVERY_ETA", 45*time.Minute)

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
