package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/shopspring/decimal"
)

type Config struct {
	Port                   string `env:"PORT" envDefault:"8080"`
	DBDriver               string `env:"DB_DRIVER" envDefault:"mysql"`
	DBUser                 string `env:"DB_USER,required"`
	DBPassword             string `env:"DB_PASSWORD,required"`
	DBHost                 string `env:"DB_HOST,required"` // e.g. tcp(host:3306) or unix(/cloudsql/instance)
	DBName                 string `env:"DB_NAME,required"`
	DBPort                 string `env:"DB_PORT" envDefault:"3306"`
	DBSSLMode              string `env:"DB_SSLMODE" envDefault:"disable"`
	InstanceConnectionName string `env:"INSTANCE_CONNECTION_NAME"`

	PlatformFeePercent string `env:"PLATFORM_FEE_PERCENT" envDefault:"10"`
	Currency           string `env:"CURRENCY" envDefault:"usd"`

	StripeSecretKey       string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret   string `env:"STRIPE_WEBHOOK_SECRET"`
	GatewayTimeoutSeconds int    `env:"GATEWAY_TIMEOUT_SECONDS" envDefault:"30"`
	GatewayMaxRetries     int64  `env:"GATEWAY_MAX_RETRIES" envDefault:"2"`
	FrontendURL           string `env:"FRONTEND_URL"`
	BackendURL            string `env:"BACKEND_URL" envDefault:"http://localhost:8080"`

	FirebaseProjectID     string `env:"FIREBASE_PROJECT_ID"`
	GoogleCredentialsFile string `env:"GOOGLE_CREDENTIALS_FILE"`
	AllowedOriginSuffix   string `env:"ALLOWED_ORIGIN_SUFFIX" envDefault:"vercel.app"`
	ReconcileBucket       string `env:"RECONCILE_BUCKET"`

	feeRate decimal.Decimal
}

var ErrInvalidFeePercent = errors.New("PLATFORM_FEE_PERCENT must be a number in [0, 100)")

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	rate, err := parseFeeRate(cfg.PlatformFeePercent)
	if err != nil {
		return nil, err
	}
	cfg.feeRate = rate
	return &cfg, nil
}

// FeeRate is the platform fee as a fraction of the order total (10% -> 0.1).
func (c *Config) FeeRate() decimal.Decimal {
	return c.feeRate
}

// GatewayTimeout is the per-request timeout of the payment gateway client.
func (c *Config) GatewayTimeout() time.Duration {
	if c.GatewayTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.GatewayTimeoutSeconds) * time.Second
}

// PublicURL is the base used for gateway redirect targets.
func (c *Config) PublicURL() string {
	if c.FrontendURL != "" {
		return c.FrontendURL
	}
	return c.BackendURL
}

func parseFeeRate(percent string) (decimal.Decimal, error) {
	p, err := decimal.NewFromString(percent)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidFeePercent, err)
	}
	if p.IsNegative() || p.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return decimal.Zero, ErrInvalidFeePercent
	}
	return p.Div(decimal.NewFromInt(100)), nil
}
