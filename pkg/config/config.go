package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Billing  BillingConfig
	Razorpay RazorpayConfig
	Stripe   StripeConfig
	Email    EmailConfig
	Storage  StorageConfig
	Cron     CronConfig
}

type ServerConfig struct {
	Port        string `env:"PORT" envDefault:"3000"`
	Environment string `env:"APP_ENV" envDefault:"development"`
	// PublicURL is the externally reachable base used to build gateway callback URLs.
	PublicURL   string `env:"PUBLIC_URL" envDefault:"http://localhost:3000"`
	CORSOrigins string `env:"CORS_ORIGINS" envDefault:"*"`
}

type DatabaseConfig struct {
	URL          string `env:"DATABASE_URL,required,notEmpty"`
	MaxIdleConns int    `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	MaxOpenConns int    `env:"DB_MAX_OPEN_CONNS" envDefault:"100"`
}

type RedisConfig struct {
	// Empty Addr keeps the streak cache in process memory.
	Addr     string        `env:"REDIS_ADDR"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" envDefault:"0"`
	TTL      time.Duration `env:"STREAK_CACHE_TTL" envDefault:"168h"`
}

type AuthConfig struct {
	// Supabase signs access tokens with the project JWT secret (HS256).
	JWTSecret string `env:"SUPABASE_JWT_SECRET,required,notEmpty"`
}

type CancellationPolicy string

const (
	CancelGrace     CancellationPolicy = "grace"
	CancelImmediate CancellationPolicy = "immediate"
)

type BillingConfig struct {
	Gateway            string             `env:"BILLING_GATEWAY" envDefault:"razorpay"`
	CancellationPolicy CancellationPolicy `env:"BILLING_CANCELLATION_POLICY" envDefault:"grace"`
	USDToINR           decimal.Decimal    `env:"BILLING_USD_TO_INR" envDefault:"83"`
	CycleDays          int                `env:"BILLING_CYCLE_DAYS" envDefault:"30"`
	RenewalGrace       time.Duration      `env:"BILLING_RENEWAL_GRACE" envDefault:"48h"`
	AppName            string             `env:"APP_NAME" envDefault:"Muscle AI"`
}

type RazorpayConfig struct {
	KeyID         string `env:"RAZORPAY_KEY_ID"`
	KeySecret     string `env:"RAZORPAY_KEY_SECRET"`
	WebhookSecret string `env:"RAZORPAY_WEBHOOK_SECRET"`
}

type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
}

type EmailConfig struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	From                 string `env:"EMAIL_FROM" envDefault:"Muscle AI <noreply@muscleai.app>"`
}

type StorageConfig struct {
	R2AccountID string `env:"R2_ACCOUNT_ID"`
	R2AccessKey string `env:"R2_ACCESS_KEY"`
	R2SecretKey string `env:"R2_SECRET_KEY"`
	Bucket      string `env:"R2_BUCKET_NAME"`
	PublicURL   string `env:"R2_PUBLIC_URL" envDefault:"https://cdn.muscleai.app"`
}

type CronConfig struct {
	ExpirySchedule   string `env:"BILLING_EXPIRY_CRON" envDefault:"0 * * * *"`
	ReminderSchedule string `env:"STREAK_REMINDER_CRON" envDefault:"0 19 * * *"`
}

func (c ServerConfig) IsProduction() bool { return c.Environment == "production" }

func (c StorageConfig) Enabled() bool {
	return c.R2AccountID != "" && c.R2AccessKey != "" && c.R2SecretKey != "" && c.Bucket != ""
}

func (c EmailConfig) Enabled() bool { return c.PostmarkServerToken != "" }

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Billing.Gateway {
	case "razorpay":
		if c.Razorpay.KeyID == "" || c.Razorpay.KeySecret == "" {
			errs = append(errs, errors.New("RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET are required"))
		}
		if c.Razorpay.WebhookSecret == "" {
			errs = append(errs, errors.New("RAZORPAY_WEBHOOK_SECRET is required"))
		}
	case "stripe":
		if c.Stripe.SecretKey == "" || c.Stripe.WebhookSecret == "" {
			errs = append(errs, errors.New("STRIPE_SECRET_KEY and STRIPE_WEBHOOK_SECRET are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported BILLING_GATEWAY %q", c.Billing.Gateway))
	}

	switch c.Billing.CancellationPolicy {
	case CancelGrace, CancelImmediate:
	default:
		errs = append(errs, fmt.Errorf("unsupported BILLING_CANCELLATION_POLICY %q", c.Billing.CancellationPolicy))
	}

	if !c.Billing.USDToINR.IsPositive() {
		errs = append(errs, errors.New("BILLING_USD_TO_INR must be positive"))
	}
	if c.Billing.CycleDays <= 0 {
		errs = append(errs, errors.New("BILLING_CYCLE_DAYS must be positive"))
	}

	return errors.Join(errs...)
}
