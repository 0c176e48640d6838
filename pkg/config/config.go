package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"github.com/schoolride/billing-backend/pkg/enums"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Stripe       StripeConfig
	Billing      BillingConfig
	Cron         CronConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Billing.validate(); err != nil {
		return nil, err
	}
	if _, err := cfg.Stripe.CurrencyCode(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SCHOOLRIDE_APP_ENV" required:"true"`
	Port         string `envconfig:"SCHOOLRIDE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SCHOOLRIDE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SCHOOLRIDE_LOG_WARN_STACK" default:"false"`

	CORSAllowedOrigins []string `envconfig:"SCHOOLRIDE_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SCHOOLRIDE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SCHOOLRIDE_DB_DSN"`
	Driver string `envconfig:"SCHOOLRIDE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SCHOOLRIDE_DB_HOST"`
	LegacyPort     int    `envconfig:"SCHOOLRIDE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SCHOOLRIDE_DB_USER"`
	LegacyPassword string `envconfig:"SCHOOLRIDE_DB_PASSWORD"`
	LegacyName     string `envconfig:"SCHOOLRIDE_DB_NAME"`
	LegacySSLMode  string `envconfig:"SCHOOLRIDE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SCHOOLRIDE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SCHOOLRIDE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SCHOOLRIDE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SCHOOLRIDE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SCHOOLRIDE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SCHOOLRIDE_REDIS_ADDR"`
	Password     string        `envconfig:"SCHOOLRIDE_REDIS_PASSWORD"`
	DB           int           `envconfig:"SCHOOLRIDE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SCHOOLRIDE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SCHOOLRIDE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SCHOOLRIDE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SCHOOLRIDE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SCHOOLRIDE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig carries the verification settings for tokens minted by the auth service.
type JWTConfig struct {
	Secret string `envconfig:"SCHOOLRIDE_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"SCHOOLRIDE_JWT_ISSUER" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SCHOOLRIDE_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey         string        `envconfig:"SCHOOLRIDE_STRIPE_API_KEY"`
	Secret         string        `envconfig:"SCHOOLRIDE_STRIPE_SECRET"`
	Env            string        `envconfig:"SCHOOLRIDE_STRIPE_ENV" default:"test"`
	Currency       string        `envconfig:"SCHOOLRIDE_STRIPE_CURRENCY" default:"pkr"`
	SuccessURL     string        `envconfig:"SCHOOLRIDE_STRIPE_SUCCESS_URL" default:"http://localhost:3000/parent/payments/success?session_id={CHECKOUT_SESSION_ID}"`
	CancelURL      string        `envconfig:"SCHOOLRIDE_STRIPE_CANCEL_URL" default:"http://localhost:3000/parent/payments/cancel"`
	RequestTimeout time.Duration `envconfig:"SCHOOLRIDE_STRIPE_REQUEST_TIMEOUT" default:"10s"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// CurrencyCode parses the checkout currency.
func (s StripeConfig) CurrencyCode() (enums.Currency, error) {
	currency, err := enums.ParseCurrency(s.Currency)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", EnvStripeCurrency, err)
	}
	return currency, nil
}

type BillingConfig struct {
	PlatformFeePercent  string        `envconfig:"SCHOOLRIDE_BILLING_PLATFORM_FEE_PERCENT" default:"5"`
	TimeZone            string        `envconfig:"SCHOOLRIDE_BILLING_TIME_ZONE" default:"UTC"`
	SettlementGraceDays int           `envconfig:"SCHOOLRIDE_BILLING_SETTLEMENT_GRACE_DAYS" default:"0"`
	WebhookIdempotency  time.Duration `envconfig:"SCHOOLRIDE_BILLING_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}

// Location resolves the configured billing time zone.
func (b BillingConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(b.TimeZone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading billing time zone %q: %w", name, err)
	}
	return loc, nil
}

// PlatformFee parses the platform cut, a percent in [0, 100].
func (b BillingConfig) PlatformFee() (decimal.Decimal, error) {
	fee, err := decimal.NewFromString(strings.TrimSpace(b.PlatformFeePercent))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing %s: %w", EnvPlatformFeePercent, err)
	}
	if fee.IsNegative() || fee.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, fmt.Errorf("%s must be between 0 and 100", EnvPlatformFeePercent)
	}
	return fee, nil
}

func (b BillingConfig) validate() error {
	if _, err := b.Location(); err != nil {
		return err
	}
	if _, err := b.PlatformFee(); err != nil {
		return err
	}
	if b.SettlementGraceDays < 0 {
		return fmt.Errorf("%s must not be negative", EnvSettlementGraceDays)
	}
	return nil
}

type CronConfig struct {
	Interval time.Duration `envconfig:"SCHOOLRIDE_CRON_INTERVAL" default:"1h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"SCHOOLRIDE_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	BillingTopic        string `envconfig:"SCHOOLRIDE_PUBSUB_BILLING_TOPIC" default:"sr-billing-events"`
	BillingSubscription string `envconfig:"SCHOOLRIDE_PUBSUB_BILLING_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SCHOOLRIDE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SCHOOLRIDE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SCHOOLRIDE_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"SCHOOLRIDE_OUTBOX_RETENTION_DAYS" default:"30"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
