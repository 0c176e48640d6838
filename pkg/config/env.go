package config

// EnvPrefix is handed to envconfig; every field carries an explicit name so the
// prefix only matters for fields without one.
const EnvPrefix = "SCHOOLRIDE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "SCHOOLRIDE_APP_ENV"
	EnvPort     = "SCHOOLRIDE_APP_PORT"
	EnvLogLevel = "SCHOOLRIDE_LOG_LEVEL"

	EnvDBDSN  = "SCHOOLRIDE_DB_DSN"
	EnvDBHost = "SCHOOLRIDE_DB_HOST"
	EnvDBUser = "SCHOOLRIDE_DB_USER"
	EnvDBName = "SCHOOLRIDE_DB_NAME"

	EnvRedisURL = "SCHOOLRIDE_REDIS_URL"

	EnvJWTSecret = "SCHOOLRIDE_JWT_SECRET"
	EnvJWTIssuer = "SCHOOLRIDE_JWT_ISSUER"

	EnvStripeAPIKey   = "SCHOOLRIDE_STRIPE_API_KEY"
	EnvStripeSecret   = "SCHOOLRIDE_STRIPE_SECRET"
	EnvStripeCurrency = "SCHOOLRIDE_STRIPE_CURRENCY"

	EnvPlatformFeePercent  = "SCHOOLRIDE_BILLING_PLATFORM_FEE_PERCENT"
	EnvBillingTimeZone     = "SCHOOLRIDE_BILLING_TIME_ZONE"
	EnvSettlementGraceDays = "SCHOOLRIDE_BILLING_SETTLEMENT_GRACE_DAYS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
