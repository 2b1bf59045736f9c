package config

const (
	EnvPrefix = "RELEASEHUB"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	EnvAppEnv              = "RELEASEHUB_APP_ENV"
	EnvPort                = "RELEASEHUB_APP_PORT"
	EnvDBDSN               = "RELEASEHUB_DB_DSN"
	EnvDBHost              = "RELEASEHUB_DB_HOST"
	EnvDBUser              = "RELEASEHUB_DB_USER"
	EnvDBName              = "RELEASEHUB_DB_NAME"
	EnvDBPassword          = "RELEASEHUB_DB_PASSWORD"
	EnvUseSQLite           = "RELEASEHUB_USE_SQLITE"
	EnvRedisURL            = "RELEASEHUB_REDIS_URL"
	EnvJWTSecret           = "RELEASEHUB_JWT_SECRET"
	EnvStripeWebhookSecret = "RELEASEHUB_STRIPE_WEBHOOK_SECRET"
	EnvPlanMapping         = "RELEASEHUB_PLAN_MAPPING"
	EnvDefaultPlans        = "RELEASEHUB_DEFAULT_PLANS"
	EnvNotificationTopic   = "RELEASEHUB_PUBSUB_NOTIFICATION_TOPIC"
	EnvWebhookTimeout      = "RELEASEHUB_WEBHOOK_PROCESSING_TIMEOUT"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
