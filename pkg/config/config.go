package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Stripe       StripeConfig
	Plans        PlansConfig
	Webhooks     WebhooksConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Retention    RetentionConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"RELEASEHUB_APP_ENV" required:"true"`
	Port         string `envconfig:"RELEASEHUB_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"RELEASEHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RELEASEHUB_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"RELEASEHUB_DB_DSN"`
	Driver string `envconfig:"RELEASEHUB_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"RELEASEHUB_DB_HOST"`
	Port     int    `envconfig:"RELEASEHUB_DB_PORT" default:"5432"`
	User     string `envconfig:"RELEASEHUB_DB_USER"`
	Password string `envconfig:"RELEASEHUB_DB_PASSWORD"`
	Name     string `envconfig:"RELEASEHUB_DB_NAME"`
	SSLMode  string `envconfig:"RELEASEHUB_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"RELEASEHUB_SQLITE_PATH" default:"releasehub.db"`

	MaxOpenConns    int           `envconfig:"RELEASEHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RELEASEHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RELEASEHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RELEASEHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"RELEASEHUB_REDIS_URL"`
	Address      string        `envconfig:"RELEASEHUB_REDIS_ADDR"`
	Password     string        `envconfig:"RELEASEHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"RELEASEHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RELEASEHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RELEASEHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RELEASEHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RELEASEHUB_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"RELEASEHUB_REDIS_WRITE_TIMEOUT" default:"3s"`
}

// Enabled reports whether any Redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

// JWTConfig guards the admin read API. An empty secret disables those routes.
type JWTConfig struct {
	Secret            string `envconfig:"RELEASEHUB_JWT_SECRET"`
	Issuer            string `envconfig:"RELEASEHUB_JWT_ISSUER" default:"releasehub"`
	ExpirationMinutes int    `envconfig:"RELEASEHUB_JWT_EXPIRATION_MINUTES" default:"60"`
}

type StripeConfig struct {
	APIKey                   string        `envconfig:"RELEASEHUB_STRIPE_API_KEY"`
	WebhookSecret            string        `envconfig:"RELEASEHUB_STRIPE_WEBHOOK_SECRET"`
	Env                      string        `envconfig:"RELEASEHUB_STRIPE_ENV" default:"test"`
	IgnoreAPIVersionMismatch bool          `envconfig:"RELEASEHUB_STRIPE_IGNORE_API_VERSION_MISMATCH" default:"true"`
	SignatureTolerance       time.Duration `envconfig:"RELEASEHUB_STRIPE_SIGNATURE_TOLERANCE" default:"5m"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// PlansConfig holds the static price → plan mapping.
//
// MappingJSON is a JSON array of {"price_id","plan_type","role"} objects. It is only
// required by the processes that apply webhooks; plans.Load rejects an empty mapping.
// DefaultPlans maps a role to its starter plan, e.g. "artist:artist_starter,label:label_starter".
type PlansConfig struct {
	MappingJSON  string            `envconfig:"RELEASEHUB_PLAN_MAPPING"`
	DefaultPlans map[string]string `envconfig:"RELEASEHUB_DEFAULT_PLANS" default:"artist:artist_starter,label:label_starter"`
	DefaultRole  string            `envconfig:"RELEASEHUB_DEFAULT_ROLE" default:"artist"`
}

type WebhooksConfig struct {
	MaxBodyBytes         int64         `envconfig:"RELEASEHUB_WEBHOOK_MAX_BODY_BYTES" default:"1048576"`
	ProcessingTimeout    time.Duration `envconfig:"RELEASEHUB_WEBHOOK_PROCESSING_TIMEOUT" default:"10s"`
	InFlightTTL          time.Duration `envconfig:"RELEASEHUB_WEBHOOK_IN_FLIGHT_TTL" default:"30s"`
	MaxConflictRetries   int           `envconfig:"RELEASEHUB_WEBHOOK_MAX_CONFLICT_RETRIES" default:"3"`
	RecordPaymentIntents bool          `envconfig:"RELEASEHUB_WEBHOOK_RECORD_PAYMENT_INTENTS" default:"true"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"RELEASEHUB_GCP_PROJECT_ID"`
}

// PubSubConfig configures notification fan-out. Without a topic notifications are only logged.
type PubSubConfig struct {
	NotificationTopic string        `envconfig:"RELEASEHUB_PUBSUB_NOTIFICATION_TOPIC"`
	PublishTimeout    time.Duration `envconfig:"RELEASEHUB_PUBSUB_PUBLISH_TIMEOUT" default:"5s"`
}

// Enabled reports whether notification publishing to Pub/Sub is configured.
func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.NotificationTopic) != ""
}

type RetentionConfig struct {
	WebhookEventDays int           `envconfig:"RELEASEHUB_RETENTION_WEBHOOK_EVENT_DAYS" default:"30"`
	CronInterval     time.Duration `envconfig:"RELEASEHUB_CRON_INTERVAL" default:"24h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"RELEASEHUB_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"RELEASEHUB_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DriverSQLite
		if db.DSN == "" {
			db.DSN = db.SQLitePath
		}
		return nil
	}
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
