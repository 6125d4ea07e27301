package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Orders       OrdersConfig
	Payments     PaymentsConfig
	Stripe       StripeConfig
	Square       SquareConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Alerts       AlertsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Orders.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"STOREFRONT_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`

	// CORSOrigins is a comma separated allow-list for browser clients.
	CORSOrigins []string `envconfig:"STOREFRONT_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STOREFRONT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	// Driver selects the gorm dialector: postgres (default) or sqlite.
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`

	Host     string `envconfig:"STOREFRONT_DB_HOST"`
	Port     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	User     string `envconfig:"STOREFRONT_DB_USER"`
	Password string `envconfig:"STOREFRONT_DB_PASSWORD"`
	Name     string `envconfig:"STOREFRONT_DB_NAME"`
	SSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies tokens minted by the identity provider.
type JWTConfig struct {
	Secret string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"STOREFRONT_JWT_ISSUER" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

// OrdersConfig holds lifecycle policy knobs.
type OrdersConfig struct {
	CancellationWindow time.Duration `envconfig:"STOREFRONT_ORDERS_CANCELLATION_WINDOW" default:"5m"`
	CancellationPolicy string        `envconfig:"STOREFRONT_ORDERS_CANCELLATION_POLICY" default:"auto_within_window"`
	CartTTL            time.Duration `envconfig:"STOREFRONT_CART_TTL" default:"336h"`
}

// Policy returns the parsed cancellation policy. Load has already validated it.
func (o OrdersConfig) Policy() enums.CancellationPolicy {
	policy, err := enums.ParseCancellationPolicy(o.CancellationPolicy)
	if err != nil {
		return enums.CancellationPolicyAutoWithinWindow
	}
	return policy
}

func (o OrdersConfig) validate() error {
	if o.CancellationWindow < 0 {
		return fmt.Errorf("cancellation window must not be negative")
	}
	if _, err := enums.ParseCancellationPolicy(o.CancellationPolicy); err != nil {
		return err
	}
	return nil
}

type PaymentsConfig struct {
	MaxAttempts    uint64        `envconfig:"STOREFRONT_PAYMENTS_MAX_ATTEMPTS" default:"3"`
	RetryBase      time.Duration `envconfig:"STOREFRONT_PAYMENTS_RETRY_BASE" default:"200ms"`
	IdempotencyTTL time.Duration `envconfig:"STOREFRONT_PAYMENTS_IDEMPOTENCY_TTL" default:"720h"`
	Currency       string        `envconfig:"STOREFRONT_PAYMENTS_CURRENCY" default:"USD"`
	WebhookSecret  string        `envconfig:"STOREFRONT_PAYMENTS_WEBHOOK_SECRET"`

	// CashEnabled registers the cash provider. Cash settles on the customer's
	// word, so it stays off unless an operator collects payment in person.
	CashEnabled bool `envconfig:"STOREFRONT_PAYMENTS_CASH_ENABLED" default:"false"`

	RateLimitWindow  time.Duration `envconfig:"STOREFRONT_PAYMENTS_RATE_LIMIT_WINDOW" default:"1m"`
	RateLimitPerUser int           `envconfig:"STOREFRONT_PAYMENTS_RATE_LIMIT_PER_USER" default:"10"`
	RateLimitPerIP   int           `envconfig:"STOREFRONT_PAYMENTS_RATE_LIMIT_PER_IP" default:"30"`
}

type StripeConfig struct {
	APIKey        string `envconfig:"STOREFRONT_STRIPE_API_KEY"`
	Env           string `envconfig:"STOREFRONT_STRIPE_ENV" default:"test"`
	WebhookSecret string `envconfig:"STOREFRONT_STRIPE_WEBHOOK_SECRET"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SquareConfig struct {
	AccessToken string `envconfig:"STOREFRONT_SQUARE_ACCESS_TOKEN"`
	LocationID  string `envconfig:"STOREFRONT_SQUARE_LOCATION_ID"`
	Env         string `envconfig:"STOREFRONT_SQUARE_ENV" default:"sandbox"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type GCPConfig struct {
	ProjectID string `envconfig:"STOREFRONT_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"STOREFRONT_PUBSUB_ORDERS_TOPIC" default:"storefront-order-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"STOREFRONT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"STOREFRONT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"STOREFRONT_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"STOREFRONT_OUTBOX_RETENTION_DAYS" default:"7"`
}

type AlertsConfig struct {
	PollInterval  time.Duration `envconfig:"STOREFRONT_ALERTS_POLL_INTERVAL" default:"1m"`
	Lookback      time.Duration `envconfig:"STOREFRONT_ALERTS_LOOKBACK" default:"24h"`
	RetentionDays int           `envconfig:"STOREFRONT_ALERTS_RETENTION_DAYS" default:"30"`
}

func (db *DBConfig) ensureDSN() error {
	if strings.TrimSpace(db.DSN) != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = "file:storefront.db?cache=shared"
		return nil
	}
	if db.Host == "" || db.User == "" || db.Name == "" {
		return fmt.Errorf("database DSN or host/user/name must be provided")
	}
	dsn := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(db.User, db.Password),
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}
	query := dsn.Query()
	query.Set("sslmode", db.SSLMode)
	dsn.RawQuery = query.Encode()
	db.DSN = dsn.String()
	return nil
}

// IsSQLite reports whether the embedded sqlite driver is selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), "sqlite")
}
