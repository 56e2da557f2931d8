package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "NUX"

	AppEnvDev  = "dev"
	AppEnvProd = "production"

	EnvAppEnv       = "NUX_APP_ENV"
	EnvPort         = "NUX_APP_PORT"
	EnvDBDSN        = "NUX_DB_DSN"
	EnvDBHost       = "NUX_DB_HOST"
	EnvDBUser       = "NUX_DB_USER"
	EnvDBName       = "NUX_DB_NAME"
	EnvRedisURL     = "NUX_REDIS_URL"
	EnvJWTSecret    = "NUX_JWT_SECRET"
	EnvJWTIssuer    = "NUX_JWT_ISSUER"
	EnvJWTExpMins   = "NUX_JWT_EXPIRATION_MINUTES"
	EnvGCPProjectID = "NUX_GCP_PROJECT_ID"
	EnvEventsTopic  = "NUX_PUBSUB_EVENTS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Loyalty      LoyaltyConfig
	Billing      BillingConfig
	RateLimit    RateLimitConfig
	Stripe       StripeConfig
	PayPal       PayPalConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"NUX_APP_ENV" required:"true"`
	Port         string `envconfig:"NUX_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"NUX_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"NUX_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"NUX_DB_DSN"`
	Driver string `envconfig:"NUX_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"NUX_DB_HOST"`
	LegacyPort     int    `envconfig:"NUX_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"NUX_DB_USER"`
	LegacyPassword string `envconfig:"NUX_DB_PASSWORD"`
	LegacyName     string `envconfig:"NUX_DB_NAME"`
	LegacySSLMode  string `envconfig:"NUX_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"NUX_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"NUX_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"NUX_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"NUX_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"NUX_REDIS_URL" required:"true"`
	Address      string        `envconfig:"NUX_REDIS_ADDR"`
	Password     string        `envconfig:"NUX_REDIS_PASSWORD"`
	DB           int           `envconfig:"NUX_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"NUX_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"NUX_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"NUX_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"NUX_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"NUX_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"NUX_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"NUX_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"NUX_JWT_EXPIRATION_MINUTES" required:"true"`
}

// AccessTokenTTL returns the access token lifetime.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// LoyaltyConfig tunes the scan accrual rules.
type LoyaltyConfig struct {
	ScanRadiusMeters float64       `envconfig:"NUX_LOYALTY_SCAN_RADIUS_METERS" default:"150"`
	ScanReplayWindow time.Duration `envconfig:"NUX_LOYALTY_SCAN_REPLAY_WINDOW" default:"1m"`
}

// BillingConfig tunes the subscription reconciler.
type BillingConfig struct {
	// PendingSubscriptionTTL bounds how long an unconfirmed checkout keeps
	// its pending row. Zero disables the expiry sweep.
	PendingSubscriptionTTL time.Duration `envconfig:"NUX_BILLING_PENDING_SUBSCRIPTION_TTL" default:"0"`
	RenewalGraceWindow     time.Duration `envconfig:"NUX_BILLING_RENEWAL_GRACE_WINDOW" default:"72h"`
}

// RateLimitConfig tunes the fixed-window limits on abuse-prone routes.
// A zero limit disables that scope.
type RateLimitConfig struct {
	ScanWindow        time.Duration `envconfig:"NUX_RATE_LIMIT_SCAN_WINDOW" default:"1m"`
	ScanIPLimit       int           `envconfig:"NUX_RATE_LIMIT_SCAN_IP_LIMIT" default:"30"`
	ScanUserLimit     int           `envconfig:"NUX_RATE_LIMIT_SCAN_USER_LIMIT" default:"10"`
	RegisterWindow    time.Duration `envconfig:"NUX_RATE_LIMIT_REGISTER_WINDOW" default:"1h"`
	RegisterIPLimit   int           `envconfig:"NUX_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
	RegisterUserLimit int           `envconfig:"NUX_RATE_LIMIT_REGISTER_USER_LIMIT" default:"0"`
}

type StripeConfig struct {
	APIKey string `envconfig:"NUX_STRIPE_API_KEY"`
	Secret string `envconfig:"NUX_STRIPE_SECRET"`
	Env    string `envconfig:"NUX_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type PayPalConfig struct {
	ClientID  string `envconfig:"NUX_PAYPAL_CLIENT_ID"`
	Secret    string `envconfig:"NUX_PAYPAL_SECRET"`
	WebhookID string `envconfig:"NUX_PAYPAL_WEBHOOK_ID"`
	BaseURL   string `envconfig:"NUX_PAYPAL_BASE_URL" default:"https://api-m.sandbox.paypal.com"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"NUX_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"NUX_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"NUX_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	EventsTopic string `envconfig:"NUX_PUBSUB_EVENTS_TOPIC" default:"nux-loyalty-events"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"NUX_AUTO_MIGRATE" default:"false"`
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
