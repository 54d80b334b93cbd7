package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	Settlement    SettlementConfig
	Notifications NotificationsConfig
	Realtime      RealtimeConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	Outbox        OutboxConfig
	Stripe        StripeConfig
	Razorpay      RazorpayConfig
	Twilio        TwilioConfig
	Tracing       TracingConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Settlement.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"THALIBOX_APP_ENV" required:"true"`
	Port         string `envconfig:"THALIBOX_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"THALIBOX_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"THALIBOX_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"THALIBOX_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind        string `envconfig:"THALIBOX_SERVICE_KIND" default:"api"`
	InstanceID  string `envconfig:"THALIBOX_INSTANCE_ID" default:"worker-0"`
	// MetricsAddr is the worker /metrics listener. Empty disables it.
	MetricsAddr string `envconfig:"THALIBOX_METRICS_ADDR" default:":9090"`
}

type DBConfig struct {
	DSN    string `envconfig:"THALIBOX_DB_DSN"`
	Driver string `envconfig:"THALIBOX_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"THALIBOX_DB_HOST"`
	LegacyPort     int    `envconfig:"THALIBOX_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"THALIBOX_DB_USER"`
	LegacyPassword string `envconfig:"THALIBOX_DB_PASSWORD"`
	LegacyName     string `envconfig:"THALIBOX_DB_NAME"`
	LegacySSLMode  string `envconfig:"THALIBOX_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"THALIBOX_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"THALIBOX_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"THALIBOX_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"THALIBOX_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"THALIBOX_REDIS_URL" required:"true"`
	Address      string        `envconfig:"THALIBOX_REDIS_ADDR"`
	Password     string        `envconfig:"THALIBOX_REDIS_PASSWORD"`
	DB           int           `envconfig:"THALIBOX_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"THALIBOX_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"THALIBOX_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"THALIBOX_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"THALIBOX_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"THALIBOX_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"THALIBOX_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"THALIBOX_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"THALIBOX_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"THALIBOX_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"THALIBOX_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"THALIBOX_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"THALIBOX_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"THALIBOX_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"THALIBOX_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"THALIBOX_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"THALIBOX_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"THALIBOX_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"THALIBOX_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"THALIBOX_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"THALIBOX_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"THALIBOX_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"THALIBOX_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	ConsumerLease        time.Duration `envconfig:"THALIBOX_EVENTING_CONSUMER_LEASE" default:"2m"`
}

// SettlementConfig holds the platform-wide commission and GST percentages
// applied when a seller has no override.
type SettlementConfig struct {
	DefaultCommissionPercent float64 `envconfig:"THALIBOX_SETTLEMENT_COMMISSION_PERCENT" default:"10"`
	DefaultGSTPercent        float64 `envconfig:"THALIBOX_SETTLEMENT_GST_PERCENT" default:"18"`
}

func (s SettlementConfig) validate() error {
	if s.DefaultCommissionPercent < 0 || s.DefaultCommissionPercent > 100 {
		return fmt.Errorf("%s must be within 0..100", EnvSettlementCommission)
	}
	if s.DefaultGSTPercent < 0 || s.DefaultGSTPercent > 100 {
		return fmt.Errorf("%s must be within 0..100", EnvSettlementGST)
	}
	if s.DefaultCommissionPercent+s.DefaultGSTPercent > 100 {
		return fmt.Errorf("commission plus gst must not exceed 100 percent")
	}
	return nil
}

type NotificationsConfig struct {
	RetentionDays int           `envconfig:"THALIBOX_NOTIFICATIONS_RETENTION_DAYS" default:"30"`
	SMSTimeout    time.Duration `envconfig:"THALIBOX_NOTIFICATIONS_SMS_TIMEOUT" default:"10s"`
}

type RealtimeConfig struct {
	AllowedOrigins []string      `envconfig:"THALIBOX_REALTIME_ALLOWED_ORIGINS"`
	RedisFanout    bool          `envconfig:"THALIBOX_REALTIME_REDIS_FANOUT" default:"false"`
	Channel        string        `envconfig:"THALIBOX_REALTIME_CHANNEL" default:"realtime"`
	WriteTimeout   time.Duration `envconfig:"THALIBOX_REALTIME_WRITE_TIMEOUT" default:"10s"`
	PingPeriod     time.Duration `envconfig:"THALIBOX_REALTIME_PING_PERIOD" default:"30s"`
	SendBuffer     int           `envconfig:"THALIBOX_REALTIME_SEND_BUFFER" default:"32"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"THALIBOX_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"THALIBOX_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"THALIBOX_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic           string `envconfig:"THALIBOX_PUBSUB_DOMAIN_TOPIC" default:"marketplace-domain-events"`
	AnalyticsSubscription string `envconfig:"THALIBOX_PUBSUB_ANALYTICS_SUBSCRIPTION" default:"marketplace-analytics"`
}

type BigQueryConfig struct {
	Dataset                string `envconfig:"THALIBOX_BIGQUERY_DATASET" default:"thalibox"`
	MarketplaceEventsTable string `envconfig:"THALIBOX_BIGQUERY_MARKETPLACE_TABLE" default:"marketplace_events"`
	AutoCreateTables       bool   `envconfig:"THALIBOX_BIGQUERY_AUTO_CREATE_TABLES" default:"false"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"THALIBOX_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"THALIBOX_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"THALIBOX_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type StripeConfig struct {
	APIKey   string `envconfig:"THALIBOX_STRIPE_API_KEY"`
	Env      string `envconfig:"THALIBOX_STRIPE_ENV" default:"test"`
	Currency string `envconfig:"THALIBOX_STRIPE_CURRENCY" default:"inr"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// Enabled reports whether Stripe credentials are present.
func (s StripeConfig) Enabled() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

type RazorpayConfig struct {
	KeyID     string `envconfig:"THALIBOX_RAZORPAY_KEY_ID"`
	KeySecret string `envconfig:"THALIBOX_RAZORPAY_KEY_SECRET"`
	Currency  string `envconfig:"THALIBOX_RAZORPAY_CURRENCY" default:"INR"`
}

// Enabled reports whether both Razorpay credentials are present.
func (r RazorpayConfig) Enabled() bool {
	return strings.TrimSpace(r.KeyID) != "" && strings.TrimSpace(r.KeySecret) != ""
}

type TwilioConfig struct {
	AccountSID string `envconfig:"THALIBOX_TWILIO_ACCOUNT_SID"`
	AuthToken  string `envconfig:"THALIBOX_TWILIO_AUTH_TOKEN"`
	FromNumber string `envconfig:"THALIBOX_TWILIO_FROM_NUMBER"`
}

// Enabled reports whether SMS delivery can be attempted.
func (t TwilioConfig) Enabled() bool {
	return strings.TrimSpace(t.AccountSID) != "" &&
		strings.TrimSpace(t.AuthToken) != "" &&
		strings.TrimSpace(t.FromNumber) != ""
}

type TracingConfig struct {
	Enabled      bool   `envconfig:"THALIBOX_TRACING_ENABLED" default:"false"`
	OTLPEndpoint string `envconfig:"THALIBOX_OTLP_ENDPOINT"`
	Insecure     bool   `envconfig:"THALIBOX_OTLP_INSECURE" default:"true"`
}

type CronConfig struct {
	Interval              time.Duration `envconfig:"THALIBOX_CRON_INTERVAL" default:"1h"`
	LockTTL               time.Duration `envconfig:"THALIBOX_CRON_LOCK_TTL" default:"30m"`
	SettlementBackfillMax int           `envconfig:"THALIBOX_CRON_SETTLEMENT_BACKFILL_MAX" default:"200"`
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
