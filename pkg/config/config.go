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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Chains       ChainsConfig
	Rates        RatesConfig
	Pipeline     PipelineConfig
	FiatRail     FiatRailConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Watcher      WatcherConfig
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
	Env          string `envconfig:"ATLASPAY_APP_ENV" required:"true"`
	Port         string `envconfig:"ATLASPAY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ATLASPAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ATLASPAY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ATLASPAY_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ATLASPAY_DB_DSN"`
	Driver string `envconfig:"ATLASPAY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ATLASPAY_DB_HOST"`
	LegacyPort     int    `envconfig:"ATLASPAY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ATLASPAY_DB_USER"`
	LegacyPassword string `envconfig:"ATLASPAY_DB_PASSWORD"`
	LegacyName     string `envconfig:"ATLASPAY_DB_NAME"`
	LegacySSLMode  string `envconfig:"ATLASPAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ATLASPAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ATLASPAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ATLASPAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ATLASPAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ATLASPAY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ATLASPAY_REDIS_ADDR"`
	Password     string        `envconfig:"ATLASPAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"ATLASPAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ATLASPAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ATLASPAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ATLASPAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ATLASPAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ATLASPAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"ATLASPAY_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"ATLASPAY_AUTO_MIGRATE" default:"false"`
}

// ChainsConfig selects the network the ledger adapters address against.
type ChainsConfig struct {
	Network string `envconfig:"ATLASPAY_CHAIN_NETWORK" default:"testnet"`
}

// RatesConfig carries the demo exchange-rate table (USD per whole coin). In
// production these feed from a live price source behind the same registry
// interface.
type RatesConfig struct {
	BTCUSD string `envconfig:"ATLASPAY_RATE_BTC_USD" default:"65000"`
	ETHUSD string `envconfig:"ATLASPAY_RATE_ETH_USD" default:"3000"`
	SOLUSD string `envconfig:"ATLASPAY_RATE_SOL_USD" default:"150"`
}

// PipelineConfig tunes the settlement pipeline orchestration.
type PipelineConfig struct {
	QuoteTTL         time.Duration `envconfig:"ATLASPAY_PIPELINE_QUOTE_TTL" default:"15m"`
	StageDelay       time.Duration `envconfig:"ATLASPAY_PIPELINE_STAGE_DELAY" default:"0s"`
	MinConfirmations int           `envconfig:"ATLASPAY_PIPELINE_MIN_CONFIRMATIONS" default:"1"`
}

// FiatRailConfig configures the bank-rail sandbox integration.
type FiatRailConfig struct {
	BaseURL           string        `envconfig:"ATLASPAY_FIATRAIL_BASE_URL" default:"https://sandbox.rail.atlaspay.io"`
	APIKey            string        `envconfig:"ATLASPAY_FIATRAIL_API_KEY"`
	Timeout           time.Duration `envconfig:"ATLASPAY_FIATRAIL_TIMEOUT" default:"10s"`
	MaxRetries        int           `envconfig:"ATLASPAY_FIATRAIL_MAX_RETRIES" default:"2"`
	SimulateOnFailure bool          `envconfig:"ATLASPAY_FIATRAIL_SIMULATE_ON_FAILURE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ATLASPAY_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"ATLASPAY_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"ATLASPAY_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	InvoiceEventsTopic        string `envconfig:"ATLASPAY_PUBSUB_INVOICE_EVENTS_TOPIC" default:"ap-invoice-events"`
	InvoiceEventsSubscription string `envconfig:"ATLASPAY_PUBSUB_INVOICE_EVENTS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"ATLASPAY_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"ATLASPAY_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"ATLASPAY_OUTBOX_MAX_ATTEMPTS" default:"10"`
	IdempotencyTTL time.Duration `envconfig:"ATLASPAY_OUTBOX_IDEMPOTENCY_TTL" default:"24h"`
}

// WatcherConfig tunes the background payment watcher.
type WatcherConfig struct {
	Interval        time.Duration `envconfig:"ATLASPAY_WATCHER_INTERVAL" default:"30s"`
	LockTTL         time.Duration `envconfig:"ATLASPAY_WATCHER_LOCK_TTL" default:"5m"`
	BatchSize       int           `envconfig:"ATLASPAY_WATCHER_BATCH_SIZE" default:"100"`
	OutboxRetention time.Duration `envconfig:"ATLASPAY_WATCHER_OUTBOX_RETENTION" default:"720h"`
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
