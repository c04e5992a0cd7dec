package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "trocado"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "TROCADO_DB_DSN"
	EnvDBHost = "TROCADO_DB_HOST"
	EnvDBUser = "TROCADO_DB_USER"
	EnvDBName = "TROCADO_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Engine       EngineConfig
	Payments     PaymentsConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Engine.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TROCADO_APP_ENV" required:"true"`
	Port         string `envconfig:"TROCADO_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TROCADO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TROCADO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TROCADO_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TROCADO_DB_DSN"`
	Driver string `envconfig:"TROCADO_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TROCADO_DB_HOST"`
	LegacyPort     int    `envconfig:"TROCADO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TROCADO_DB_USER"`
	LegacyPassword string `envconfig:"TROCADO_DB_PASSWORD"`
	LegacyName     string `envconfig:"TROCADO_DB_NAME"`
	LegacySSLMode  string `envconfig:"TROCADO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TROCADO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TROCADO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TROCADO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TROCADO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TROCADO_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TROCADO_REDIS_ADDR"`
	Password     string        `envconfig:"TROCADO_REDIS_PASSWORD"`
	DB           int           `envconfig:"TROCADO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TROCADO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TROCADO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TROCADO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TROCADO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TROCADO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TROCADO_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TROCADO_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TROCADO_JWT_EXPIRATION_MINUTES" default:"60"`
}

// EngineConfig holds the ledger and reservation policy knobs.
type EngineConfig struct {
	ReservationTTL time.Duration `envconfig:"TROCADO_RESERVATION_TTL" default:"15m"`
	// Platform fee on settled reservations, in basis points (500 = 5%).
	FeeBps       int    `envconfig:"TROCADO_FEE_BPS" default:"500"`
	FeeAccountID string `envconfig:"TROCADO_FEE_ACCOUNT_ID" required:"true"`
}

func (e EngineConfig) validate() error {
	if e.FeeBps < 0 || e.FeeBps >= 10000 {
		return fmt.Errorf("fee bps must be in [0, 10000), got %d", e.FeeBps)
	}
	if e.ReservationTTL <= 0 {
		return fmt.Errorf("reservation ttl must be positive")
	}
	return nil
}


type PaymentsConfig struct {
	SigningSecret  string        `envconfig:"TROCADO_PAYMENTS_SIGNING_SECRET" required:"true"`
	IdempotencyTTL time.Duration `envconfig:"TROCADO_PAYMENTS_IDEMPOTENCY_TTL" default:"720h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"TROCADO_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"TROCADO_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TROCADO_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"TROCADO_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TROCADO_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	ReservationsTopic string `envconfig:"TROCADO_PUBSUB_RESERVATIONS_TOPIC" required:"true"`
	WalletTopic       string `envconfig:"TROCADO_PUBSUB_WALLET_TOPIC" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TROCADO_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TROCADO_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TROCADO_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"TROCADO_CRON_INTERVAL" default:"1m"`
	LockTTL  time.Duration `envconfig:"TROCADO_CRON_LOCK_TTL" default:"5m"`
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
