package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

// Config is the process configuration, read once from REMITFLOW_* variables.
// Every binary loads the whole struct and uses the sections it needs.
type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	CORS          CORSConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Transfers     TransfersConfig
	Commission    CommissionConfig
	Cron          CronConfig
}

// Load reads the environment, derives the database DSN when only its parts
// are set, and rejects settings that would break at runtime.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.DB.DSN == "" {
		dsn, err := cfg.DB.buildDSN()
		if err != nil {
			return nil, err
		}
		cfg.DB.DSN = dsn
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf(format, args...))
		}
	}
	check(c.JWT.ExpirationMinutes > 0, "%s must be positive", EnvJWTExpMins)
	check(c.Outbox.MaxAttempts > 0, "outbox max attempts must be positive")
	check(c.Outbox.BatchSize > 0, "outbox batch size must be positive")
	check(c.Cron.Interval > 0, "cron interval must be positive")
	check(c.Cron.LockTTL > 0 && c.Cron.LockTTL <= c.Cron.Interval, "cron lock ttl %s must be positive and not exceed interval %s", c.Cron.LockTTL, c.Cron.Interval)
	check(c.Transfers.ReferenceAttempts > 0, "%s must be positive", EnvReferenceAttempts)
	return errs
}

type AppConfig struct {
	Env          string `envconfig:"REMITFLOW_APP_ENV" required:"true"`
	Port         string `envconfig:"REMITFLOW_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"REMITFLOW_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"REMITFLOW_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"REMITFLOW_LOG_WARN_STACK" default:"false"`
	// MetricsAddr is where background workers serve /metrics. Empty disables it.
	MetricsAddr string `envconfig:"REMITFLOW_METRICS_ADDR"`
}

func (a AppConfig) IsDev() bool  { return strings.EqualFold(a.Env, AppEnvDev) }
func (a AppConfig) IsProd() bool { return strings.EqualFold(a.Env, AppEnvProd) }

type ServiceConfig struct {
	Kind string `envconfig:"REMITFLOW_SERVICE_KIND" default:"api"`
}

// DBConfig takes a full DSN or, when DSN is empty, host/user/name parts.
type DBConfig struct {
	DSN string `envconfig:"REMITFLOW_DB_DSN"`

	Host     string `envconfig:"REMITFLOW_DB_HOST"`
	Port     int    `envconfig:"REMITFLOW_DB_PORT" default:"5432"`
	User     string `envconfig:"REMITFLOW_DB_USER"`
	Password string `envconfig:"REMITFLOW_DB_PASSWORD"`
	Name     string `envconfig:"REMITFLOW_DB_NAME"`
	SSLMode  string `envconfig:"REMITFLOW_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"REMITFLOW_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"REMITFLOW_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"REMITFLOW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"REMITFLOW_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (db DBConfig) buildDSN() (string, error) {
	var missing []string
	for env, value := range map[string]string{EnvDBHost: db.Host, EnvDBUser: db.User, EnvDBName: db.Name} {
		if value == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return "", fmt.Errorf("%s or all of %s must be set", EnvDBDSN, strings.Join(missing, ", "))
	}

	user := url.User(db.User)
	if db.Password != "" {
		user = url.UserPassword(db.User, db.Password)
	}
	dsn := url.URL{
		Scheme: "postgres",
		User:   user,
		Host:   net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
		Path:   db.Name,
	}
	if db.SSLMode != "" {
		dsn.RawQuery = url.Values{"sslmode": {db.SSLMode}}.Encode()
	}
	return dsn.String(), nil
}

type RedisConfig struct {
	URL          string        `envconfig:"REMITFLOW_REDIS_URL" required:"true"`
	Address      string        `envconfig:"REMITFLOW_REDIS_ADDR"`
	Password     string        `envconfig:"REMITFLOW_REDIS_PASSWORD"`
	DB           int           `envconfig:"REMITFLOW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"REMITFLOW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REMITFLOW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"REMITFLOW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REMITFLOW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"REMITFLOW_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"REMITFLOW_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"REMITFLOW_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"REMITFLOW_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"REMITFLOW_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL is zero when RefreshTokenTTLMinutes is not positive.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(max(j.RefreshTokenTTLMinutes, 0)) * time.Minute
}

// PasswordConfig tunes argon2id hashing.
type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"REMITFLOW_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"REMITFLOW_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"REMITFLOW_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"REMITFLOW_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"REMITFLOW_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"REMITFLOW_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginUsernameLimit int           `envconfig:"REMITFLOW_AUTH_RATE_LIMIT_LOGIN_USERNAME_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"REMITFLOW_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"REMITFLOW_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"REMITFLOW_AUTO_MIGRATE" default:"false"`
	// AutoPromote turns off the reconciler that runs when a commission
	// configuration is saved. The cron recovery job runs either way.
	AutoPromote bool `envconfig:"REMITFLOW_AUTO_PROMOTE" default:"true"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"REMITFLOW_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"REMITFLOW_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"REMITFLOW_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"REMITFLOW_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	TransferTopic            string `envconfig:"REMITFLOW_PUBSUB_TRANSFER_TOPIC" default:"rf-transfer-events"`
	NotificationTopic        string `envconfig:"REMITFLOW_PUBSUB_NOTIFICATION_TOPIC" default:"rf-notification-events"`
	NotificationSubscription string `envconfig:"REMITFLOW_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"rf-notification-events-sub"`
}

type OutboxConfig struct {
	BatchSize    int           `envconfig:"REMITFLOW_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollInterval time.Duration `envconfig:"REMITFLOW_OUTBOX_PUBLISH_POLL_INTERVAL" default:"500ms"`
	MaxAttempts  int           `envconfig:"REMITFLOW_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type TransfersConfig struct {
	ReferenceAttempts int `envconfig:"REMITFLOW_TRANSFER_REFERENCE_ATTEMPTS" default:"100"`
	ListDefaultLimit  int `envconfig:"REMITFLOW_TRANSFER_LIST_DEFAULT_LIMIT" default:"25"`
}

type CommissionConfig struct {
	// MinimumAmount is the smallest fixed fee a configuration may carry.
	MinimumAmount string `envconfig:"REMITFLOW_COMMISSION_MIN_AMOUNT" default:"0.0001"`
}

// Minimum parses MinimumAmount. Unparsable or non-positive values fall back
// to 0.0001.
func (c CommissionConfig) Minimum() decimal.Decimal {
	value, err := decimal.NewFromString(strings.TrimSpace(c.MinimumAmount))
	if err != nil || !value.IsPositive() {
		return decimal.New(1, -4)
	}
	return value
}

type CronConfig struct {
	Interval                  time.Duration `envconfig:"REMITFLOW_CRON_INTERVAL" default:"5m"`
	LockTTL                   time.Duration `envconfig:"REMITFLOW_CRON_LOCK_TTL" default:"4m"`
	OutboxRetentionDays       int           `envconfig:"REMITFLOW_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
	NotificationRetentionDays int           `envconfig:"REMITFLOW_CRON_NOTIFICATION_RETENTION_DAYS" default:"90"`
}
