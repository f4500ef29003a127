package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/nimasrn/poultry-ledger/pkg/logger"
	"github.com/nimasrn/poultry-ledger/pkg/pg"
	"github.com/nimasrn/poultry-ledger/pkg/redis"
	"github.com/pkg/errors"
)

var config *Config

// Config holds every setting the processes read. Nothing else may read
// the environment directly.
type Config struct {
	AppEnv              string `env:"APP_ENV,default=dev"`
	AppName             string `env:"APP_NAME,default=poultry_ledger"`
	AppDebug            bool   `env:"APP_DEBUG,default=true"`
	AppDebugMetricsAddr string `env:"APP_DEBUG_METRIC_ADDR"`
	AppDebugMetricsURI  string `env:"APP_DEBUG_METRIC_URI,default=/metrics"`

	HttpListenAddr            string        `env:"HTTP_LISTEN_ADDR,default=:5000"`
	HttpBaseRequestUrl        string        `env:"HTTP_BASE_REQUEST_URI,default=/api/v1"`
	HttpServerReadTimeout     time.Duration `env:"HTTP_SERVER_READ_TIMEOUT,default=10s"`
	HttpServerWriteTimeout    time.Duration `env:"HTTP_SERVER_WRITE_TIMEOUT,default=10s"`
	HttpServerReadBufferSize  int           `env:"HTTP_SERVER_READ_BUFFER_SIZE"`
	HttpServerWriteBufferSize int           `env:"HTTP_SERVER_WRITE_BUFFER_SIZE"`
	HttpRequestTimeout        time.Duration `env:"HTTP_REQUEST_TIMEOUT,default=15s"`
	HttpCORSOrigin            string        `env:"HTTP_CORS_ORIGIN,default=*"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	MigrationsDir string `env:"MIGRATIONS_DIR,default=migrations"`

	RedisAddr               string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX"`

	PromNamespace string `env:"PROM_NAMESPACE,default=poultry"`

	AuthJWTSecret  string        `env:"AUTH_JWT_SECRET"`
	AuthTokenTTL   time.Duration `env:"AUTH_TOKEN_TTL,default=24h"`
	AuthIssuer     string        `env:"AUTH_ISSUER,default=poultry-ledger"`
	AuthDisabled   bool          `env:"AUTH_DISABLED"`
	EventsDisabled bool          `env:"EVENTS_DISABLED"`

	PaginationDefaultLimit int `env:"PAGINATION_DEFAULT_LIMIT,default=10"`
	PaginationMaxLimit     int `env:"PAGINATION_MAX_LIMIT,default=100"`

	EventsStream            string        `env:"EVENTS_STREAM,default=ledger:events"`
	EventsConsumerGroup     string        `env:"EVENTS_CONSUMER_GROUP,default=ledger-notifier"`
	EventsConsumerName      string        `env:"EVENTS_CONSUMER_NAME"`
	EventsMaxRetries        int           `env:"EVENTS_MAX_RETRIES,default=5"`
	EventsVisibilityTimeout time.Duration `env:"EVENTS_VISIBILITY_TIMEOUT,default=30s"`
	EventsPollInterval      time.Duration `env:"EVENTS_POLL_INTERVAL,default=500ms"`
	EventsBatchSize         int64         `env:"EVENTS_BATCH_SIZE,default=20"`
	EventsMaxLen            int64         `env:"EVENTS_MAX_LEN,default=100000"`
	EventsEnableDLQ         bool          `env:"EVENTS_ENABLE_DLQ,default=true"`

	NotifierWorkers      int           `env:"NOTIFIER_WORKERS,default=8"`
	NotifierLockTTL      time.Duration `env:"NOTIFIER_LOCK_TTL,default=30s"`
	NotifierDeliveredTTL time.Duration `env:"NOTIFIER_DELIVERED_TTL,default=24h"`

	WebhookURL     string        `env:"WEBHOOK_URL"`
	WebhookSecret  string        `env:"WEBHOOK_SECRET"`
	WebhookTimeout time.Duration `env:"WEBHOOK_TIMEOUT,default=5s"`

	WebhookSinkAddr string `env:"WEBHOOK_SINK_ADDR,default=:8081"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	if path != "" {
		logger.Info("loading env file", "path", path)
		if err := godotenv.Load(path); err != nil {
			return errors.Wrapf(err, "failed to load configuration file %s", path)
		}
	}

	if _, err := env.UnmarshalFromEnviron(c); err != nil {
		return errors.Wrap(err, "failed to map env variables to configuration")
	}
	if err := c.Validate(); err != nil {
		return err
	}

	config = c
	return nil
}

// Validate rejects combinations the processes cannot run with.
func (c *Config) Validate() error {
	if c.PaginationDefaultLimit < 1 {
		return errors.New("PAGINATION_DEFAULT_LIMIT must be at least 1")
	}
	if c.PaginationMaxLimit < c.PaginationDefaultLimit {
		return errors.New("PAGINATION_MAX_LIMIT must not be below PAGINATION_DEFAULT_LIMIT")
	}
	return nil
}

func (c *Config) PostgresRead() pg.Config {
	return pg.Config{
		Host:     c.PostgresReadHost,
		Port:     c.PostgresReadPort,
		User:     c.PostgresReadUser,
		Password: c.PostgresReadPassword,
		Database: c.PostgresReadDatabase,
	}
}

func (c *Config) PostgresWrite() pg.Config {
	return pg.Config{
		Host:     c.PostgresWriteHost,
		Port:     c.PostgresWritePort,
		User:     c.PostgresWriteUser,
		Password: c.PostgresWritePassword,
		Database: c.PostgresWriteDatabase,
	}
}

func (c *Config) Redis() *redis.Options {
	return &redis.Options{
		Addrs:    []string{c.RedisAddr},
		Username: c.RedisUsername,
		Password: c.RedisPassword,
		DB:       c.RedisDatabase,
	}
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}
