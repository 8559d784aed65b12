package config

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Backends selectable through BACKEND.
const (
	BackendREST     = "rest"
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
)

type Config struct {
	HTTPAddr  string `env:"HTTP_ADDR,  default=127.0.0.1:8787"`
	Env       string `env:"ENV,        default=development"`
	LogLevel  string `env:"LOG_LEVEL,  default=info"`
	LogPretty bool   `env:"LOG_PRETTY, default=false"`
	Backend   string `env:"BACKEND,    default=rest"`

	JWTSecret       string        `env:"JWT_SECRET"`
	SessionTTL      time.Duration `env:"SESSION_TTL,      default=24h"`
	QueueWorkers    int           `env:"QUEUE_WORKERS,    default=8"`
	RefreshSchedule string        `env:"REFRESH_SCHEDULE, default=@every 5m"`
	Metrics         bool          `env:"METRICS,          default=true"`

	REST     RESTConfig
	Mongo    MongoConfig
	Postgres PostgresConfig
	Redis    RedisConfig
}

type RESTConfig struct {
	URL     string        `env:"REST_URL"`
	AnonKey string        `env:"REST_ANON_KEY"`
	Timeout time.Duration `env:"REST_TIMEOUT, default=15s"`
	Retries uint          `env:"REST_RETRIES, default=3"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=inventaris"`
}

type PostgresConfig struct {
	DSN string `env:"POSTGRES_DSN, default=postgres://localhost:5432/inventaris"`
}

// RedisConfig points at the session cache. An empty Addr keeps sessions in
// memory only.
type RedisConfig struct {
	Addr string `env:"REDIS_ADDR"`
	DB   int    `env:"REDIS_DB, default=0"`
}

// Load reads an optional .env file, then configuration from environment
// variables using go-envconfig. It panics on invalid configuration.
func Load() *Config {
	_ = godotenv.Load()

	cfg, err := Process(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// Process decodes and validates configuration from l.
func Process(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Backend {
	case BackendREST:
		if c.REST.URL == "" || c.REST.AnonKey == "" {
			return fmt.Errorf("REST_URL and REST_ANON_KEY are required for the %s backend", BackendREST)
		}
	case BackendMongo, BackendPostgres:
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required for the %s backend", c.Backend)
		}
	default:
		return fmt.Errorf("unknown BACKEND %q", c.Backend)
	}
	if c.QueueWorkers <= 0 {
		return fmt.Errorf("QUEUE_WORKERS must be positive")
	}
	return nil
}
