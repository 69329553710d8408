// Package config loads runtime settings from the environment.
package config

import (
	"context"
	"fmt"
	"net/url"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is the full runtime configuration.
type Config struct {
	Database DatabaseConfig
	HTTP     HTTPConfig
	Refresh  RefreshConfig
	Import   ImportConfig
	RabbitMQ RabbitMQConfig
	Log      LogConfig
}

// DatabaseConfig selects and locates the store.
type DatabaseConfig struct {
	Driver     string `env:"DB_DRIVER, default=postgres"`
	Host       string `env:"PG_HOST, default=localhost"`
	Port       int    `env:"PG_PORT, default=5432"`
	Name       string `env:"PG_DB, default=feedbox"`
	User       string `env:"PG_USER, default=postgres"`
	Password   string `env:"PG_PASSWORD"`
	SSLMode    string `env:"PG_SSLMODE, default=disable"`
	SQLitePath string `env:"SQLITE_PATH, default=feedbox.db"`
}

// DSN returns the data source name for the configured driver.
func (d DatabaseConfig) DSN() string {
	if d.Driver == DriverSQLite {
		return d.SQLitePath
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.Name,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

type HTTPConfig struct {
	Port int `env:"PORT, default=7070"`
}

// RefreshConfig tunes scheduled refreshes and feed fetching.
type RefreshConfig struct {
	// Minutes between scheduled refresh cycles; zero disables the poller.
	RateMinutes          int           `env:"REFRESH_RATE, default=60"`
	Workers              int           `env:"REFRESH_WORKERS, default=64"`
	FetchTimeout         time.Duration `env:"FETCH_TIMEOUT, default=20s"`
	UserAgent            string        `env:"USER_AGENT, default=feedbox/1.0 (+https://github.com/bryan-buckman/feedbox)"`
	MaxFeedBytes         int64         `env:"MAX_FEED_BYTES, default=10485760"`
	MaxEntityRefs        int           `env:"MAX_ENTITY_REFS, default=10000"`
	MaxGeneralEntityRefs int           `env:"MAX_GENERAL_ENTITY_REFS, default=5000"`
}

// Interval returns the refresh rate as a duration.
func (r RefreshConfig) Interval() time.Duration {
	return time.Duration(r.RateMinutes) * time.Minute
}

// ImportConfig tunes OPML imports.
type ImportConfig struct {
	Timeout time.Duration `env:"IMPORT_TIMEOUT, default=60s"`
	// Zero means twice the number of CPUs.
	Workers int `env:"IMPORT_WORKERS, default=0"`
}

// PoolSize returns the number of concurrent feed creations during an import.
func (i ImportConfig) PoolSize() int {
	if i.Workers > 0 {
		return i.Workers
	}
	return 2 * runtime.NumCPU()
}

// RabbitMQConfig configures refresh event publishing.
type RabbitMQConfig struct {
	// Empty disables publishing.
	URL        string `env:"AMQP_URL"`
	Exchange   string `env:"AMQP_EXCHANGE, default=feedbox"`
	RoutingKey string `env:"AMQP_ROUTING_KEY, default=feed.refreshed"`
	QueueName  string `env:"AMQP_QUEUE, default=feed_refreshes"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL, default=info"`
	Format string `env:"LOG_FORMAT, default=json"`
}

// Load reads an optional .env file and then the process environment.
func Load(ctx context.Context) (*Config, error) {
	_ = godotenv.Load()

	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith resolves the configuration against the given lookuper.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: l,
	}); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Refresh.RateMinutes < 0 {
		return fmt.Errorf("REFRESH_RATE must not be negative, got %d", c.Refresh.RateMinutes)
	}
	if c.Refresh.Workers <= 0 {
		return fmt.Errorf("REFRESH_WORKERS must be positive, got %d", c.Refresh.Workers)
	}
	if c.Import.Timeout <= 0 {
		return fmt.Errorf("IMPORT_TIMEOUT must be positive, got %s", c.Import.Timeout)
	}
	return nil
}
