// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/amazonmart/internal/storage"
	"github.com/dshills/amazonmart/internal/telemetry"
)

// DBConfig holds discrete PostgreSQL connection parameters
type DBConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
}

// Config is the full service configuration
type Config struct {
	Driver      string // storage.DriverSQLite or storage.DriverPostgres
	SQLitePath  string
	DatabaseURL string // overrides DB when set
	DB          DBConfig

	PoolMaxConns   int32
	ConnectRetries int

	HTTPAddr  string
	RedisAddr string // empty means in-process cache
	CacheSize int
	CacheTTL  time.Duration

	LogLevel slog.Level
}

// Load reads the environment, applies defaults and validates the result
func Load() (*Config, error) {
	cfg := &Config{
		Driver:      getenv("AMAZONMART_DB_DRIVER", storage.DriverSQLite),
		SQLitePath:  getenv("AMAZONMART_SQLITE_PATH", "amazonmart.db"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DB: DBConfig{
			Host:     getenv("AMAZONMART_DB_HOST", "localhost"),
			Port:     getenv("AMAZONMART_DB_PORT", "5432"),
			Name:     getenv("AMAZONMART_DB_NAME", "amazonmart"),
			User:     getenv("AMAZONMART_DB_USER", "postgres"),
			Password: os.Getenv("AMAZONMART_DB_PASSWORD"),
			SSLMode:  getenv("AMAZONMART_DB_SSLMODE", "require"),
		},
		HTTPAddr:  getenv("AMAZONMART_HTTP_ADDR", ":8080"),
		RedisAddr: os.Getenv("AMAZONMART_REDIS_ADDR"),
	}

	var err error
	if cfg.CacheSize, err = getInt("AMAZONMART_CACHE_SIZE", 64); err != nil {
		return nil, err
	}
	if cfg.ConnectRetries, err = getInt("AMAZONMART_CONNECT_RETRIES", 5); err != nil {
		return nil, err
	}
	maxConns, err := getInt("AMAZONMART_DB_MAX_CONNS", 10)
	if err != nil {
		return nil, err
	}
	cfg.PoolMaxConns = int32(maxConns)
	if cfg.CacheTTL, err = getDuration("AMAZONMART_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.LogLevel, err = telemetry.ParseLevel(os.Getenv("AMAZONMART_LOG_LEVEL")); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and combinations
func (c *Config) Validate() error {
	switch c.Driver {
	case storage.DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("AMAZONMART_SQLITE_PATH cannot be empty")
		}
	case storage.DriverPostgres:
		if c.DatabaseURL == "" {
			if c.DB.Host == "" || c.DB.Name == "" || c.DB.User == "" {
				return fmt.Errorf("postgres requires DATABASE_URL or AMAZONMART_DB_HOST, AMAZONMART_DB_NAME and AMAZONMART_DB_USER")
			}
			if _, err := strconv.Atoi(c.DB.Port); err != nil {
				return fmt.Errorf("invalid AMAZONMART_DB_PORT %q", c.DB.Port)
			}
		}
	default:
		return fmt.Errorf("unsupported AMAZONMART_DB_DRIVER %q (want %s or %s)",
			c.Driver, storage.DriverSQLite, storage.DriverPostgres)
	}

	if c.CacheSize < 0 {
		return fmt.Errorf("AMAZONMART_CACHE_SIZE cannot be negative")
	}
	if c.ConnectRetries < 1 {
		return fmt.Errorf("AMAZONMART_CONNECT_RETRIES must be at least 1")
	}
	if c.PoolMaxConns < 1 {
		return fmt.Errorf("AMAZONMART_DB_MAX_CONNS must be at least 1")
	}
	return nil
}

// PostgresDSN returns DATABASE_URL, or a URL built from the discrete
// parameters with user and password escaped.
func (c *Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.DB.Host, c.DB.Port),
		Path:   "/" + c.DB.Name,
	}
	if c.DB.Password != "" {
		u.User = url.UserPassword(c.DB.User, c.DB.Password)
	} else {
		u.User = url.User(c.DB.User)
	}

	q := url.Values{}
	if c.DB.SSLMode != "" {
		q.Set("sslmode", c.DB.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// StorageOptions maps the configuration onto storage.Open
func (c *Config) StorageOptions() storage.Options {
	pool := storage.DefaultPoolConfig()
	pool.MaxConns = c.PoolMaxConns

	retry := storage.DefaultRetryConfig()
	retry.MaxRetries = c.ConnectRetries

	opts := storage.Options{
		Driver:     c.Driver,
		SQLitePath: c.SQLitePath,
		Pool:       pool,
		Retry:      retry,
	}
	if c.Driver == storage.DriverPostgres {
		opts.PostgresDSN = c.PostgresDSN()
	}
	return opts
}

// Redacted returns the DSN with the password masked, for logging
func (c *Config) Redacted() string {
	if c.Driver != storage.DriverPostgres {
		return "sqlite:" + c.SQLitePath
	}
	u, err := url.Parse(c.PostgresDSN())
	if err != nil {
		return "postgres:<unparseable>"
	}
	return u.Redacted()
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
