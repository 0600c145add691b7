package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrInvalid is wrapped by every validation error returned from Load.
var ErrInvalid = errors.New("invalid configuration")

// Config holds the configuration settings of the batch geocoder.
//
// Fields:
// - Env: The current environment (local, development, production).
// - Port: The port of the monitoring server.
// - CacheFile: Path of the append-only address cache.
// - APIKey, ClientID, PrivateKey: Google credentials, all optional.
// - RequestsPerSecond: Provider call ceiling, derived from the credentials when zero.
// - MaxRetries, RetryDelay, RetryMaxDelay: Quota retry policy.
// - Interval, TaskLimit: Task store polling.
// - AddrPrefix: Prefix prepended to each address for more accurate geocoding.
// - Database: Configuration settings for the PostgreSQL database.
type Config struct {
	Env               string
	Port              int
	CacheFile         string
	APIKey            string
	ClientID          string
	PrivateKey        string
	RequestsPerSecond float64
	MaxRetries        int
	RetryDelay        time.Duration
	RetryMaxDelay     time.Duration
	Interval          time.Duration
	TaskLimit         int
	AddrPrefix        string
	Database          PostgresConfig
}

// PostgresConfig struct holds the configuration details for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Host     string // Host is the database server address.
	Port     string // Port is the database server port.
	User     string // User is the database user.
	Password string // Password is the database user's password.
	Name     string // Name is the name of the database.
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("ATLAS")
	v.AutomaticEnv()

	v.SetDefault("env", "production")
	v.SetDefault("health_port", "8080")
	v.SetDefault("cache_file", "./dbfile.cgg")
	v.SetDefault("requests_per_second", "0")
	v.SetDefault("max_retries", "20")
	v.SetDefault("retry_delay", "1s")
	v.SetDefault("retry_max_delay", "30s")
	v.SetDefault("interval", "10m")
	v.SetDefault("task_limit", "100")
	v.SetDefault("db_port", "5432")

	// Database settings are shared with other services and carry no prefix.
	_ = v.BindEnv("db_host", "DB_HOST")
	_ = v.BindEnv("db_port", "DB_PORT")
	_ = v.BindEnv("db_username", "DB_USERNAME")
	_ = v.BindEnv("db_password", "DB_PASSWORD")
	_ = v.BindEnv("db_name", "DB_NAME")

	return v
}

// Load reads a .env file when present and builds the configuration from the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	v := newViper()

	cfg := &Config{
		Env:        v.GetString("env"),
		CacheFile:  v.GetString("cache_file"),
		APIKey:     v.GetString("provider_key"),
		ClientID:   v.GetString("client_id"),
		PrivateKey: v.GetString("private_key"),
		AddrPrefix: v.GetString("address_prefix"),
		Database: PostgresConfig{
			Host:     v.GetString("db_host"),
			Port:     v.GetString("db_port"),
			User:     v.GetString("db_username"),
			Password: v.GetString("db_password"),
			Name:     v.GetString("db_name"),
		},
	}

	var err error
	if cfg.Port, err = strconv.Atoi(v.GetString("health_port")); err != nil {
		return nil, fmt.Errorf("%w: failed to parse port for monitoring server: %w", ErrInvalid, err)
	}
	if cfg.RequestsPerSecond, err = strconv.ParseFloat(v.GetString("requests_per_second"), 64); err != nil {
		return nil, fmt.Errorf("%w: failed to parse requests per second: %w", ErrInvalid, err)
	}
	if cfg.MaxRetries, err = strconv.Atoi(v.GetString("max_retries")); err != nil {
		return nil, fmt.Errorf("%w: failed to parse max retries, must be an integer: %w", ErrInvalid, err)
	}
	if cfg.RetryDelay, err = time.ParseDuration(v.GetString("retry_delay")); err != nil {
		return nil, fmt.Errorf("%w: failed to parse retry delay: %w", ErrInvalid, err)
	}
	if cfg.RetryMaxDelay, err = time.ParseDuration(v.GetString("retry_max_delay")); err != nil {
		return nil, fmt.Errorf("%w: failed to parse retry max delay: %w", ErrInvalid, err)
	}
	if cfg.Interval, err = time.ParseDuration(v.GetString("interval")); err != nil {
		return nil, fmt.Errorf("%w: failed to parse interval: %w", ErrInvalid, err)
	}
	if cfg.TaskLimit, err = strconv.Atoi(v.GetString("task_limit")); err != nil {
		return nil, fmt.Errorf("%w: failed to parse task limit, must be an integer: %w", ErrInvalid, err)
	}

	switch {
	case cfg.CacheFile == "":
		return nil, fmt.Errorf("%w: cache file path is empty", ErrInvalid)
	case cfg.Interval <= 0:
		return nil, fmt.Errorf("%w: interval must be positive", ErrInvalid)
	case cfg.TaskLimit <= 0:
		return nil, fmt.Errorf("%w: task limit must be positive", ErrInvalid)
	case cfg.MaxRetries <= 0:
		return nil, fmt.Errorf("%w: max retries must be positive", ErrInvalid)
	}

	return cfg, nil
}
