// Package config loads holewatch settings from an optional TOML file, a .env
// file and the process environment, in that order of precedence (lowest first).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config represents the entire application configuration.
type Config struct {
	Server        Server        `koanf:"server"`
	Database      Database      `koanf:"database"`
	Consensus     Consensus     `koanf:"consensus"`
	Reports       Reports       `koanf:"reports"`
	Notifications Notifications `koanf:"notifications"`
	Log           Log           `koanf:"log"`
}

type Server struct {
	Port          string `koanf:"port"`
	SessionSecret string `koanf:"session_secret"`
	Debug         bool   `koanf:"debug"`
}

type Database struct {
	// Driver is "postgres" or "sqlite".
	Driver       string `koanf:"driver"`
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
}

// Consensus holds the vote thresholds. Positive and negative are weighted
// points, confirmation is a raw vote count.
type Consensus struct {
	PositiveThreshold     float64 `koanf:"positive_threshold"`
	NegativeThreshold     float64 `koanf:"negative_threshold"`
	ConfirmationThreshold int     `koanf:"confirmation_threshold"`
	// MaxRetries bounds transparent retries of a vote transaction after an
	// optimistic-lock conflict or a serialization failure.
	MaxRetries int `koanf:"max_retries"`
}

type Reports struct {
	DailyQuota          int     `koanf:"daily_quota"`
	ReopenRadiusMeters  float64 `koanf:"reopen_radius_m"`
	NearbyRadiusMeters  float64 `koanf:"nearby_radius_m"`
	MaxNearbyRadius     float64 `koanf:"max_nearby_radius_m"`
	NearbyCacheSeconds  int     `koanf:"nearby_cache_seconds"`
	DescriptionMaxChars int     `koanf:"description_max_chars"`
}

// NearbyCacheTTL returns the nearby listing cache lifetime.
func (r Reports) NearbyCacheTTL() time.Duration {
	return time.Duration(r.NearbyCacheSeconds) * time.Second
}

type Notifications struct {
	QueueSize   int `koanf:"queue_size"`
	Concurrency int `koanf:"concurrency"`
}

type Log struct {
	Level string `koanf:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: Server{
			Port:          "8080",
			SessionSecret: "secret_key_change_me",
		},
		Database: Database{
			Driver:       "postgres",
			DSN:          "host=localhost user=postgres password=postgres dbname=holewatch port=5432 sslmode=disable",
			MaxOpenConns: 20,
			MaxIdleConns: 5,
		},
		Consensus: Consensus{
			PositiveThreshold:     5,
			NegativeThreshold:     3,
			ConfirmationThreshold: 10,
			MaxRetries:            5,
		},
		Reports: Reports{
			DailyQuota:          20,
			ReopenRadiusMeters:  10,
			NearbyRadiusMeters:  1000,
			MaxNearbyRadius:     20000,
			NearbyCacheSeconds:  300,
			DescriptionMaxChars: 2000,
		},
		Notifications: Notifications{
			QueueSize:   1000,
			Concurrency: 8,
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Load reads path (if it exists) on top of the defaults, then applies .env
// and environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			k := koanf.New(".")
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
			if err := k.Unmarshal("", cfg); err != nil {
				return nil, fmt.Errorf("failed to unmarshal config: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file %s: %w", path, err)
		}
	}

	// .env 文件可选
	_ = godotenv.Load()
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		cfg.Server.SessionSecret = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil {
		cfg.Server.Debug = v
	}
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("%w: unknown database driver %q", ErrInvalidConfig, c.Database.Driver)
	}
	if c.Consensus.PositiveThreshold <= 0 || c.Consensus.NegativeThreshold <= 0 || c.Consensus.ConfirmationThreshold <= 0 {
		return fmt.Errorf("%w: consensus thresholds must be positive", ErrInvalidConfig)
	}
	if c.Consensus.MaxRetries < 0 {
		return fmt.Errorf("%w: consensus.max_retries must not be negative", ErrInvalidConfig)
	}
	if c.Reports.DailyQuota <= 0 {
		return fmt.Errorf("%w: reports.daily_quota must be positive", ErrInvalidConfig)
	}
	if c.Reports.ReopenRadiusMeters < 0 || c.Reports.NearbyRadiusMeters <= 0 {
		return fmt.Errorf("%w: report radii must be positive", ErrInvalidConfig)
	}
	if c.Notifications.QueueSize <= 0 || c.Notifications.Concurrency <= 0 {
		return fmt.Errorf("%w: notification queue size and concurrency must be positive", ErrInvalidConfig)
	}
	return nil
}
