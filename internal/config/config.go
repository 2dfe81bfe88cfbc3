package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Persistence backends accepted by ACTREC_PERSIST_BACKEND.
const (
	BackendNone     = "none"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds all application configuration. Values come from an optional
// YAML file named by ACTREC_CONFIG_FILE, then environment variables override
// whatever the file set.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Retention RetentionConfig `yaml:"retention"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Persist   PersistConfig   `yaml:"persist"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	CORSOrigins  []string      `yaml:"cors_origins"`
}

// RetentionConfig holds the sliding window and the prune cadence.
type RetentionConfig struct {
	Window   time.Duration `yaml:"window"`
	Interval time.Duration `yaml:"interval"`
}

// IngestConfig holds producer-side limits.
type IngestConfig struct {
	QueueSize int     `yaml:"queue_size"`
	RateLimit float64 `yaml:"rate_limit"` // events per second per producer address; 0 disables
	RateBurst int     `yaml:"rate_burst"`
}

// PersistConfig selects where the activity log survives restarts.
type PersistConfig struct {
	Backend string `yaml:"backend"`
	File    string `yaml:"file"`
	Key     string `yaml:"key"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"` //nolint:gosec // G117: DB connection config
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`
}

// RedisConfig holds Redis connection settings. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"` //nolint:gosec // G117: Redis connection config
	DB       int    `yaml:"db"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			CORSOrigins:  []string{"*"},
		},
		Retention: RetentionConfig{
			Window:   15 * time.Minute,
			Interval: time.Minute,
		},
		Ingest: IngestConfig{
			QueueSize: 1024,
			RateLimit: 50,
			RateBurst: 100,
		},
		Persist: PersistConfig{
			Backend: BackendFile,
			File:    "data/activity_log.json.zst",
			Key:     "actrec:activity_log",
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "actrec",
			DBName:   "actrec",
			SSLMode:  "disable",
			MaxConns: 4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file and the
// environment, in that order.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("ACTREC_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("config.Load: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading ACTREC_CONFIG_FILE: %w", err)
	}
	if err = yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing ACTREC_CONFIG_FILE %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var err error

	c.Server.Addr = getEnv("ACTREC_SERVER_ADDR", c.Server.Addr)
	if c.Server.ReadTimeout, err = getEnvDuration("ACTREC_SERVER_READ_TIMEOUT", c.Server.ReadTimeout); err != nil {
		return err
	}
	if c.Server.WriteTimeout, err = getEnvDuration("ACTREC_SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout); err != nil {
		return err
	}
	c.Server.CORSOrigins = getEnvList("ACTREC_CORS_ORIGINS", c.Server.CORSOrigins)

	if c.Retention.Window, err = getEnvDuration("ACTREC_RETENTION_WINDOW", c.Retention.Window); err != nil {
		return err
	}
	if c.Retention.Interval, err = getEnvDuration("ACTREC_RETENTION_INTERVAL", c.Retention.Interval); err != nil {
		return err
	}

	if c.Ingest.QueueSize, err = getEnvInt("ACTREC_INGEST_QUEUE_SIZE", c.Ingest.QueueSize); err != nil {
		return err
	}
	if c.Ingest.RateLimit, err = getEnvFloat("ACTREC_INGEST_RATE_LIMIT", c.Ingest.RateLimit); err != nil {
		return err
	}
	if c.Ingest.RateBurst, err = getEnvInt("ACTREC_INGEST_RATE_BURST", c.Ingest.RateBurst); err != nil {
		return err
	}

	c.Persist.Backend = strings.ToLower(getEnv("ACTREC_PERSIST_BACKEND", c.Persist.Backend))
	c.Persist.File = getEnv("ACTREC_PERSIST_FILE", c.Persist.File)
	c.Persist.Key = getEnv("ACTREC_PERSIST_KEY", c.Persist.Key)

	c.Database.Host = getEnv("ACTREC_DB_HOST", c.Database.Host)
	if c.Database.Port, err = getEnvInt("ACTREC_DB_PORT", c.Database.Port); err != nil {
		return err
	}
	c.Database.User = getEnv("ACTREC_DB_USER", c.Database.User)
	c.Database.Password = getEnv("ACTREC_DB_PASSWORD", c.Database.Password)
	c.Database.DBName = getEnv("ACTREC_DB_NAME", c.Database.DBName)
	c.Database.SSLMode = getEnv("ACTREC_DB_SSLMODE", c.Database.SSLMode)
	if c.Database.MaxConns, err = getEnvInt("ACTREC_DB_MAX_CONNS", c.Database.MaxConns); err != nil {
		return err
	}

	c.Redis.Addr = getEnv("ACTREC_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("ACTREC_REDIS_PASSWORD", c.Redis.Password)
	if c.Redis.DB, err = getEnvInt("ACTREC_REDIS_DB", c.Redis.DB); err != nil {
		return err
	}

	c.Log.Level = getEnv("ACTREC_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("ACTREC_LOG_FORMAT", c.Log.Format)

	return nil
}

var backends = []string{BackendNone, BackendFile, BackendRedis, BackendPostgres}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	if c.Retention.Window <= 0 {
		return fmt.Errorf("ACTREC_RETENTION_WINDOW must be positive, got %s", c.Retention.Window)
	}
	if c.Retention.Interval <= 0 {
		return fmt.Errorf("ACTREC_RETENTION_INTERVAL must be positive, got %s", c.Retention.Interval)
	}
	if c.Retention.Interval > c.Retention.Window {
		return fmt.Errorf("ACTREC_RETENTION_INTERVAL (%s) must not exceed ACTREC_RETENTION_WINDOW (%s)",
			c.Retention.Interval, c.Retention.Window)
	}

	if c.Ingest.QueueSize < 1 {
		return fmt.Errorf("ACTREC_INGEST_QUEUE_SIZE must be >= 1, got %d", c.Ingest.QueueSize)
	}
	if c.Ingest.RateLimit < 0 {
		return fmt.Errorf("ACTREC_INGEST_RATE_LIMIT must not be negative, got %g", c.Ingest.RateLimit)
	}
	if c.Ingest.RateLimit > 0 && c.Ingest.RateBurst < 1 {
		return fmt.Errorf("ACTREC_INGEST_RATE_BURST must be >= 1, got %d", c.Ingest.RateBurst)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("ACTREC_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("ACTREC_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}

	if !slices.Contains(backends, c.Persist.Backend) {
		return fmt.Errorf("ACTREC_PERSIST_BACKEND must be one of %s, got %q",
			strings.Join(backends, ", "), c.Persist.Backend)
	}

	switch c.Persist.Backend {
	case BackendFile:
		if c.Persist.File == "" {
			return errors.New("ACTREC_PERSIST_FILE is required for the file backend")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("ACTREC_REDIS_ADDR is required for the redis backend")
		}
		if c.Persist.Key == "" {
			return errors.New("ACTREC_PERSIST_KEY is required for the redis backend")
		}
	case BackendPostgres:
		if c.Persist.Key == "" {
			return errors.New("ACTREC_PERSIST_KEY is required for the postgres backend")
		}
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return fmt.Errorf("ACTREC_DB_PORT must be 1-65535, got %d", c.Database.Port)
		}
		if c.Database.MaxConns < 1 {
			return fmt.Errorf("ACTREC_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
		}
		if c.Database.SSLMode == "disable" {
			log.Warn().Msg("ACTREC_DB_SSLMODE=disable is insecure outside local development")
		}
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
