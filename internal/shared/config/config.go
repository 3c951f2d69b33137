package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Pluggy    PluggyConfig
	Scheduler SchedulerConfig
	Listener  ListenerConfig
	Telemetry TelemetryConfig
	Log       LogConfig
}

// ServerConfig is the ops listener (health, metrics, scheduler status).
type ServerConfig struct {
	Port string
	Host string
}

type DatabaseConfig struct {
	Driver     string // postgres or sqlite
	Host       string
	Port       int
	User       string
	Password   string
	DBName     string
	SSLMode    string
	SQLitePath string
}

type PluggyConfig struct {
	BaseURL                  string
	ClientID                 string
	ClientSecret             string
	RequestTimeout           time.Duration
	RateLimit                float64 // requests per second, 0 disables throttling
	RateBurst                int
	TransactionsLookbackDays int
}

type SchedulerConfig struct {
	Enabled         bool
	Interval        time.Duration
	MinSyncInterval time.Duration
	RefreshGrace    time.Duration
	WorkerCount     int
	JobDelay        time.Duration
	JobTimeout      time.Duration
	RunOnStartup    bool
}

type ListenerConfig struct {
	Enabled bool
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	Environment  string
	OTLPEndpoint string // empty exports metrics only
	OTLPInsecure bool
	SampleRatio  float64
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first, and CONFIG_FILE may point at a flat YAML map of
// KEY: value pairs used as defaults below real environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	src, err := newSource(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}

	dbPort, err := strconv.Atoi(src.get("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	requestTimeout, err := time.ParseDuration(src.get("PLUGGY_REQUEST_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid PLUGGY_REQUEST_TIMEOUT: %w", err)
	}
	rateLimit, err := strconv.ParseFloat(src.get("PLUGGY_RATE_LIMIT", "5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid PLUGGY_RATE_LIMIT: %w", err)
	}
	rateBurst, err := strconv.Atoi(src.get("PLUGGY_RATE_BURST", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid PLUGGY_RATE_BURST: %w", err)
	}
	lookbackDays, err := strconv.Atoi(src.get("PLUGGY_TRANSACTIONS_LOOKBACK_DAYS", "365"))
	if err != nil {
		return nil, fmt.Errorf("invalid PLUGGY_TRANSACTIONS_LOOKBACK_DAYS: %w", err)
	}

	// Scheduler
	interval, err := time.ParseDuration(src.get("SCHEDULER_INTERVAL", "6h"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_INTERVAL: %w", err)
	}
	minSyncInterval, err := time.ParseDuration(src.get("SCHEDULER_MIN_SYNC_INTERVAL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_MIN_SYNC_INTERVAL: %w", err)
	}
	refreshGrace, err := time.ParseDuration(src.get("SCHEDULER_REFRESH_GRACE", "2s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_REFRESH_GRACE: %w", err)
	}
	workers, err := strconv.Atoi(src.get("SCHEDULER_WORKERS", "1"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_WORKERS: %w", err)
	}
	jobDelay, err := time.ParseDuration(src.get("SCHEDULER_JOB_DELAY", "0s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_JOB_DELAY: %w", err)
	}
	jobTimeout, err := time.ParseDuration(src.get("SCHEDULER_JOB_TIMEOUT", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_JOB_TIMEOUT: %w", err)
	}

	sampleRatio, err := strconv.ParseFloat(src.get("OTEL_TRACES_SAMPLE_RATIO", "1"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid OTEL_TRACES_SAMPLE_RATIO: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: src.get("PORT", "8081"),
			Host: src.get("HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Driver:     strings.ToLower(src.get("DB_DRIVER", "postgres")),
			Host:       src.get("DB_HOST", "localhost"),
			Port:       dbPort,
			User:       src.get("DB_USER", "finsync"),
			Password:   src.get("DB_PASSWORD", ""),
			DBName:     src.get("DB_NAME", "finsync"),
			SSLMode:    src.get("DB_SSLMODE", "disable"),
			SQLitePath: src.get("DB_SQLITE_PATH", "finsync.db"),
		},
		Pluggy: PluggyConfig{
			BaseURL:                  strings.TrimRight(src.get("PLUGGY_BASE_URL", "https://api.pluggy.ai"), "/"),
			ClientID:                 src.get("PLUGGY_CLIENT_ID", ""),
			ClientSecret:             src.get("PLUGGY_CLIENT_SECRET", ""),
			RequestTimeout:           requestTimeout,
			RateLimit:                rateLimit,
			RateBurst:                rateBurst,
			TransactionsLookbackDays: lookbackDays,
		},
		Scheduler: SchedulerConfig{
			Enabled:         src.getBool("SCHEDULER_ENABLED", true),
			Interval:        interval,
			MinSyncInterval: minSyncInterval,
			RefreshGrace:    refreshGrace,
			WorkerCount:     workers,
			JobDelay:        jobDelay,
			JobTimeout:      jobTimeout,
			RunOnStartup:    src.getBool("SCHEDULER_RUN_ON_STARTUP", false),
		},
		Listener: ListenerConfig{
			Enabled: src.getBool("SYNC_LISTENER_ENABLED", false),
		},
		Telemetry: TelemetryConfig{
			Enabled:      src.getBool("OTEL_ENABLED", false),
			ServiceName:  src.get("OTEL_SERVICE_NAME", "finsync"),
			Environment:  src.get("ENVIRONMENT", "development"),
			OTLPEndpoint: src.get("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
			OTLPInsecure: src.getBool("OTEL_EXPORTER_INSECURE", true),
			SampleRatio:  sampleRatio,
		},
		Log: LogConfig{
			Level:  src.get("LOG_LEVEL", "info"),
			Format: src.get("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Pluggy.ClientID == "" {
		return fmt.Errorf("PLUGGY_CLIENT_ID is required")
	}
	if c.Pluggy.ClientSecret == "" {
		return fmt.Errorf("PLUGGY_CLIENT_SECRET is required")
	}
	if c.Pluggy.TransactionsLookbackDays <= 0 {
		return fmt.Errorf("PLUGGY_TRANSACTIONS_LOOKBACK_DAYS must be positive")
	}
	if c.Pluggy.RateLimit < 0 {
		return fmt.Errorf("PLUGGY_RATE_LIMIT must not be negative")
	}

	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.Database.Driver)
	}

	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("SCHEDULER_INTERVAL must be positive")
	}
	if c.Scheduler.WorkerCount < 1 {
		return fmt.Errorf("SCHEDULER_WORKERS must be at least 1")
	}
	if c.Scheduler.JobTimeout <= 0 {
		return fmt.Errorf("SCHEDULER_JOB_TIMEOUT must be positive")
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("OTEL_TRACES_SAMPLE_RATIO must be between 0 and 1")
	}

	if c.Listener.Enabled && c.Database.Driver != "postgres" {
		return fmt.Errorf("SYNC_LISTENER_ENABLED requires DB_DRIVER=postgres")
	}

	return nil
}

// ConnectionString returns the DSN for the configured driver.
func (c *DatabaseConfig) ConnectionString() string {
	if c.Driver == "sqlite" {
		return c.SQLitePath
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// source resolves keys from the environment first, then the optional file.
type source struct {
	file map[string]string
}

func newSource(path string) (*source, error) {
	s := &source{file: map[string]string{}}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("CONFIG_FILE %s does not exist", path)
		}
		return nil, fmt.Errorf("failed to read CONFIG_FILE: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse CONFIG_FILE: %w", err)
	}
	for k, v := range raw {
		if v == nil {
			continue
		}
		s.file[strings.ToUpper(k)] = fmt.Sprint(v)
	}

	return s, nil
}

func (s *source) get(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if value, ok := s.file[key]; ok && value != "" {
		return value
	}
	return defaultValue
}

func (s *source) getBool(key string, defaultValue bool) bool {
	value := s.get(key, "")
	if value == "" {
		return defaultValue
	}
	// Accept: true, false, 1, 0, yes, no (case-insensitive)
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}
