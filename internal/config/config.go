package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/climate-zones/internal/climate/providers"
	"github.com/i474232898/climate-zones/internal/store"
)

var validate = validator.New()

// RedisConfig enables the Redis progress stream when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

type AppConfig struct {
	AppEnv   string
	LogLevel slog.Level
	Port     string

	// FetchInterval controls how often server mode re-runs both flows.
	FetchInterval time.Duration
	// HTTPTimeout bounds every outbound request.
	HTTPTimeout time.Duration
	Backoff     providers.BackoffConfig

	ArchiveURL    string
	StatisticsURL string
	TokenURL      string

	CredentialsFile string
	ZonesFile       string
	OutputDir       string
	MonthlyCSV      string
	BirdsCSV        string

	SQLitePath string
	Redis      RedisConfig
	Influx     store.InfluxConfig

	Study Study
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	cfg := &AppConfig{}

	cfg.AppEnv = getenvDefault("APP_ENV", "dev")
	level, err := ParseLevel(getenvDefault("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level
	cfg.Port = getenvDefault("PORT", "8080")

	var errs []error
	cfg.FetchInterval, err = getenvDuration("FETCH_INTERVAL", 24*time.Hour)
	errs = append(errs, err)
	cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 2*time.Minute)
	errs = append(errs, err)

	cfg.Backoff = providers.DefaultBackoff
	cfg.Backoff.MaxAttempts = getenvInt("STATS_MAX_ATTEMPTS", providers.DefaultBackoff.MaxAttempts)
	cfg.Backoff.BaseDelay, err = getenvDuration("STATS_BASE_DELAY", providers.DefaultBackoff.BaseDelay)
	errs = append(errs, err)
	cfg.Backoff.TransportDelay, err = getenvDuration("STATS_TRANSPORT_DELAY", providers.DefaultBackoff.TransportDelay)
	errs = append(errs, err)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if cfg.Backoff.MaxAttempts <= 0 || cfg.Backoff.MaxAttempts > providers.MaxBackoffAttempts {
		return nil, fmt.Errorf("invalid STATS_MAX_ATTEMPTS: must be between 1 and %d", providers.MaxBackoffAttempts)
	}

	cfg.ArchiveURL = getenvDefault("ARCHIVE_URL", providers.DefaultArchiveURL)
	cfg.StatisticsURL = getenvDefault("STATISTICS_URL", providers.DefaultStatisticsURL)
	cfg.TokenURL = getenvDefault("TOKEN_URL", "")

	cfg.CredentialsFile = getenvDefault("CREDENTIALS_FILE", "log.json")
	cfg.ZonesFile = getenvDefault("ZONES_FILE", "zones.yaml")
	cfg.OutputDir = getenvDefault("OUTPUT_DIR", ".")
	cfg.MonthlyCSV = getenvDefault("MONTHLY_CSV", "s3_monthly_temperature.csv")
	cfg.BirdsCSV = getenvDefault("BIRDS_CSV", "Data/birds_db.csv")

	cfg.SQLitePath = os.Getenv("SQLITE_PATH")
	cfg.Redis = RedisConfig{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       getenvInt("REDIS_DB", 0),
		Stream:   getenvDefault("REDIS_STREAM", "climate_progress"),
	}
	cfg.Influx = store.InfluxConfig{
		URL:    os.Getenv("INFLUX_URL"),
		Token:  os.Getenv("INFLUX_TOKEN"),
		Org:    os.Getenv("INFLUX_ORG"),
		Bucket: getenvDefault("INFLUX_BUCKET", "climate"),
	}

	study, err := LoadStudy(cfg.ZonesFile)
	if err != nil {
		return nil, err
	}
	cfg.Study = study

	return cfg, nil
}

// ParseLevel maps a LOG_LEVEL value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}

// MonthlyCSVPath resolves MonthlyCSV against OutputDir unless it is absolute.
func (c *AppConfig) MonthlyCSVPath() string {
	if filepath.IsAbs(c.MonthlyCSV) {
		return c.MonthlyCSV
	}
	return filepath.Join(c.OutputDir, c.MonthlyCSV)
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
