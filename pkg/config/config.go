package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Templates TemplatesConfig
	Reports   ReportsConfig
	Events    EventsConfig
	Cache     CacheConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// TemplatesConfig governs shift template materialization and the daily runner.
type TemplatesConfig struct {
	Enabled             bool
	DefaultMaxDaysAhead int
	BatchSize           int
	RunAt               string
	RunTimezone         string
	RunOnStart          bool
}

// ReportsConfig configures run summary exports.
type ReportsConfig struct {
	Enabled      bool
	StorageDir   string
	Formats      []string
	QueueWorkers int
	QueueRetries int
	Retention    time.Duration
	LinkTTL      time.Duration
}

// EventsConfig toggles the Redis subscriber for user lifecycle events.
type EventsConfig struct {
	Enabled            bool
	UserDeletedChannel string
}

// CacheConfig tunes Redis-backed caches.
type CacheConfig struct {
	AdminTTL   time.Duration
	SummaryTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: splitAndTrim(v.GetString("JWT_AUDIENCE")),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Templates = TemplatesConfig{
		Enabled:             v.GetBool("TEMPLATES_ENABLED"),
		DefaultMaxDaysAhead: positiveOr(v.GetInt("TEMPLATES_DEFAULT_MAX_DAYS_AHEAD"), 10),
		BatchSize:           positiveOr(v.GetInt("TEMPLATES_BATCH_SIZE"), 450),
		RunAt:               v.GetString("TEMPLATES_RUN_AT"),
		RunTimezone:         v.GetString("TEMPLATES_RUN_TIMEZONE"),
		RunOnStart:          v.GetBool("TEMPLATES_RUN_ON_START"),
	}

	cfg.Reports = ReportsConfig{
		Enabled:      v.GetBool("ENABLE_RUN_REPORTS"),
		StorageDir:   v.GetString("RUN_REPORTS_STORAGE_DIR"),
		Formats:      splitAndTrim(v.GetString("RUN_REPORTS_FORMATS")),
		QueueWorkers: positiveOr(v.GetInt("RUN_REPORTS_WORKERS"), 1),
		QueueRetries: positiveOr(v.GetInt("RUN_REPORTS_RETRIES"), 3),
		Retention:    parseDuration(v.GetString("RUN_REPORTS_RETENTION"), 30*24*time.Hour),
		LinkTTL:      parseDuration(v.GetString("RUN_REPORTS_LINK_TTL"), 24*time.Hour),
	}

	cfg.Events = EventsConfig{
		Enabled:            v.GetBool("ENABLE_USER_EVENTS"),
		UserDeletedChannel: v.GetString("USER_DELETED_CHANNEL"),
	}

	cfg.Cache = CacheConfig{
		AdminTTL:   parseDuration(v.GetString("ADMIN_CACHE_TTL"), 5*time.Minute),
		SummaryTTL: parseDuration(v.GetString("RUN_SUMMARY_CACHE_TTL"), 48*time.Hour),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "shift_scheduler")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "sma-shift-api")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("TEMPLATES_ENABLED", false)
	v.SetDefault("TEMPLATES_DEFAULT_MAX_DAYS_AHEAD", 10)
	v.SetDefault("TEMPLATES_BATCH_SIZE", 450)
	v.SetDefault("TEMPLATES_RUN_AT", "00:00")
	v.SetDefault("TEMPLATES_RUN_TIMEZONE", "UTC")
	v.SetDefault("TEMPLATES_RUN_ON_START", false)

	v.SetDefault("ENABLE_RUN_REPORTS", false)
	v.SetDefault("RUN_REPORTS_STORAGE_DIR", "./run-reports")
	v.SetDefault("RUN_REPORTS_FORMATS", "csv,pdf")
	v.SetDefault("RUN_REPORTS_WORKERS", 1)
	v.SetDefault("RUN_REPORTS_RETRIES", 3)
	v.SetDefault("RUN_REPORTS_RETENTION", "720h")
	v.SetDefault("RUN_REPORTS_LINK_TTL", "24h")

	v.SetDefault("ENABLE_USER_EVENTS", false)
	v.SetDefault("USER_DELETED_CHANNEL", "users.deleted")

	v.SetDefault("ADMIN_CACHE_TTL", "5m")
	v.SetDefault("RUN_SUMMARY_CACHE_TTL", "48h")
}

func isMissingFile(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "no such file")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
