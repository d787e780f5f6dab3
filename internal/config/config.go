package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	AllowedOrigins []string
	JWTSecret      string
	JWTExpiry      time.Duration

	MongoURI string
	Store    StoreConfig
	Redis    RedisConfig
	SMTP     SMTPConfig
	Alerting AlertingConfig
	Log      LogConfig
}

// StoreConfig selects where alerts are persisted. Source records always come from Mongo.
type StoreConfig struct {
	Driver string // mongo, postgres or sqlite
	DSN    string
}

type RedisConfig struct {
	URL                string
	Host               string
	Port               string
	Password           string
	DB                 int
	PoolSize           int
	MinIdleConns       int
	MaxRetries         int
	RetryDelay         time.Duration
	DialTimeout        time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	PoolTimeout        time.Duration
	IdleTimeout        time.Duration
	IdleCheckFrequency time.Duration
}

// Enabled reports whether a Redis endpoint was configured at all.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Host != ""
}

type SMTPConfig struct {
	Host        string
	Port        string
	Username    string
	Password    string
	FromEmail   string
	FromName    string
	AppURL      string
	SendTimeout time.Duration
}

type AlertingConfig struct {
	DocumentHorizonDays    int
	MaintenanceHorizonDays int
	DocumentCheckAt        string
	StockCheckAt           string
	MaintenanceCheckAt     string
	PurgeAt                string
	Timezone               string
	ResolvedRetentionDays  int
	LockTTL                time.Duration
	LockWait               time.Duration
	StatsCacheTTL          time.Duration
	RunOnStart             bool
}

type LogConfig struct {
	Level  string
	Format string
}

const (
	StoreDriverMongo    = "mongo"
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

func Load() (*Config, error) {
	// .env is optional; real deployments inject the environment directly
	_ = godotenv.Load()

	allowedOrigins := getEnv("ALLOWED_ORIGINS", "http://localhost:5173")
	origins := strings.Split(allowedOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: origins,
		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTExpiry:      getEnvDuration("JWT_EXPIRY", 24*time.Hour),
		MongoURI:       os.Getenv("MONGO_URI"),
		Store: StoreConfig{
			Driver: getEnv("ALERT_STORE_DRIVER", StoreDriverMongo),
			DSN:    os.Getenv("ALERT_STORE_DSN"),
		},
		Redis: RedisConfig{
			URL:                os.Getenv("REDIS_URL"),
			Host:               os.Getenv("REDIS_HOST"),
			Port:               getEnv("REDIS_PORT", "6379"),
			Password:           os.Getenv("REDIS_PASSWORD"),
			DB:                 getEnvInt("REDIS_DB", 0),
			PoolSize:           getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns:       getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			MaxRetries:         getEnvInt("REDIS_MAX_RETRIES", 3),
			RetryDelay:         getEnvDuration("REDIS_RETRY_DELAY", 500*time.Millisecond),
			DialTimeout:        getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:        getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout:       getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PoolTimeout:        getEnvDuration("REDIS_POOL_TIMEOUT", 4*time.Second),
			IdleTimeout:        getEnvDuration("REDIS_IDLE_TIMEOUT", 5*time.Minute),
			IdleCheckFrequency: getEnvDuration("REDIS_IDLE_CHECK_FREQUENCY", time.Minute),
		},
		SMTP: SMTPConfig{
			Host:        os.Getenv("SMTP_HOST"),
			Port:        getEnv("SMTP_PORT", "587"),
			Username:    os.Getenv("SMTP_USERNAME"),
			Password:    os.Getenv("SMTP_PASSWORD"),
			FromEmail:   os.Getenv("SMTP_FROM_EMAIL"),
			FromName:    getEnv("SMTP_FROM_NAME", "Fleet Alerts"),
			AppURL:      getEnv("APP_URL", "http://localhost:5173"),
			SendTimeout: getEnvDuration("SMTP_SEND_TIMEOUT", 15*time.Second),
		},
		Alerting: AlertingConfig{
			DocumentHorizonDays:    getEnvInt("ALERT_DOCUMENT_HORIZON_DAYS", 30),
			MaintenanceHorizonDays: getEnvInt("ALERT_MAINTENANCE_HORIZON_DAYS", 7),
			DocumentCheckAt:        getEnv("ALERT_DOCUMENT_CHECK_AT", "08:00"),
			StockCheckAt:           getEnv("ALERT_STOCK_CHECK_AT", "09:00"),
			MaintenanceCheckAt:     getEnv("ALERT_MAINTENANCE_CHECK_AT", "07:00"),
			PurgeAt:                getEnv("ALERT_PURGE_AT", "03:00"),
			Timezone:               getEnv("ALERT_TIMEZONE", "Local"),
			ResolvedRetentionDays:  getEnvInt("ALERT_RESOLVED_RETENTION_DAYS", 90),
			LockTTL:                getEnvDuration("ALERT_LOCK_TTL", 5*time.Minute),
			LockWait:               getEnvDuration("ALERT_LOCK_WAIT", 2*time.Minute),
			StatsCacheTTL:          getEnvDuration("ALERT_STATS_CACHE_TTL", 30*time.Second),
			RunOnStart:             getEnvBool("ALERT_RUN_ON_START", false),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail late, at the first scheduled run.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case StoreDriverMongo:
	case StoreDriverPostgres, StoreDriverSQLite:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("ALERT_STORE_DSN is required for driver %q", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown alert store driver %q", c.Store.Driver))
	}

	if c.MongoURI == "" {
		errs = append(errs, errors.New("MONGO_URI environment variable is not set"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET environment variable is not set"))
	}

	if c.Alerting.DocumentHorizonDays <= 0 {
		errs = append(errs, errors.New("document horizon must be positive"))
	}
	if c.Alerting.MaintenanceHorizonDays <= 0 {
		errs = append(errs, errors.New("maintenance horizon must be positive"))
	}
	if c.Alerting.ResolvedRetentionDays <= 0 {
		errs = append(errs, errors.New("resolved retention must be positive"))
	}

	for name, value := range map[string]string{
		"ALERT_DOCUMENT_CHECK_AT":    c.Alerting.DocumentCheckAt,
		"ALERT_STOCK_CHECK_AT":       c.Alerting.StockCheckAt,
		"ALERT_MAINTENANCE_CHECK_AT": c.Alerting.MaintenanceCheckAt,
		"ALERT_PURGE_AT":             c.Alerting.PurgeAt,
	} {
		if _, _, err := ParseClock(value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if _, err := c.Alerting.Location(); err != nil {
		errs = append(errs, fmt.Errorf("ALERT_TIMEZONE: %w", err))
	}

	return errors.Join(errs...)
}

// Location resolves the timezone the daily checks and calendar-day arithmetic run in.
func (a AlertingConfig) Location() (*time.Location, error) {
	if a.Timezone == "" || a.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(a.Timezone)
}

// ParseClock parses an "HH:MM" wall-clock time.
func ParseClock(value string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", value)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", value)
	}
	return hour, minute, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
