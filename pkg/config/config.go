package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis (optional read-path cache)
	Redis RedisConfig

	// External market-data provider
	TuShare TuShareConfig

	// Trading calendar cutover hours
	Calendar CalendarConfig

	// Sync pacing
	Sync SyncConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string

	// Connection retries
	ConnectRetries int
	ConnectDelay   time.Duration

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// URL builds a pgx connection string from the discrete fields.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// TuShareConfig holds TuShare Pro API configuration
type TuShareConfig struct {
	Token   string
	BaseURL string

	// Hard call budget: MaxCalls per Window, shared by all outbound calls
	MaxCalls int
	Window   time.Duration

	// Exchanges whose contract masters are refreshed
	Exchanges []string
}

// CalendarConfig holds the market-close cutover hours.
// Before EarlyCutoffHour the previous business day is the trade date;
// from CloseHour onward the current day is considered settled.
type CalendarConfig struct {
	EarlyCutoffHour int
	CloseHour       int
}

// SyncConfig holds batch pacing parameters
type SyncConfig struct {
	// Courtesy pause every PauseEvery contracts, additive to the rate limit
	PauseEvery int
	PauseFor   time.Duration

	// Cron spec for the daily full sync
	Schedule string
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8090"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "futsync"),
			User:            getEnv("DB_USER", "futsync"),
			Password:        getEnv("DB_PASSWORD", ""),
			ConnectRetries:  getEnvAsInt("DB_CONNECT_RETRIES", 3),
			ConnectDelay:    getEnvAsDuration("DB_CONNECT_DELAY", "1s"),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		// TuShare
		TuShare: TuShareConfig{
			Token:     getEnv("TUSHARE_TOKEN", ""),
			BaseURL:   getEnv("TUSHARE_BASE_URL", "http://api.tushare.pro"),
			MaxCalls:  getEnvAsInt("TUSHARE_MAX_CALLS", 180),
			Window:    getEnvAsDuration("TUSHARE_WINDOW", "60s"),
			Exchanges: getEnvAsSlice("TUSHARE_EXCHANGES", []string{"CFFEX", "SHFE", "DCE", "CZCE", "INE", "GFEX"}),
		},

		// Calendar
		Calendar: CalendarConfig{
			EarlyCutoffHour: getEnvAsInt("MARKET_EARLY_CUTOFF_HOUR", 15),
			CloseHour:       getEnvAsInt("MARKET_CLOSE_HOUR", 17),
		},

		// Sync
		Sync: SyncConfig{
			PauseEvery: getEnvAsInt("SYNC_PAUSE_EVERY", 50),
			PauseFor:   getEnvAsDuration("SYNC_PAUSE_FOR", "1s"),
			Schedule:   getEnv("SYNC_SCHEDULE", "0 0 17 * * 1-5"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if err := c.Database.Validate(); err != nil {
		return err
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.TuShare.MaxCalls <= 0 {
		return fmt.Errorf("TUSHARE_MAX_CALLS must be positive")
	}
	if c.TuShare.Window <= 0 {
		return fmt.Errorf("TUSHARE_WINDOW must be positive")
	}

	if c.Calendar.EarlyCutoffHour < 0 || c.Calendar.EarlyCutoffHour > 23 {
		return fmt.Errorf("MARKET_EARLY_CUTOFF_HOUR must be in 0..23")
	}
	if c.Calendar.CloseHour < c.Calendar.EarlyCutoffHour || c.Calendar.CloseHour > 23 {
		return fmt.Errorf("MARKET_CLOSE_HOUR must be in %d..23", c.Calendar.EarlyCutoffHour)
	}

	return nil
}

// Validate checks the connection parameters before any connect attempt.
// Invalid parameters are a configuration error and are never retried.
func (d DatabaseConfig) Validate() error {
	if d.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if d.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if d.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if d.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if d.Port < 1 || d.Port > 65535 {
		return fmt.Errorf("DB_PORT must be in 1..65535, got %d", d.Port)
	}
	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
