package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the portal.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Backend  BackendConfig
	Session  SessionConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values for the long lived device store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values for tab scoped storage.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level       string
	Format      string
	Development bool
}

// BackendConfig describes the courier REST backend the portal talks to.
type BackendConfig struct {
	BaseURL                string
	TimeoutSeconds         int
	AdminLoginPath         string
	StaffLoginPath         string
	CustomerLoginPath      string
	DeliveryAgentLoginPath string
	RegisterPath           string
	RefreshPath            string
	BreakerMaxFailures     int
	BreakerOpenSeconds     int
}

// SessionConfig controls tab sessions held by the portal.
type SessionConfig struct {
	TabCookie      string
	DeviceCookie   string
	TabTTLMinutes  int
	IdleEvictEvery string
	SecureCookies  bool
	InboxSize      int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "courier-portal"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Format:      getEnv("LOG_FORMAT", "json"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
		Backend: BackendConfig{
			BaseURL:                strings.TrimSuffix(getEnv("BACKEND_BASE_URL", "http://127.0.0.1:5000/api"), "/"),
			TimeoutSeconds:         getEnvAsInt("BACKEND_TIMEOUT_SECONDS", 15),
			AdminLoginPath:         getEnv("BACKEND_ADMIN_LOGIN_PATH", "/auth/admin/login"),
			StaffLoginPath:         getEnv("BACKEND_STAFF_LOGIN_PATH", "/auth/staff/login"),
			CustomerLoginPath:      getEnv("BACKEND_CUSTOMER_LOGIN_PATH", "/auth/login"),
			DeliveryAgentLoginPath: getEnv("BACKEND_AGENT_LOGIN_PATH", "/delivery-agent/login"),
			RegisterPath:           getEnv("BACKEND_REGISTER_PATH", "/auth/register"),
			RefreshPath:            getEnv("BACKEND_REFRESH_PATH", "/auth/refresh"),
			BreakerMaxFailures:     getEnvAsInt("BACKEND_BREAKER_MAX_FAILURES", 5),
			BreakerOpenSeconds:     getEnvAsInt("BACKEND_BREAKER_OPEN_SECONDS", 30),
		},
		Session: SessionConfig{
			TabCookie:      getEnv("SESSION_TAB_COOKIE", "portal_sid"),
			DeviceCookie:   getEnv("SESSION_DEVICE_COOKIE", "portal_device"),
			TabTTLMinutes:  getEnvAsInt("SESSION_TAB_TTL_MINUTES", 120),
			IdleEvictEvery: getEnv("SESSION_IDLE_EVICT_SCHEDULE", "@every 1m"),
			SecureCookies:  getEnvAsBool("SESSION_SECURE_COOKIES", false),
			InboxSize:      getEnvAsInt("SESSION_INBOX_SIZE", 16),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the HTTP client timeout for backend calls.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// TabTTL is how long an untouched tab session survives.
func (s SessionConfig) TabTTL() time.Duration {
	if s.TabTTLMinutes <= 0 {
		return 2 * time.Hour
	}
	return time.Duration(s.TabTTLMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
