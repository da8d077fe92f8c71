package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Tesseract-Nexus/go-shared/secrets"
)

// Config holds all configuration for the shipment orchestrator
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	RedisURL      string
	NATSURL       string
	EventsEnabled bool
	// TenantID stamps published events; this service runs per tenant
	TenantID      string
	LogLevel      string
	Cache         CacheConfig
	Shiprocket    ShiprocketConfig
	Tracking      TrackingConfig
	Services      ServicesConfig
	// Optional YAML file with extra courier status mappings
	StatusMapPath string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// ShiprocketConfig holds the aggregator client configuration.
// Email/Password only bootstrap an empty settings row.
type ShiprocketConfig struct {
	BaseURL       string
	Email         string
	Password      string
	WebhookSecret string
	Timeout       time.Duration
	ReadTimeout   time.Duration
	MaxRetries    int
	RateLimit     float64
}

// TrackingConfig controls the background tracking poller
type TrackingConfig struct {
	PollInterval time.Duration
	BatchSize    int
	Concurrency  int
}

// CacheConfig holds Redis-backed cache TTLs
type CacheConfig struct {
	SettingsTTL      time.Duration
	WebhookDedupeTTL time.Duration
}

// ServicesConfig holds URLs of collaborating services
type ServicesConfig struct {
	NotificationURL string
	StaffURL        string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8088"),
			Env:  getEnv("NODE_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: secrets.GetDBPassword(),
			DBName:   getEnv("DB_NAME", "storefront"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		RedisURL:      getEnv("REDIS_URL", "redis://redis.redis-marketplace.svc.cluster.local:6379/0"),
		NATSURL:       getEnv("NATS_URL", "nats://nats.nats.svc.cluster.local:4222"),
		EventsEnabled: getEnvBool("EVENTS_ENABLED", true),
		TenantID:      getEnv("TENANT_ID", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		Cache: CacheConfig{
			SettingsTTL:      getEnvDuration("SETTINGS_CACHE_TTL", 5*time.Minute),
			WebhookDedupeTTL: getEnvDuration("WEBHOOK_DEDUPE_TTL", 24*time.Hour),
		},
		Shiprocket: ShiprocketConfig{
			BaseURL:       getEnv("SHIPROCKET_BASE_URL", "https://apiv2.shiprocket.in"),
			Email:         getEnv("SHIPROCKET_EMAIL", ""),
			Password:      secrets.GetSecretOrEnv("SHIPROCKET_PASSWORD_SECRET_NAME", "SHIPROCKET_PASSWORD", ""),
			WebhookSecret: secrets.GetSecretOrEnv("SHIPROCKET_WEBHOOK_SECRET_NAME", "SHIPROCKET_WEBHOOK_SECRET", ""),
			Timeout:       getEnvDuration("SHIPROCKET_TIMEOUT", 30*time.Second),
			ReadTimeout:   getEnvDuration("SHIPROCKET_READ_TIMEOUT", 15*time.Second),
			MaxRetries:    getEnvAsInt("SHIPROCKET_MAX_RETRIES", 2),
			RateLimit:     getEnvAsFloat("SHIPROCKET_RATE_LIMIT", 5),
		},
		Tracking: TrackingConfig{
			PollInterval: getEnvDuration("TRACKING_POLL_INTERVAL", 15*time.Minute),
			BatchSize:    getEnvAsInt("TRACKING_POLL_BATCH", 50),
			Concurrency:  getEnvAsInt("TRACKING_POLL_CONCURRENCY", 4),
		},
		Services: ServicesConfig{
			NotificationURL: getEnv("NOTIFICATION_SERVICE_URL", "http://notification-service.devtest.svc.cluster.local:8090"),
			StaffURL:        getEnv("STAFF_SERVICE_URL", "http://staff-service:8080"),
		},
		StatusMapPath: getEnv("COURIER_STATUS_MAP_PATH", ""),
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Shiprocket.BaseURL == "" {
		return fmt.Errorf("SHIPROCKET_BASE_URL is required")
	}
	if c.Shiprocket.Timeout <= 0 || c.Shiprocket.ReadTimeout <= 0 {
		return fmt.Errorf("SHIPROCKET_TIMEOUT and SHIPROCKET_READ_TIMEOUT must be positive")
	}
	if c.Shiprocket.MaxRetries < 0 || c.Shiprocket.MaxRetries > 2 {
		return fmt.Errorf("SHIPROCKET_MAX_RETRIES must be between 0 and 2")
	}
	if (c.Shiprocket.Email == "") != (c.Shiprocket.Password == "") {
		return fmt.Errorf("SHIPROCKET_EMAIL and SHIPROCKET_PASSWORD must be set together")
	}
	if c.Tracking.Concurrency < 1 {
		c.Tracking.Concurrency = 1
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt gets an integer environment variable or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}

// getEnvDuration accepts Go durations ("30s") or plain seconds ("30").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
