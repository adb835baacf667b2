package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers selectable through STORE_DRIVER.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// StoreDriver picks the persistence backend
	StoreDriver string

	// JWT configuration
	JWT JWTConfig

	// Rate limiting configuration
	RateLimit RateLimitConfig

	// WebSocket configuration
	WebSocket WebSocketConfig

	// Logging configuration
	Logging LoggingConfig

	// Application metadata
	App AppConfig

	// AI provider configuration
	AI AIConfig

	// Blob storage for voice messages and synthesized speech
	Blob BlobConfig

	// Redis notification queue
	Redis RedisConfig

	// Real-time fan-out
	Realtime RealtimeConfig

	// CORS configuration
	CORS CORSConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	AutoMigrate     bool
	MigrationsPath  string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret         string
	AccessTokenTTL time.Duration
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	BurstSize         int
	AIRPS             float64 // Per-user limit for routes that call the AI provider
	AIBurst           int
}

// WebSocketConfig holds WebSocket configuration
type WebSocketConfig struct {
	AllowedOrigins  []string
	ReadBufferSize  int
	WriteBufferSize int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text

	// File enables a rotating log file next to stdout.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string
	Version     string
	Environment string
}

// AIConfig holds the AI provider settings. An empty APIKey disables AI replies.
type AIConfig struct {
	APIKey             string
	BaseURL            string
	ChatModel          string
	MaxTokens          int
	SpeechModel        string
	Voice              string
	TranscriptionModel string
	Timeout            time.Duration
	RouteTimeout       time.Duration
}

// BlobConfig holds local blob storage settings
type BlobConfig struct {
	Dir       string
	PublicURL string
}

// RedisConfig holds the notification queue settings. An empty URL sends
// notifications in process.
type RedisConfig struct {
	URL      string
	QueueKey string
	MailFrom string
}

// RealtimeConfig holds event bus settings
type RealtimeConfig struct {
	SubscriberBuffer int
	FeedHeartbeat    time.Duration
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	AllowedOrigins []string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FromEnv reads the configuration without loading .env or validating.
func FromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", ":8080"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getDurationOrDefault("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getIntOrDefault("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntOrDefault("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationOrDefault("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getDurationOrDefault("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			AutoMigrate:     getBoolOrDefault("DB_AUTO_MIGRATE", false),
			MigrationsPath:  getEnvOrDefault("MIGRATIONS_PATH", "file://migrations"),
		},
		StoreDriver: strings.ToLower(getEnvOrDefault("STORE_DRIVER", StoreDriverPostgres)),
		JWT: JWTConfig{
			Secret:         os.Getenv("JWT_SECRET"),
			AccessTokenTTL: getDurationOrDefault("JWT_ACCESS_TOKEN_TTL", 12*time.Hour),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getBoolOrDefault("RATE_LIMIT_ENABLED", true),
			RequestsPerSecond: getFloatOrDefault("RATE_LIMIT_RPS", 10),
			BurstSize:         getIntOrDefault("RATE_LIMIT_BURST", 20),
			AIRPS:             getFloatOrDefault("RATE_LIMIT_AI_RPS", 1),
			AIBurst:           getIntOrDefault("RATE_LIMIT_AI_BURST", 5),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins:  getStringSliceOrDefault("WS_ALLOWED_ORIGINS", []string{}),
			ReadBufferSize:  getIntOrDefault("WS_READ_BUFFER_SIZE", 1024),
			WriteBufferSize: getIntOrDefault("WS_WRITE_BUFFER_SIZE", 1024),
		},
		Logging: LoggingConfig{
			Level:      getEnvOrDefault("LOG_LEVEL", "info"),
			Format:     getEnvOrDefault("LOG_FORMAT", "json"),
			File:       os.Getenv("LOG_FILE"),
			MaxSizeMB:  getIntOrDefault("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getIntOrDefault("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getIntOrDefault("LOG_MAX_AGE_DAYS", 28),
		},
		App: AppConfig{
			Name:        getEnvOrDefault("APP_NAME", "helpdesk"),
			Version:     getEnvOrDefault("APP_VERSION", "dev"),
			Environment: getEnvOrDefault("APP_ENV", "development"),
		},
		AI: AIConfig{
			APIKey:             os.Getenv("OPENAI_API_KEY"),
			BaseURL:            os.Getenv("OPENAI_BASE_URL"),
			ChatModel:          getEnvOrDefault("OPENAI_CHAT_MODEL", "gpt-3.5-turbo"),
			MaxTokens:          getIntOrDefault("OPENAI_MAX_TOKENS", 150),
			SpeechModel:        getEnvOrDefault("OPENAI_SPEECH_MODEL", "tts-1"),
			Voice:              getEnvOrDefault("OPENAI_VOICE", "alloy"),
			TranscriptionModel: getEnvOrDefault("OPENAI_TRANSCRIPTION_MODEL", "whisper-1"),
			Timeout:            getDurationOrDefault("OPENAI_TIMEOUT", 30*time.Second),
			RouteTimeout:       getDurationOrDefault("ROUTE_TIMEOUT", 60*time.Second),
		},
		Blob: BlobConfig{
			Dir:       getEnvOrDefault("BLOB_DIR", "./data/media"),
			PublicURL: getEnvOrDefault("BLOB_PUBLIC_URL", "/media"),
		},
		Redis: RedisConfig{
			URL:      os.Getenv("REDIS_URL"),
			QueueKey: getEnvOrDefault("NOTIFY_QUEUE_KEY", "helpdesk:notifications"),
			MailFrom: os.Getenv("MAIL_FROM"),
		},
		Realtime: RealtimeConfig{
			SubscriberBuffer: getIntOrDefault("REALTIME_SUBSCRIBER_BUFFER", 64),
			FeedHeartbeat:    getDurationOrDefault("REALTIME_FEED_HEARTBEAT", 25*time.Second),
		},
		CORS: CORSConfig{
			AllowedOrigins: getStringSliceOrDefault("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []string

	// Required fields
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.Database.URL == "" {
			errs = append(errs, "DATABASE_URL is required when STORE_DRIVER is postgres")
		}
	case StoreDriverMemory:
	default:
		errs = append(errs, fmt.Sprintf("STORE_DRIVER must be %q or %q", StoreDriverPostgres, StoreDriverMemory))
	}

	if c.JWT.Secret == "" {
		errs = append(errs, "JWT_SECRET is required")
	}

	// Security validations
	if c.App.Environment == "production" {
		if len(c.JWT.Secret) < 32 {
			errs = append(errs, "JWT_SECRET must be at least 32 characters in production")
		}

		if len(c.WebSocket.AllowedOrigins) == 0 {
			errs = append(errs, "WS_ALLOWED_ORIGINS must be set in production")
		}

		if c.StoreDriver == StoreDriverMemory {
			errs = append(errs, "STORE_DRIVER=memory is not allowed in production")
		}
	}

	// Logical validations
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		errs = append(errs, "DB_MAX_IDLE_CONNS cannot be greater than DB_MAX_OPEN_CONNS")
	}

	if c.Realtime.SubscriberBuffer <= 0 {
		errs = append(errs, "REALTIME_SUBSCRIBER_BUFFER must be positive")
	}

	if c.AI.MaxTokens <= 0 {
		errs = append(errs, "OPENAI_MAX_TOKENS must be positive")
	}

	if len(errs) > 0 {
		return errors.New("configuration errors:\n  - " + strings.Join(errs, "\n  - "))
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// Helper functions

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// String returns a redacted string representation of the config (safe for logging)
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Server: %s, Store: %s, DB: %s, Redis: %s, JWT: [REDACTED], AI: %t, RateLimit: %v, Environment: %s}",
		c.Server.Port,
		c.StoreDriver,
		redactURL(c.Database.URL),
		redactURL(c.Redis.URL),
		c.AI.APIKey != "",
		c.RateLimit.Enabled,
		c.App.Environment,
	)
}

// redactURL strips credentials from a connection URL
func redactURL(url string) string {
	if url == "" {
		return ""
	}
	if idx := strings.Index(url, "@"); idx > 0 {
		return "[REDACTED]" + url[idx:]
	}
	return "[REDACTED]"
}
