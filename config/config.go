package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Anthropic  AnthropicConfig
	Encryption EncryptionConfig
	AWS        AWSConfig
	Archive    ArchiveConfig
	Upload     UploadConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds bearer token settings. With Enabled false every request runs as DefaultIdentity.
type JWTConfig struct {
	Enabled           bool
	Secret            string
	ExpireHours       int
	AdminPasswordHash string // bcrypt hash checked by POST /auth/token
	DefaultIdentity   string
}

// AnthropicConfig holds the analysis service settings.
type AnthropicConfig struct {
	BaseURL        string
	Model          string
	MaxTokens      int
	APIVersion     string
	TimeoutSeconds int
}

// Timeout returns the hard wall-clock limit for one analysis call.
func (c AnthropicConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// EncryptionConfig holds the process-wide master secret for credential encryption.
type EncryptionConfig struct {
	Secret string
}

// AWSConfig holds AWS credentials and the transcript archive bucket.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	TranscriptsBucket    string
	PresignExpireMinutes int
}

// ArchiveConfig toggles transcript archival to S3 after successful ingestion.
type ArchiveConfig struct {
	Enabled bool
}

// UploadConfig bounds transcript uploads.
type UploadConfig struct {
	MaxContentBytes int
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 180),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "recallcontext"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Enabled:           getEnvBool("AUTH_ENABLED", false),
			Secret:            getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours:       getEnvInt("JWT_EXPIRE_HOURS", 24),
			AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
			DefaultIdentity:   getEnv("DEFAULT_IDENTITY", "default-user"),
		},
		Anthropic: AnthropicConfig{
			BaseURL:        getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com/v1"),
			Model:          getEnv("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
			MaxTokens:      getEnvInt("ANTHROPIC_MAX_TOKENS", 4096),
			APIVersion:     getEnv("ANTHROPIC_API_VERSION", "2023-06-01"),
			TimeoutSeconds: getEnvInt("ANTHROPIC_TIMEOUT_SEC", 120),
		},
		Encryption: EncryptionConfig{
			Secret: getEnv("ENCRYPTION_SECRET", ""),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", ""),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			TranscriptsBucket:    getEnv("AWS_S3_TRANSCRIPTS_BUCKET", "recallcontext-transcripts"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Archive: ArchiveConfig{
			Enabled: getEnvBool("ARCHIVE_ENABLED", false),
		},
		Upload: UploadConfig{
			MaxContentBytes: getEnvInt("UPLOAD_MAX_CONTENT_BYTES", 5_000_000),
		},
	}
	if cfg.Encryption.Secret == "" {
		return nil, fmt.Errorf("ENCRYPTION_SECRET is required")
	}
	if cfg.JWT.Enabled && cfg.JWT.AdminPasswordHash == "" {
		return nil, fmt.Errorf("ADMIN_PASSWORD_HASH is required when AUTH_ENABLED=true")
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
