package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Storage       StorageConfig
	Auth          AuthConfig
	Quota         QuotaConfig
	Share         ShareConfig
	Observability ObservabilityConfig
	IsProduction  bool
}

type ServerConfig struct {
	BindAddress    string
	Port           string
	AllowOrigins   string
	TrustedProxies []string
	// PublicBaseURL is used to build share URLs handed to clients.
	PublicBaseURL string
}

type DatabaseConfig struct {
	Path string
}

// StorageConfig selects and configures the blob backend. Backend is either
// "fs" (local disk under Path) or "s3".
type StorageConfig struct {
	Backend string
	Path    string
	S3      S3Config
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // allows MinIO/localstack
	AccessKeyID     string
	SecretAccessKey string
}

type AuthConfig struct {
	JWTSecret       string
	TokenTTLMinutes int
}

type QuotaConfig struct {
	// DefaultLimitBytes is assigned to newly registered users.
	DefaultLimitBytes int64
	// MaxFileSizeBytes caps a single upload.
	MaxFileSizeBytes int64
}

type ShareConfig struct {
	// TokenSecret signs share tokens; it must differ from the JWT secret so
	// a share token can never be replayed as a session token.
	TokenSecret   string
	MaxTTLMinutes int
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsToken   string
}

func Load() *Config {
	loadDotEnvIfPresent()

	isProd := getEnv("ENVIRONMENT", "development") == "production"
	defaultSecret := ""
	defaultShareSecret := ""
	if !isProd {
		defaultSecret = "dev-secret-change-in-production"
		defaultShareSecret = "dev-share-secret-change-in-production"
	}
	defaultBindAddress := "0.0.0.0"
	if isProd {
		// In production we default to loopback and rely on a reverse proxy.
		defaultBindAddress = "127.0.0.1"
	}
	defaultTrustedProxies := "127.0.0.1,::1"
	defaultMetricsEnabled := !isProd

	return &Config{
		IsProduction: isProd,
		Server: ServerConfig{
			BindAddress:    getEnv("SERVER_BIND_ADDRESS", defaultBindAddress),
			Port:           getEnv("SERVER_PORT", "8080"),
			AllowOrigins:   getEnv("ALLOW_ORIGINS", "http://localhost:5173"),
			TrustedProxies: splitCSV(getEnv("TRUSTED_PROXIES", defaultTrustedProxies)),
			PublicBaseURL:  getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "./storage/minidrive.db"),
		},
		Storage: StorageConfig{
			Backend: getEnv("STORAGE_BACKEND", "fs"),
			Path:    getEnv("STORAGE_PATH", "./storage/blobs"),
			S3: S3Config{
				Bucket:          getEnv("S3_BUCKET", ""),
				Region:          getEnv("S3_REGION", "us-east-1"),
				Endpoint:        getEnv("S3_ENDPOINT", ""),
				AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
				SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			},
		},
		Auth: AuthConfig{
			JWTSecret:       strings.TrimSpace(getEnv("JWT_SECRET", defaultSecret)),
			TokenTTLMinutes: getEnvInt("TOKEN_TTL_MINUTES", 60),
		},
		Quota: QuotaConfig{
			DefaultLimitBytes: getEnvInt64("DEFAULT_QUOTA_BYTES", 1<<30),    // 1GB
			MaxFileSizeBytes:  getEnvInt64("MAX_FILE_SIZE_BYTES", 100<<20), // 100MB
		},
		Share: ShareConfig{
			TokenSecret:   strings.TrimSpace(getEnv("SHARE_TOKEN_SECRET", defaultShareSecret)),
			MaxTTLMinutes: getEnvInt("SHARE_MAX_TTL_MINUTES", 1440),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvBool("METRICS_ENABLED", defaultMetricsEnabled),
			MetricsToken:   strings.TrimSpace(getEnv("METRICS_TOKEN", "")),
		},
	}
}

// Validate checks that the configuration is valid for the current environment.
// In production, it enforces stricter requirements.
func (c *Config) Validate() error {
	if c.IsProduction {
		if c.Auth.JWTSecret == "" {
			return errors.New("JWT_SECRET environment variable is required in production")
		}
		if len(c.Auth.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.Share.TokenSecret == "" {
			return errors.New("SHARE_TOKEN_SECRET environment variable is required in production")
		}
		if len(c.Share.TokenSecret) < 32 {
			return errors.New("SHARE_TOKEN_SECRET must be at least 32 characters in production")
		}
		if c.Share.TokenSecret == c.Auth.JWTSecret {
			return errors.New("SHARE_TOKEN_SECRET must be different from JWT_SECRET in production")
		}
		if c.Server.AllowOrigins == "*" {
			return errors.New("ALLOW_ORIGINS must not be wildcard (*) in production")
		}
		if c.Observability.MetricsEnabled && c.Observability.MetricsToken == "" {
			return errors.New("METRICS_TOKEN is required in production when METRICS_ENABLED=true")
		}
	}

	switch c.Storage.Backend {
	case "fs":
		if strings.TrimSpace(c.Storage.Path) == "" {
			return errors.New("STORAGE_PATH must not be empty when STORAGE_BACKEND=fs")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return errors.New("S3_BUCKET is required when STORAGE_BACKEND=s3")
		}
	default:
		return errors.New("STORAGE_BACKEND must be one of: fs, s3")
	}

	if c.Share.MaxTTLMinutes < 1 {
		return errors.New("SHARE_MAX_TTL_MINUTES must be at least 1")
	}
	if c.Quota.DefaultLimitBytes <= 0 {
		return errors.New("DEFAULT_QUOTA_BYTES must be greater than 0")
	}
	if c.Quota.MaxFileSizeBytes <= 0 {
		return errors.New("MAX_FILE_SIZE_BYTES must be greater than 0")
	}

	if strings.TrimSpace(c.Server.BindAddress) == "" {
		return errors.New("SERVER_BIND_ADDRESS must not be empty")
	}

	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port < 1 || port > 65535 {
		return errors.New("SERVER_PORT must be a valid port number (1-65535)")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}

	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}

func splitCSV(value string) []string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}

	parts := strings.Split(trimmed, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		v := strings.TrimSpace(part)
		if v == "" {
			continue
		}
		out = append(out, v)
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

func loadDotEnvIfPresent() {
	// #nosec G304 -- hardcoded application dotenv location.
	content, err := os.ReadFile(".env")
	if err != nil {
		return
	}

	for _, rawLine := range strings.Split(string(content), "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}

		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') || (value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, value)
	}
}
