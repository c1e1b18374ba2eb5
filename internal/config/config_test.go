package config

import (
	"strings"
	"testing"
)

func baseProdConfig() *Config {
	return &Config{
		IsProduction: true,
		Server: ServerConfig{
			BindAddress:  "127.0.0.1",
			Port:         "8080",
			AllowOrigins: "https://drive.example.com",
		},
		Storage: StorageConfig{
			Backend: "fs",
			Path:    "/var/lib/minidrive/blobs",
		},
		Auth: AuthConfig{
			JWTSecret: strings.Repeat("x", 32),
		},
		Quota: QuotaConfig{
			DefaultLimitBytes: 1 << 30,
			MaxFileSizeBytes:  100 << 20,
		},
		Share: ShareConfig{
			TokenSecret:   strings.Repeat("y", 32),
			MaxTTLMinutes: 1440,
		},
	}
}

func TestValidate_ProductionRequiresLongSecrets(t *testing.T) {
	cfg := baseProdConfig()
	cfg.Auth.JWTSecret = "short"

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Fatalf("expected JWT_SECRET validation error, got: %v", err)
	}

	cfg = baseProdConfig()
	cfg.Share.TokenSecret = "short"
	err = cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "SHARE_TOKEN_SECRET") {
		t.Fatalf("expected SHARE_TOKEN_SECRET validation error, got: %v", err)
	}
}

func TestValidate_ShareSecretMustDifferFromJWTSecret(t *testing.T) {
	cfg := baseProdConfig()
	cfg.Share.TokenSecret = cfg.Auth.JWTSecret

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "different") {
		t.Fatalf("expected distinct-secret validation error, got: %v", err)
	}
}

func TestValidate_StorageBackend(t *testing.T) {
	cfg := baseProdConfig()
	cfg.Storage.Backend = "ftp"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "STORAGE_BACKEND") {
		t.Fatalf("expected STORAGE_BACKEND validation error, got: %v", err)
	}

	cfg = baseProdConfig()
	cfg.Storage.Backend = "s3"
	cfg.Storage.S3.Bucket = ""
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "S3_BUCKET") {
		t.Fatalf("expected S3_BUCKET validation error, got: %v", err)
	}

	cfg.Storage.S3.Bucket = "minidrive"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected s3 config to validate, got: %v", err)
	}
}

func TestValidate_ProductionMetricsRequireToken(t *testing.T) {
	cfg := baseProdConfig()
	cfg.Observability.MetricsEnabled = true
	cfg.Observability.MetricsToken = ""

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "METRICS_TOKEN") {
		t.Fatalf("expected METRICS_TOKEN validation error, got: %v", err)
	}

	cfg.Observability.MetricsToken = "metrics-secret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected config to validate, got: %v", err)
	}
}

func TestValidate_RejectsBadPort(t *testing.T) {
	cfg := baseProdConfig()
	cfg.Server.Port = "notaport"

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "SERVER_PORT") {
		t.Fatalf("expected SERVER_PORT validation error, got: %v", err)
	}
}

func TestValidate_QuotaBounds(t *testing.T) {
	cfg := baseProdConfig()
	cfg.Quota.DefaultLimitBytes = 0
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "DEFAULT_QUOTA_BYTES") {
		t.Fatalf("expected DEFAULT_QUOTA_BYTES validation error, got: %v", err)
	}

	cfg = baseProdConfig()
	cfg.Share.MaxTTLMinutes = 0
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "SHARE_MAX_TTL_MINUTES") {
		t.Fatalf("expected SHARE_MAX_TTL_MINUTES validation error, got: %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")

	cfg := Load()
	if cfg.IsProduction {
		t.Fatalf("expected development mode")
	}
	if cfg.Storage.Backend != "fs" {
		t.Fatalf("expected fs backend default, got %q", cfg.Storage.Backend)
	}
	if cfg.Quota.DefaultLimitBytes != 1<<30 {
		t.Fatalf("expected 1GB default quota, got %d", cfg.Quota.DefaultLimitBytes)
	}
	if cfg.Share.MaxTTLMinutes != 1440 {
		t.Fatalf("expected 1440 minute share ceiling, got %d", cfg.Share.MaxTTLMinutes)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default development config should validate: %v", err)
	}
}
