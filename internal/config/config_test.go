package config

import (
	"strings"
	"testing"
	"time"

	"admin-backend/internal/upload"
)

const testHash = "$2a$10$abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0"

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("S3_ACCESS_KEY", "minioadmin")
	t.Setenv("S3_SECRET_KEY", "minioadmin")
	t.Setenv("S3_BUCKET", "uploads")
	t.Setenv("PUBLIC_BASE_URL", "https://cdn.example.com/")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HTTPAddr != ":3000" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.StorageDriver != DriverMinio {
		t.Errorf("StorageDriver = %q", cfg.StorageDriver)
	}
	if cfg.Storage.Region != "auto" || !cfg.Storage.UsePathStyle {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Upload.PartSize != upload.DefaultPartSize {
		t.Errorf("PartSize = %d", cfg.Upload.PartSize)
	}
	if cfg.Upload.PresignTTL != 10*time.Minute {
		t.Errorf("PresignTTL = %s", cfg.Upload.PresignTTL)
	}
	if cfg.Upload.PublicBaseURL != "https://cdn.example.com" {
		t.Errorf("PublicBaseURL = %q", cfg.Upload.PublicBaseURL)
	}
	if cfg.Sweeper.Enabled || cfg.Sweeper.MaxAge != 7*24*time.Hour {
		t.Errorf("sweeper = %+v", cfg.Sweeper)
	}
	if cfg.MaxDirectUploadBytes != 32<<20 {
		t.Errorf("MaxDirectUploadBytes = %d", cfg.MaxDirectUploadBytes)
	}
	if cfg.RateLimitPerMinute != 600 {
		t.Errorf("RateLimitPerMinute = %d", cfg.RateLimitPerMinute)
	}
	if !cfg.UseMemoryStore() {
		t.Error("expected memory store without DATABASE_URL in development")
	}
}

func TestLoadR2Fallbacks(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "S3")
	t.Setenv("R2_ENDPOINT", "https://acc.r2.cloudflarestorage.com")
	t.Setenv("R2_ACCESS_KEY_ID", "ak")
	t.Setenv("R2_SECRET_ACCESS_KEY", "sk")
	t.Setenv("R2_BUCKET_NAME", "assets")
	t.Setenv("PUBLIC_BASE_URL", "https://cdn.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StorageDriver != DriverS3 {
		t.Errorf("StorageDriver = %q", cfg.StorageDriver)
	}
	if cfg.Storage.Bucket != "assets" || cfg.Storage.AccessKey != "ak" || cfg.Storage.SecretKey != "sk" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Storage.Endpoint != "https://acc.r2.cloudflarestorage.com" {
		t.Errorf("Endpoint = %q", cfg.Storage.Endpoint)
	}
}

func TestLoadOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("UPLOAD_PART_SIZE", "16777216")
	t.Setenv("UPLOAD_PRESIGN_TTL", "1h")
	t.Setenv("UPLOAD_ABORT_RETRIES", "3")
	t.Setenv("UPLOAD_SWEEP_ENABLED", "true")
	t.Setenv("UPLOAD_SWEEP_INTERVAL", "15m")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/db")
	t.Setenv("ADMIN_API_KEY_HASH", testHash)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Upload.PartSize != 16<<20 || cfg.Upload.PresignTTL != time.Hour || cfg.Upload.AbortRetries != 3 {
		t.Errorf("upload = %+v", cfg.Upload)
	}
	if !cfg.Sweeper.Enabled || cfg.Sweeper.Interval != 15*time.Minute {
		t.Errorf("sweeper = %+v", cfg.Sweeper)
	}
	if cfg.UseMemoryStore() {
		t.Error("expected postgres store when DATABASE_URL is set")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"small part size", "UPLOAD_PART_SIZE", "1024"},
		{"non numeric part size", "UPLOAD_PART_SIZE", "big"},
		{"bad ttl", "UPLOAD_PRESIGN_TTL", "ten minutes"},
		{"negative retries", "UPLOAD_ABORT_RETRIES", "-1"},
		{"bad driver", "STORAGE_DRIVER", "gcs"},
		{"bad addr", "HTTP_ADDR", "localhost"},
		{"bad port", "HTTP_ADDR", ":99999"},
		{"bad dsn", "DATABASE_URL", "mysql://localhost"},
		{"bad hash", "ADMIN_API_KEY_HASH", "plaintext"},
		{"bad public url", "PUBLIC_BASE_URL", "ftp://cdn"},
		{"bad log level", "LOG_LEVEL", "trace"},
		{"bad bool", "S3_USE_PATH_STYLE", "maybe"},
		{"negative rate limit", "RATE_LIMIT_PER_MINUTE", "-5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			if err == nil {
				t.Fatalf("expected error for %s=%q", tt.key, tt.value)
			}
			if !strings.Contains(err.Error(), tt.key) {
				t.Errorf("error %q does not name %s", err, tt.key)
			}
		})
	}
}

func TestLoadProductionRequiresDatabaseAndKey(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("APP_ENV", "production")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, key := range []string{"DATABASE_URL", "ADMIN_API_KEY_HASH"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error does not mention %s: %v", key, err)
		}
	}
}

func TestLoadMissingStorage(t *testing.T) {
	t.Setenv("PUBLIC_BASE_URL", "https://cdn.example.com")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, key := range []string{"S3_ENDPOINT", "S3_ACCESS_KEY", "S3_SECRET_KEY", "S3_BUCKET"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error does not mention %s: %v", key, err)
		}
	}
}

func TestValidatorBcryptHash(t *testing.T) {
	v := NewValidator()
	v.ValidateBcryptHash("K", testHash)
	if v.HasErrors() {
		t.Fatalf("unexpected errors: %v", v.Errors())
	}

	v.ValidateBcryptHash("K", "$2a$short")
	if len(v.Errors()) != 1 {
		t.Fatalf("expected one error, got %v", v.Errors())
	}
	if v.Err() == nil {
		t.Fatal("Err() should be non-nil")
	}
}
