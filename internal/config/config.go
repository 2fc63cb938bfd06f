// Package config reads the backend's settings from the environment.
package config

import (
	"os"
	"strings"
	"time"

	"admin-backend/internal/objectstore"
	"admin-backend/internal/upload"
)

const (
	DriverMinio = "minio"
	DriverS3    = "s3"

	EnvDevelopment = "development"
	EnvProduction  = "production"

	defaultMaxDirectUpload = 32 << 20
	defaultRateLimit       = 600
)

// BuildInfo is reported on health endpoints.
type BuildInfo struct {
	Version string
	Commit  string
}

// Config is everything the backend needs to start.
type Config struct {
	HTTPAddr    string
	DatabaseURL string
	Env         string
	LogFormat   string
	LogLevel    string
	Build       BuildInfo

	StorageDriver string
	Storage       objectstore.Config

	Upload  upload.Config
	Sweeper upload.SweeperConfig

	// AdminAPIKeyHash is a bcrypt hash of the API key callers must present.
	// Empty disables auth outside production.
	AdminAPIKeyHash string

	MaxDirectUploadBytes int64

	// RateLimitPerMinute caps /v1 requests per client IP. Zero disables it.
	RateLimitPerMinute int
}

// Production reports whether APP_ENV is production.
func (c Config) Production() bool {
	return c.Env == EnvProduction
}

// UseMemoryStore reports whether sessions and files are kept in process
// memory. Only allowed outside production.
func (c Config) UseMemoryStore() bool {
	return c.DatabaseURL == "" && !c.Production()
}

// Load reads the environment and validates the result.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	v := NewValidator()

	get := func(key, def string) string {
		if val := strings.TrimSpace(getenv(key)); val != "" {
			return val
		}
		return def
	}
	// first returns the first non-empty of the given keys.
	first := func(def string, keys ...string) string {
		for _, k := range keys {
			if val := strings.TrimSpace(getenv(k)); val != "" {
				return val
			}
		}
		return def
	}

	cfg := Config{
		HTTPAddr:    get("HTTP_ADDR", ":3000"),
		DatabaseURL: get("DATABASE_URL", ""),
		Env:         get("APP_ENV", EnvDevelopment),
		LogFormat:   get("LOG_FORMAT", ""),
		LogLevel:    get("LOG_LEVEL", "info"),
		Build: BuildInfo{
			Version: get("APP_VERSION", "dev"),
			Commit:  get("APP_COMMIT", "unknown"),
		},
		StorageDriver: strings.ToLower(get("STORAGE_DRIVER", DriverMinio)),
		Storage: objectstore.Config{
			Endpoint:     first("", "S3_ENDPOINT", "R2_ENDPOINT"),
			AccessKey:    first("", "S3_ACCESS_KEY", "R2_ACCESS_KEY_ID"),
			SecretKey:    first("", "S3_SECRET_KEY", "R2_SECRET_ACCESS_KEY"),
			Bucket:       first("", "S3_BUCKET", "R2_BUCKET_NAME"),
			Region:       get("S3_REGION", "auto"),
			UsePathStyle: v.parseBool("S3_USE_PATH_STYLE", getenv("S3_USE_PATH_STYLE"), true),
		},
		Upload: upload.Config{
			PartSize:      v.parseInt("UPLOAD_PART_SIZE", getenv("UPLOAD_PART_SIZE"), upload.DefaultPartSize),
			PresignTTL:    v.parseDuration("UPLOAD_PRESIGN_TTL", getenv("UPLOAD_PRESIGN_TTL"), upload.DefaultPresignTTL),
			RemoteTimeout: v.parseDuration("UPLOAD_REMOTE_TIMEOUT", getenv("UPLOAD_REMOTE_TIMEOUT"), upload.DefaultRemoteTimeout),
			PublicBaseURL: strings.TrimRight(get("PUBLIC_BASE_URL", ""), "/"),
		},
		Sweeper: upload.SweeperConfig{
			Enabled:  v.parseBool("UPLOAD_SWEEP_ENABLED", getenv("UPLOAD_SWEEP_ENABLED"), false),
			Interval: v.parseDuration("UPLOAD_SWEEP_INTERVAL", getenv("UPLOAD_SWEEP_INTERVAL"), time.Hour),
			MaxAge:   v.parseDuration("UPLOAD_SESSION_MAX_AGE", getenv("UPLOAD_SESSION_MAX_AGE"), 7*24*time.Hour),
		},
		AdminAPIKeyHash:      get("ADMIN_API_KEY_HASH", ""),
		MaxDirectUploadBytes: v.parseInt("MAX_DIRECT_UPLOAD_BYTES", getenv("MAX_DIRECT_UPLOAD_BYTES"), defaultMaxDirectUpload),
	}

	retries := v.parseInt("UPLOAD_ABORT_RETRIES", getenv("UPLOAD_ABORT_RETRIES"), 0)
	if retries < 0 {
		v.AddError("UPLOAD_ABORT_RETRIES", "must not be negative")
		retries = 0
	}
	cfg.Upload.AbortRetries = uint64(retries)

	rate := v.parseInt("RATE_LIMIT_PER_MINUTE", getenv("RATE_LIMIT_PER_MINUTE"), defaultRateLimit)
	if rate < 0 {
		v.AddError("RATE_LIMIT_PER_MINUTE", "must not be negative")
		rate = 0
	}
	cfg.RateLimitPerMinute = int(rate)

	cfg.validate(v)
	return cfg, v.Err()
}

func (c Config) validate(v *Validator) {
	v.ValidateAddr("HTTP_ADDR", c.HTTPAddr)
	v.ValidateEnum("APP_ENV", c.Env, []string{EnvDevelopment, "staging", EnvProduction, "test"})
	v.ValidateEnum("LOG_FORMAT", c.LogFormat, []string{"", "json", "text"})
	v.ValidateEnum("LOG_LEVEL", c.LogLevel, []string{"debug", "info", "warn", "error"})

	if c.Production() {
		v.ValidateRequired("DATABASE_URL", c.DatabaseURL)
		v.ValidateRequired("ADMIN_API_KEY_HASH", c.AdminAPIKeyHash)
	}
	v.ValidatePostgresURL("DATABASE_URL", c.DatabaseURL)
	v.ValidateBcryptHash("ADMIN_API_KEY_HASH", c.AdminAPIKeyHash)

	v.ValidateEnum("STORAGE_DRIVER", c.StorageDriver, []string{DriverMinio, DriverS3})
	if c.StorageDriver == DriverMinio {
		v.ValidateRequired("S3_ENDPOINT", c.Storage.Endpoint)
	}
	v.ValidateRequired("S3_ACCESS_KEY", c.Storage.AccessKey)
	v.ValidateRequired("S3_SECRET_KEY", c.Storage.SecretKey)
	v.ValidateRequired("S3_BUCKET", c.Storage.Bucket)
	if strings.Contains(c.Storage.Endpoint, "://") {
		v.ValidateURL("S3_ENDPOINT", c.Storage.Endpoint)
	}

	v.ValidateRequired("PUBLIC_BASE_URL", c.Upload.PublicBaseURL)
	v.ValidateURL("PUBLIC_BASE_URL", c.Upload.PublicBaseURL)

	v.ValidateMinInt("UPLOAD_PART_SIZE", c.Upload.PartSize, upload.MinPartSize)
	v.ValidatePositiveDuration("UPLOAD_PRESIGN_TTL", c.Upload.PresignTTL)
	v.ValidatePositiveDuration("UPLOAD_REMOTE_TIMEOUT", c.Upload.RemoteTimeout)
	v.ValidateMinInt("MAX_DIRECT_UPLOAD_BYTES", c.MaxDirectUploadBytes, 1)

	if c.Sweeper.Enabled {
		v.ValidatePositiveDuration("UPLOAD_SWEEP_INTERVAL", c.Sweeper.Interval)
		v.ValidatePositiveDuration("UPLOAD_SESSION_MAX_AGE", c.Sweeper.MaxAge)
	}
}
