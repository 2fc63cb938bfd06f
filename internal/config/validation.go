package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ValidationError is a single rejected setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// Validator collects every configuration problem so they can be reported
// together at startup.
type Validator struct {
	errors []ValidationError
}

func NewValidator() *Validator {
	return &Validator{errors: make([]ValidationError, 0)}
}

func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}

func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

func (v *Validator) Errors() []ValidationError {
	return v.errors
}

// Err returns nil when nothing was rejected.
func (v *Validator) Err() error {
	if !v.HasErrors() {
		return nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d error(s):\n", len(v.errors))
	for i, err := range v.errors {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return fmt.Errorf("%s", sb.String())
}

func (v *Validator) ValidateRequired(key, value string) {
	if value == "" {
		v.AddError(key, "required environment variable not set")
	}
}

// ValidateURL checks for an absolute http(s) URL. Empty values are skipped.
func (v *Validator) ValidateURL(key, value string) {
	if value == "" {
		return
	}

	parsed, err := url.Parse(value)
	if err != nil {
		v.AddError(key, fmt.Sprintf("invalid URL format: %v", err))
		return
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		v.AddError(key, "URL must use http or https scheme")
		return
	}
	if parsed.Host == "" {
		v.AddError(key, "URL must include a host")
	}
}

// ValidatePostgresURL checks the DSN scheme. Empty values are skipped.
func (v *Validator) ValidatePostgresURL(key, value string) {
	if value == "" {
		return
	}
	if !strings.HasPrefix(value, "postgres://") && !strings.HasPrefix(value, "postgresql://") {
		v.AddError(key, "must be a valid PostgreSQL connection string")
	}
}

// ValidateAddr accepts "host:port" or ":port".
func (v *Validator) ValidateAddr(key, value string) {
	if value == "" {
		return
	}

	idx := strings.LastIndex(value, ":")
	if idx < 0 {
		v.AddError(key, "must be in host:port or :port form")
		return
	}

	port, err := strconv.Atoi(value[idx+1:])
	if err != nil {
		v.AddError(key, "port must be a number")
		return
	}
	if port < 1 || port > 65535 {
		v.AddError(key, "port must be between 1 and 65535")
	}
}

func (v *Validator) ValidateEnum(key, value string, allowed []string) {
	for _, opt := range allowed {
		if value == opt {
			return
		}
	}
	v.AddError(key, fmt.Sprintf("must be one of: %s (got: %s)", strings.Join(allowed, ", "), value))
}

func (v *Validator) ValidateMinInt(key string, value, min int64) {
	if value < min {
		v.AddError(key, fmt.Sprintf("must be at least %d (got %d)", min, value))
	}
}

func (v *Validator) ValidatePositiveDuration(key string, value time.Duration) {
	if value <= 0 {
		v.AddError(key, "must be a positive duration")
	}
}

// ValidateBcryptHash checks the prefix and length of a bcrypt hash. Empty
// values are skipped.
func (v *Validator) ValidateBcryptHash(key, value string) {
	if value == "" {
		return
	}

	if !strings.HasPrefix(value, "$2a$") &&
		!strings.HasPrefix(value, "$2b$") &&
		!strings.HasPrefix(value, "$2y$") {
		v.AddError(key, "must be a valid bcrypt hash (starts with $2a$, $2b$, or $2y$)")
	}
	if len(value) != 60 {
		v.AddError(key, "bcrypt hash must be exactly 60 characters")
	}
}

// parseInt records a parse failure and returns def.
func (v *Validator) parseInt(key, raw string, def int64) int64 {
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		v.AddError(key, "must be a valid integer")
		return def
	}
	return n
}

func (v *Validator) parseDuration(key, raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		v.AddError(key, "must be a valid duration (e.g. 30s, 10m, 168h)")
		return def
	}
	return d
}

func (v *Validator) parseBool(key, raw string, def bool) bool {
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		v.AddError(key, "must be true or false")
		return def
	}
	return b
}
