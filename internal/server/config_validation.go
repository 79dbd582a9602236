// config_validation.go - Startup validation of the FS_* environment.
//
// Every setting is checked before anything is opened so that a bad deploy
// fails fast with one message listing all problems.
package server

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// MaxRateLimit caps FS_RATE_LIMIT (requests per minute per client).
const MaxRateLimit = 100000

// ConfigValidationError represents a configuration validation error.
type ConfigValidationError struct {
	Field   string
	Message string
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// ConfigValidator collects validation errors.
type ConfigValidator struct {
	errors []ConfigValidationError
}

// NewConfigValidator creates a new configuration validator.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		errors: make([]ConfigValidationError, 0),
	}
}

// AddError adds a validation error.
func (v *ConfigValidator) AddError(field, message string) {
	v.errors = append(v.errors, ConfigValidationError{
		Field:   field,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors.
func (v *ConfigValidator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors.
func (v *ConfigValidator) Errors() []ConfigValidationError {
	return v.errors
}

// ErrorString returns a formatted string of all errors.
func (v *ConfigValidator) ErrorString() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Configuration validation failed with %d error(s):\n", len(v.errors))
	for i, err := range v.errors {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidateRequired validates that a required environment variable is set.
func (v *ConfigValidator) ValidateRequired(key string) string {
	value := os.Getenv(key)
	if value == "" {
		v.AddError(key, "required environment variable not set")
	}
	return value
}

// ValidateURL validates that a value is an http(s) URL.
func (v *ConfigValidator) ValidateURL(key, value string) {
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
	}
}

// ValidateListenAddr validates "host:port" or ":port", the forms net.Listen accepts.
func (v *ConfigValidator) ValidateListenAddr(key, value string) {
	if value == "" {
		return
	}

	_, portStr, err := net.SplitHostPort(value)
	if err != nil {
		v.AddError(key, fmt.Sprintf("invalid listen address (want host:port or :port): %v", err))
		return
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		v.AddError(key, "port must be a number")
		return
	}

	if port < 1 || port > 65535 {
		v.AddError(key, "port must be between 1 and 65535")
	}
}

// ValidateEnum validates that a value is one of allowed options.
func (v *ConfigValidator) ValidateEnum(key, value string, allowed []string) {
	if value == "" {
		return
	}

	for _, opt := range allowed {
		if value == opt {
			return
		}
	}

	v.AddError(key, fmt.Sprintf("must be one of: %s (got: %s)", strings.Join(allowed, ", "), value))
}

// ValidateIntRange validates that a value is an integer in [min, max].
func (v *ConfigValidator) ValidateIntRange(key, value string, min, max int) {
	if value == "" {
		return
	}

	num, err := strconv.Atoi(value)
	if err != nil {
		v.AddError(key, "must be a valid integer")
		return
	}

	if num < min || num > max {
		v.AddError(key, fmt.Sprintf("must be between %d and %d", min, max))
	}
}

// ValidateBool validates a strconv.ParseBool value.
func (v *ConfigValidator) ValidateBool(key, value string) {
	if value == "" {
		return
	}
	if _, err := strconv.ParseBool(value); err != nil {
		v.AddError(key, "must be true or false")
	}
}

// ValidateDirectory validates that path exists and is a directory.
func (v *ConfigValidator) ValidateDirectory(key, path string) {
	info, err := os.Stat(path)
	if err != nil {
		v.AddError(key, fmt.Sprintf("cannot access %s: %v", path, err))
		return
	}
	if !info.IsDir() {
		v.AddError(key, fmt.Sprintf("%s is not a directory", path))
	}
}

// ValidatePostgresURL validates a postgres:// connection string.
func (v *ConfigValidator) ValidatePostgresURL(key, value string) {
	if value == "" {
		return
	}
	if !strings.HasPrefix(value, "postgres://") && !strings.HasPrefix(value, "postgresql://") {
		v.AddError(key, "must be a valid PostgreSQL connection string")
	}
}

// ValidateAllConfiguration checks the process environment.
func ValidateAllConfiguration() error {
	v := NewConfigValidator()

	v.ValidateListenAddr("FS_ADDR", os.Getenv("FS_ADDR"))

	// Either a bucket or a directory backs /files.
	if endpoint := os.Getenv("FS_S3_ENDPOINT"); endpoint != "" {
		if strings.Contains(endpoint, "://") {
			v.ValidateURL("FS_S3_ENDPOINT", endpoint)
		}
		v.ValidateRequired("FS_S3_ACCESS_KEY")
		v.ValidateRequired("FS_S3_SECRET_KEY")
		v.ValidateRequired("FS_BUCKET")
	} else {
		dir := os.Getenv("FS_BASE_DIR")
		if dir == "" {
			dir = DefaultBaseDir
		}
		v.ValidateDirectory("FS_BASE_DIR", dir)
	}

	v.ValidatePostgresURL("FS_DATABASE_URL", os.Getenv("FS_DATABASE_URL"))
	v.ValidateIntRange("FS_RATE_LIMIT", os.Getenv("FS_RATE_LIMIT"), 0, MaxRateLimit)
	v.ValidateBool("FS_TRUST_PROXY", os.Getenv("FS_TRUST_PROXY"))

	v.ValidateEnum("FS_LOG_FORMAT", os.Getenv("FS_LOG_FORMAT"), []string{"json", "text"})
	v.ValidateEnum("FS_LOG_LEVEL", os.Getenv("FS_LOG_LEVEL"), []string{"debug", "info", "warn", "error"})
	v.ValidateEnum("FS_ENV", os.Getenv("FS_ENV"), []string{"development", "production", "staging"})

	if v.HasErrors() {
		return fmt.Errorf("%s", v.ErrorString())
	}

	return nil
}

// WarnOnOptionalMissingConfig logs which optional features are off.
func WarnOnOptionalMissingConfig() {
	warnings := make([]string, 0)

	if os.Getenv("FS_BASE_DIR") == "" && os.Getenv("FS_S3_ENDPOINT") == "" {
		warnings = append(warnings, "FS_BASE_DIR not set - serving "+DefaultBaseDir)
	}

	if os.Getenv("FS_DATABASE_URL") == "" {
		warnings = append(warnings, "FS_DATABASE_URL not set - download audit disabled")
	}

	if os.Getenv("FS_LOG_FORMAT") == "" {
		warnings = append(warnings, "FS_LOG_FORMAT not set - using text format (consider 'json' for production)")
	}

	if len(warnings) > 0 {
		Info("configuration warnings", map[string]any{
			"count":    len(warnings),
			"warnings": warnings,
		})
	}
}
