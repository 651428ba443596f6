package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string
	// RateLimitPerMinute caps requests per client IP; 0 disables the limiter.
	RateLimitPerMinute int

	// Storage
	DataBackend  string
	SQLiteDBPath string
	// SeedDirectory holds categories.txt, projects.txt and suppliers.txt.
	SeedDirectory string

	// AMQP (documentation events)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Generation lock
	RedisAddress      string
	GenerationLockTTL time.Duration

	// Attachments
	AttachmentsBackend string
	GCSBucket          string
	GCSPrefix          string
	GCSCredentialsJSON string

	// Google Sheets report
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleOAuthClientJSON    string
	GoogleOAuthClientFile    string
	GoogleOAuthTokenJSON     string
	GoogleOAuthTokenFile     string
	OAuthRedirectPort        string

	// Worker
	ReconcileInterval time.Duration

	// Directory cache
	DirectoryCacheSize int
	DirectoryCacheTTL  time.Duration

	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),

		DataBackend:   getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", "./data/obligations.db"),
		SeedDirectory: getEnv("SEED_DIRECTORY", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "obligations"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "documentation_events"),

		RedisAddress:      getEnv("REDIS_ADDRESS", ""),
		GenerationLockTTL: getEnvDuration("GENERATION_LOCK_TTL", 10*time.Second),

		AttachmentsBackend: getEnv("ATTACHMENTS_BACKEND", "store"),
		GCSBucket:          getEnv("GCS_BUCKET", ""),
		GCSPrefix:          getEnv("GCS_PREFIX", "ledger"),
		GCSCredentialsJSON: getEnv("GCS_CREDENTIALS_JSON", ""),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Obligations"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")),
		GoogleOAuthClientJSON:    getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthClientFile:    getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthTokenJSON:     getEnv("GOOGLE_OAUTH_TOKEN_JSON", ""),
		GoogleOAuthTokenFile:     getEnv("GOOGLE_OAUTH_TOKEN_FILE", "token.json"),
		OAuthRedirectPort:        getEnv("OAUTH_REDIRECT_PORT", "8085"),

		ReconcileInterval: getEnvDuration("RECONCILE_INTERVAL", 5*time.Minute),

		DirectoryCacheSize: getEnvInt("DIRECTORY_CACHE_SIZE", 256),
		DirectoryCacheTTL:  getEnvDuration("DIRECTORY_CACHE_TTL", 10*time.Minute),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be zero or positive", c.RateLimitPerMinute))
	}

	validBackends := []string{"memory", "sqlite"}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RedisAddress != "" && c.GenerationLockTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid generation lock TTL %v: must be at least 1 second", c.GenerationLockTTL))
	}

	validAttachments := []string{"store", "gcs"}
	if !slices.Contains(validAttachments, c.AttachmentsBackend) {
		errors = append(errors, fmt.Sprintf("invalid attachments backend '%s': must be one of %v", c.AttachmentsBackend, validAttachments))
	}
	if c.AttachmentsBackend == "gcs" && c.GCSBucket == "" {
		errors = append(errors, "GCS bucket is required when using gcs attachments backend")
	}

	if c.ReconcileInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid reconcile interval %v: must be at least 1 second", c.ReconcileInterval))
	} else if c.ReconcileInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid reconcile interval %v: must be at most 24 hours", c.ReconcileInterval))
	}

	if c.DirectoryCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid directory cache size %d: must be at least 1", c.DirectoryCacheSize))
	}
	if c.DirectoryCacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid directory cache TTL %v: must be positive", c.DirectoryCacheTTL))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateReport checks the settings the sheets report needs on top of Validate.
// Either a service account or an OAuth client plus token must be configured.
func (c *Config) ValidateReport() error {
	var errors []string
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "Google Spreadsheet ID is required for the report")
	}
	if c.GoogleSheetName == "" {
		errors = append(errors, "Google Sheet name is required for the report")
	}

	if c.UsesServiceAccount() {
		if c.GoogleServiceAccountJSON == "" {
			errors = append(errors, missingFile("Google service account", c.GoogleServiceAccountFile)...)
		}
	} else {
		hasClient := c.GoogleOAuthClientJSON != "" || c.GoogleOAuthClientFile != ""
		hasToken := c.GoogleOAuthTokenJSON != "" || c.GoogleOAuthTokenFile != ""
		if !hasClient || !hasToken {
			errors = append(errors, "either a service account (GOOGLE_SERVICE_ACCOUNT_JSON/FILE) or an OAuth client and token (GOOGLE_OAUTH_CLIENT_*, GOOGLE_OAUTH_TOKEN_*) must be provided for the report")
		} else {
			if c.GoogleOAuthClientJSON == "" {
				errors = append(errors, missingFile("Google OAuth client", c.GoogleOAuthClientFile)...)
			}
			if c.GoogleOAuthTokenJSON == "" {
				errors = append(errors, missingFile("Google OAuth token", c.GoogleOAuthTokenFile)...)
			}
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("report configuration invalid:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// UsesServiceAccount reports whether service account credentials are set.
// They take precedence over an OAuth user token.
func (c *Config) UsesServiceAccount() bool {
	return c.GoogleServiceAccountJSON != "" || c.GoogleServiceAccountFile != ""
}

func (c *Config) ServiceAccountCredentials() ([]byte, error) {
	return inlineOrFile(c.GoogleServiceAccountJSON, c.GoogleServiceAccountFile, "service account")
}

func (c *Config) OAuthClientCredentials() ([]byte, error) {
	return inlineOrFile(c.GoogleOAuthClientJSON, c.GoogleOAuthClientFile, "OAuth client")
}

func (c *Config) OAuthToken() ([]byte, error) {
	return inlineOrFile(c.GoogleOAuthTokenJSON, c.GoogleOAuthTokenFile, "OAuth token")
}

func inlineOrFile(inline, file, what string) ([]byte, error) {
	if inline != "" {
		return []byte(inline), nil
	}
	if file == "" {
		return nil, fmt.Errorf("no %s configured", what)
	}
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read %s file: %w", what, err)
	}
	return b, nil
}

func missingFile(what, path string) []string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return []string{fmt.Sprintf("%s file does not exist: %s", what, path)}
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
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
