package config

import (
	"fmt"
	"log/slog"
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
	Port      string
	AdminMode bool

	// Database
	SQLiteDBPath string

	// Backend selection
	DataBackend string

	// AMQP, disabled when AMQPURL is empty
	AMQPURL         string
	AMQPExchange    string
	AMQPQueue       string
	AMQPEventsQueue string

	// Google Sheets export, disabled when GoogleSpreadsheetID is empty
	GoogleSpreadsheetID    string
	GoogleReportsSheetName string

	// Report processor; zero disables periodic runs
	ReportInterval time.Duration

	// Request handling
	RateLimitRPM  int
	AuthCacheSize int
	AuthCacheTTL  time.Duration

	LogLevel string
}

var validBackends = []string{"memory", "sqlite"}

func Load() *Config {
	cfg := &Config{
		Port:      getEnv("PORT", "8081"),
		AdminMode: getEnvBool("ADMIN_MODE", false),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/financify.db"),
		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),

		AMQPURL:         getEnv("AMQP_URL", ""),
		AMQPExchange:    getEnv("AMQP_EXCHANGE", "financify"),
		AMQPQueue:       getEnv("AMQP_QUEUE", "report_runs"),
		AMQPEventsQueue: getEnv("AMQP_EVENTS_QUEUE", "report_events"),

		GoogleSpreadsheetID:    getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleReportsSheetName: getEnv("GOOGLE_REPORTS_SHEET_NAME", "Reports"),

		ReportInterval: getEnvDuration("REPORT_INTERVAL", time.Hour),

		RateLimitRPM:  getEnvInt("RATE_LIMIT_RPM", 120),
		AuthCacheSize: getEnvInt("AUTH_CACHE_SIZE", 1000),
		AuthCacheTTL:  getEnvDuration("AUTH_CACHE_TTL", 5*time.Minute),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate data backend
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	// Validate SQLite configuration if backend is sqlite
	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			// Check if directory exists or can be created
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

	// Validate AMQP URL if provided
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
		if c.AMQPEventsQueue == "" {
			errors = append(errors, "AMQP events queue name cannot be empty when AMQP URL is provided")
		} else if c.AMQPEventsQueue == c.AMQPQueue {
			errors = append(errors, "AMQP events queue must differ from the run queue")
		}
	}

	if c.GoogleSpreadsheetID != "" && strings.TrimSpace(c.GoogleReportsSheetName) == "" {
		errors = append(errors, "Google reports sheet name is required when GOOGLE_SPREADSHEET_ID is set")
	}

	if c.ReportInterval < 0 {
		errors = append(errors, fmt.Sprintf("invalid report interval %v: must not be negative", c.ReportInterval))
	} else if c.ReportInterval > 0 && c.ReportInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid report interval %v: must be at least 1 second", c.ReportInterval))
	} else if c.ReportInterval > 7*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid report interval %v: must be at most 7 days", c.ReportInterval))
	}

	if c.RateLimitRPM < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitRPM))
	}
	if c.AuthCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid auth cache size %d: must be at least 1", c.AuthCacheSize))
	}
	if c.AuthCacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid auth cache TTL %v: must be positive", c.AuthCacheTTL))
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ParseLevel maps LOG_LEVEL values to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s': must be one of debug, info, warn, error", s)
	}
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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
