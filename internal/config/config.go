package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config carries every tunable the two binaries read from the
// environment. Missing external-service credentials are not errors
// here; the dependent feature is disabled at wiring time instead.
type Config struct {
	// HTTP server
	Port     string
	LogLevel string

	// Record store backend: "sheets" or "memory"
	RecordsBackend string

	// Google Sheets
	GoogleSpreadsheetID string
	RecordsSheetName    string
	SnapshotsSheetName  string

	// Currency rates
	FXBaseURL  string
	FXTimeout  time.Duration
	FXCacheTTL time.Duration

	// Gemini narrative generator
	GeminiAPIKey    string
	GeminiBaseURL   string
	GeminiModel     string
	GeminiTimeout   time.Duration
	GeminiMaxTokens int

	// Local snapshot store
	SQLiteDBPath string
	DeviceID     string

	// AMQP snapshot sync
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Worker
	ReconcileInterval time.Duration
}

func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8084"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		RecordsBackend: getEnv("RECORDS_BACKEND", "memory"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		RecordsSheetName:    getEnv("RECORDS_SHEET_NAME", "Records"),
		SnapshotsSheetName:  getEnv("SNAPSHOTS_SHEET_NAME", "Snapshots"),

		FXBaseURL:  getEnv("FX_BASE_URL", "https://open.er-api.com/v6"),
		FXTimeout:  getEnvDuration("FX_TIMEOUT", 10*time.Second),
		FXCacheTTL: getEnvDuration("FX_CACHE_TTL", 15*time.Minute),

		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiBaseURL:   getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiTimeout:   getEnvDuration("GEMINI_TIMEOUT", 30*time.Second),
		GeminiMaxTokens: getEnvInt("GEMINI_MAX_TOKENS", 1024),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/duit.db"),
		DeviceID:     getEnv("DEVICE_ID", "default"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "duit"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "snapshot_sync"),

		ReconcileInterval: getEnvDuration("RECONCILE_INTERVAL", 1*time.Minute),
	}
}

// Validate returns a combined error listing every invalid setting.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port %q: must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.RecordsBackend {
	case "sheets", "memory":
	default:
		problems = append(problems, fmt.Sprintf("invalid records backend %q: must be one of [sheets memory]", c.RecordsBackend))
	}

	if c.RecordsBackend == "sheets" {
		if c.GoogleSpreadsheetID == "" {
			problems = append(problems, "GOOGLE_SPREADSHEET_ID is required when using the sheets backend")
		}
		if c.RecordsSheetName == "" {
			problems = append(problems, "RECORDS_SHEET_NAME cannot be empty when using the sheets backend")
		}
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL %q: %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme %q: must be amqp or amqps", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			problems = append(problems, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SQLiteDBPath == "" {
		problems = append(problems, "SQLite database path cannot be empty")
	} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				problems = append(problems, fmt.Sprintf("cannot create SQLite database directory %q: %v", dir, err))
			}
		}
	}

	if c.DeviceID == "" {
		problems = append(problems, "device id cannot be empty")
	}

	if c.FXTimeout < time.Second {
		problems = append(problems, fmt.Sprintf("invalid FX timeout %v: must be at least 1 second", c.FXTimeout))
	}
	if c.FXCacheTTL < 0 {
		problems = append(problems, fmt.Sprintf("invalid FX cache TTL %v: must not be negative", c.FXCacheTTL))
	}
	if c.GeminiTimeout < time.Second {
		problems = append(problems, fmt.Sprintf("invalid Gemini timeout %v: must be at least 1 second", c.GeminiTimeout))
	}
	if c.GeminiMaxTokens < 1 {
		problems = append(problems, fmt.Sprintf("invalid Gemini max tokens %d: must be at least 1", c.GeminiMaxTokens))
	}
	if c.ReconcileInterval < time.Second || c.ReconcileInterval > 24*time.Hour {
		problems = append(problems, fmt.Sprintf("invalid reconcile interval %v: must be between 1s and 24h", c.ReconcileInterval))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

// HistoryEnabled reports whether the persistent record store can be
// wired (sheets backend with credentials, or the in-memory backend).
func (c *Config) HistoryEnabled() bool {
	return c.RecordsBackend == "memory" || c.GoogleSpreadsheetID != ""
}

// NarrativeEnabled reports whether the AI review feature can be wired.
func (c *Config) NarrativeEnabled() bool {
	return c.GeminiAPIKey != ""
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
