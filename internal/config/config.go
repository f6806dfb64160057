package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type Config struct {
	// HTTP Server
	Port           string
	RateLimitRPS   float64
	PreviewTTL     time.Duration
	TrustedProxies []string

	// Storage
	DataBackend  string
	SQLiteDBPath string
	DataDir      string

	// DateKey policy
	Timezone string

	// Logging
	LogLevel  string
	LogFormat string

	// Estimation
	GroqAPIKey        string
	GroqBaseURL       string
	GroqTextModel     string
	GroqVisionModel   string
	EstimationTimeout time.Duration
	EstimationRPS     float64
	OFFBaseURL        string
	OFFEnabled        bool

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleDiarySheet         string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Worker
	BackfillSchedule string
	BackfillDays     int

	CalendarCacheTTL time.Duration
}

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8081"),
		RateLimitRPS: getEnvFloat("RATE_LIMIT_RPS", 10),
		PreviewTTL:   getEnvDuration("PREVIEW_TTL", 3*time.Second),

		TrustedProxies: getEnvList("TRUSTED_PROXIES"),

		DataBackend:  getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/kcal.db"),
		DataDir:      getEnv("DATA_DIR", "./data"),

		Timezone: getEnv("TIMEZONE", "Local"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		GroqAPIKey:        getEnv("GROQ_API_KEY", ""),
		GroqBaseURL:       getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		GroqTextModel:     getEnv("GROQ_TEXT_MODEL", "llama-3.3-70b-versatile"),
		GroqVisionModel:   getEnv("GROQ_VISION_MODEL", "llama-3.2-90b-vision-preview"),
		EstimationTimeout: getEnvDuration("ESTIMATION_TIMEOUT", 30*time.Second),
		EstimationRPS:     getEnvFloat("ESTIMATION_RPS", 2),
		OFFBaseURL:        getEnv("OFF_BASE_URL", "https://world.openfoodfacts.org"),
		OFFEnabled:        getEnvBool("OFF_ENABLED", true),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "kcal"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "sync_days"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleDiarySheet:         getEnv("GOOGLE_DIARY_SHEET", "Diary"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		BackfillSchedule: getEnv("BACKFILL_SCHEDULE", "15 3 * * *"),
		BackfillDays:     getEnvInt("BACKFILL_DAYS", 7),

		CalendarCacheTTL: getEnvDuration("CALENDAR_CACHE_TTL", 5*time.Minute),
	}

	return cfg
}

// Location resolves Timezone; "Local" and "" mean the host zone.
func (c *Config) Location() (*time.Location, error) {
	switch strings.TrimSpace(c.Timezone) {
	case "", "Local":
		return time.Local, nil
	default:
		return time.LoadLocation(c.Timezone)
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{"memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
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

	if _, err := c.Location(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
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

	for _, u := range []struct{ name, raw string }{
		{"Groq base URL", c.GroqBaseURL},
		{"OpenFoodFacts base URL", c.OFFBaseURL},
	} {
		if parsed, err := url.Parse(u.raw); err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid %s '%s': must be an http(s) URL", u.name, u.raw))
		}
	}
	if c.EstimationTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid estimation timeout %v: must be at least 1 second", c.EstimationTimeout))
	}
	if c.EstimationRPS <= 0 {
		errors = append(errors, fmt.Sprintf("invalid estimation rate %v: must be positive", c.EstimationRPS))
	}
	if c.RateLimitRPS <= 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %v: must be positive", c.RateLimitRPS))
	}
	if c.PreviewTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid preview TTL %v: must be positive", c.PreviewTTL))
	}

	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR", cidr))
		}
	}

	if _, err := cron.ParseStandard(c.BackfillSchedule); err != nil {
		errors = append(errors, fmt.Sprintf("invalid backfill schedule '%s': %v", c.BackfillSchedule, err))
	}
	if c.BackfillDays < 1 || c.BackfillDays > 366 {
		errors = append(errors, fmt.Sprintf("invalid backfill days %d: must be between 1 and 366", c.BackfillDays))
	}

	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// SheetsEnabled reports whether the worker should export to Google Sheets.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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
