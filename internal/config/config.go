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

	"github.com/robfig/cron/v3"
)

// Backends accepted by DATA_BACKEND.
var validBackends = []string{"memory", "sqlite", "postgres"}

type Config struct {
	// Backend selection
	DataBackend  string
	SQLiteDBPath string
	PostgresDSN  string

	// AMQP. An empty URL keeps events in-process (logged only).
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Scheduling (standard 5-field cron specs)
	CatchUpSchedule    string
	ReminderSchedule   string
	ReminderDaysBefore int

	// Engine tuning
	CatchUpConcurrency    int
	CatchUpMaxOccurrences int
	LedgerMaxRetries      int
	MilestoneStep         int

	// Notifications
	EventBufferSize int
	DedupeCacheSize int
	DedupeTTL       time.Duration

	LogLevel string
}

func Load() *Config {
	return &Config{
		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/finledger.db"),
		PostgresDSN:  getEnv("POSTGRES_DSN", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finledger"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_events"),

		CatchUpSchedule:    getEnv("CATCHUP_SCHEDULE", "5 0 * * *"),
		ReminderSchedule:   getEnv("REMINDER_SCHEDULE", "0 8 * * *"),
		ReminderDaysBefore: getEnvInt("REMINDER_DAYS_BEFORE", 3),

		CatchUpConcurrency:    getEnvInt("CATCHUP_CONCURRENCY", 4),
		CatchUpMaxOccurrences: getEnvInt("CATCHUP_MAX_OCCURRENCES", 1000),
		LedgerMaxRetries:      getEnvInt("LEDGER_MAX_RETRIES", 5),
		MilestoneStep:         getEnvInt("MILESTONE_STEP", 25),

		EventBufferSize: getEnvInt("EVENT_BUFFER_SIZE", 256),
		DedupeCacheSize: getEnvInt("DEDUPE_CACHE_SIZE", 10000),
		DedupeTTL:       getEnvDuration("DEDUPE_TTL", 24*time.Hour),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

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

	if c.DataBackend == "postgres" && c.PostgresDSN == "" {
		errors = append(errors, "POSTGRES_DSN is required when using postgres backend")
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

	if _, err := cron.ParseStandard(c.CatchUpSchedule); err != nil {
		errors = append(errors, fmt.Sprintf("invalid catch-up schedule '%s': %v", c.CatchUpSchedule, err))
	}
	if _, err := cron.ParseStandard(c.ReminderSchedule); err != nil {
		errors = append(errors, fmt.Sprintf("invalid reminder schedule '%s': %v", c.ReminderSchedule, err))
	}
	if c.ReminderDaysBefore < 0 || c.ReminderDaysBefore > 365 {
		errors = append(errors, fmt.Sprintf("invalid reminder days %d: must be between 0 and 365", c.ReminderDaysBefore))
	}

	if c.CatchUpConcurrency < 1 || c.CatchUpConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid catch-up concurrency %d: must be between 1 and 64", c.CatchUpConcurrency))
	}
	if c.CatchUpMaxOccurrences < 1 {
		errors = append(errors, fmt.Sprintf("invalid catch-up max occurrences %d: must be at least 1", c.CatchUpMaxOccurrences))
	}
	if c.LedgerMaxRetries < 1 || c.LedgerMaxRetries > 20 {
		errors = append(errors, fmt.Sprintf("invalid ledger max retries %d: must be between 1 and 20", c.LedgerMaxRetries))
	}
	if c.MilestoneStep < 1 || c.MilestoneStep > 99 {
		errors = append(errors, fmt.Sprintf("invalid milestone step %d: must be between 1 and 99", c.MilestoneStep))
	}

	if c.EventBufferSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid event buffer size %d: must be at least 1", c.EventBufferSize))
	}
	if c.DedupeCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid dedupe cache size %d: must be at least 1", c.DedupeCacheSize))
	}
	if c.DedupeTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid dedupe ttl %v: must be at least 1 second", c.DedupeTTL))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
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
