package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/me/timetable/pkg/model"
)

// EnvPrefix prefixes every environment variable read by FromEnv.
const EnvPrefix = "TIMETABLE_"

// ServerConfig holds configuration for the timetable server.
type ServerConfig struct {
	Addr      string // Listen address (default ":8080")
	LogLevel  string // Log level: debug, info, audit, warn, error
	LogFormat string // Log format: text, json
	LogFile   string // Optional file receiving a copy of every log record

	DBDriver    string // sqlite or postgres
	DBPath      string // SQLite database path (default ~/.timetable/timetable.db, ":memory:" for testing)
	PostgresDSN string

	DefaultTenant   string // Used when a request carries no X-Tenant-ID header
	CalendarFile    string // YAML period calendar; the built-in calendar when empty
	InstructorsFile string // YAML instructor directory

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string

	WebhookURL   string
	WebhookRate  float64 // requests per second
	WebhookBurst int

	Concurrency    int           // parallel grid writes per batch
	CORSOrigins    []string      // allowed origins; empty disables CORS
	EventQueueSize int           // notification queue length
	NotifyTimeout  time.Duration // per-sink send timeout
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:           ":8080",
		LogLevel:       "info",
		LogFormat:      "text",
		DBDriver:       "sqlite",
		DefaultTenant:  "default",
		RedisChannel:   "timetable.events",
		WebhookRate:    5,
		WebhookBurst:   10,
		Concurrency:    4,
		EventQueueSize: 256,
		NotifyTimeout:  5 * time.Second,
	}
}

// FromEnv overlays TIMETABLE_* environment variables on cfg. Files named in
// envFiles are loaded first with godotenv; variables already set in the
// process environment take precedence. A missing file is not an error.
func FromEnv(cfg ServerConfig, envFiles ...string) (ServerConfig, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("load %s: %w", f, err)
		}
	}

	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = v
		}
	}
	str("ADDR", &cfg.Addr)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	str("LOG_FILE", &cfg.LogFile)
	str("DB_DRIVER", &cfg.DBDriver)
	str("DB_PATH", &cfg.DBPath)
	str("POSTGRES_DSN", &cfg.PostgresDSN)
	str("DEFAULT_TENANT", &cfg.DefaultTenant)
	str("CALENDAR_FILE", &cfg.CalendarFile)
	str("INSTRUCTORS_FILE", &cfg.InstructorsFile)
	str("REDIS_ADDR", &cfg.RedisAddr)
	str("REDIS_PASSWORD", &cfg.RedisPassword)
	str("REDIS_CHANNEL", &cfg.RedisChannel)
	str("WEBHOOK_URL", &cfg.WebhookURL)

	var errs []error
	num := func(name string, dst *int) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	num("REDIS_DB", &cfg.RedisDB)
	num("WEBHOOK_BURST", &cfg.WebhookBurst)
	num("CONCURRENCY", &cfg.Concurrency)
	num("EVENT_QUEUE_SIZE", &cfg.EventQueueSize)

	if v, ok := os.LookupEnv(EnvPrefix + "WEBHOOK_RATE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sWEBHOOK_RATE: %w", EnvPrefix, err))
		} else {
			cfg.WebhookRate = f
		}
	}
	if v, ok := os.LookupEnv(EnvPrefix + "NOTIFY_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sNOTIFY_TIMEOUT: %w", EnvPrefix, err))
		} else {
			cfg.NotifyTimeout = d
		}
	}
	if v, ok := os.LookupEnv(EnvPrefix + "CORS_ORIGINS"); ok {
		cfg.CORSOrigins = SplitList(v)
	}
	return cfg, errors.Join(errs...)
}

// Validate rejects configurations the server cannot start with.
func (c ServerConfig) Validate() error {
	switch c.DBDriver {
	case "sqlite":
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres driver requires a DSN")
		}
	default:
		return fmt.Errorf("unknown database driver %q (want sqlite or postgres)", c.DBDriver)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.DefaultTenant == "" {
		return fmt.Errorf("default tenant must not be empty")
	}
	return nil
}

// SplitList splits a comma-separated list, dropping empty entries.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ParseCalendar decodes a YAML period calendar and validates it. Omitted days
// default to Monday through Friday.
func ParseCalendar(data []byte) (model.Calendar, error) {
	var cal model.Calendar
	if err := yaml.Unmarshal(data, &cal); err != nil {
		return model.Calendar{}, fmt.Errorf("parse calendar: %w", err)
	}
	if len(cal.Days) == 0 {
		cal.Days = append([]model.Day(nil), model.Weekdays...)
	}
	if err := cal.Validate(); err != nil {
		return model.Calendar{}, fmt.Errorf("invalid calendar: %w", err)
	}
	return cal, nil
}

// LoadCalendar reads path, or returns the default calendar when path is empty.
func LoadCalendar(path string) (model.Calendar, error) {
	if path == "" {
		return model.DefaultCalendar(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Calendar{}, fmt.Errorf("read calendar: %w", err)
	}
	return ParseCalendar(data)
}
