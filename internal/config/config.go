// Package config provides application configuration loading.
//
// Configuration is layered: built-in defaults, then an optional YAML
// file, then environment variables prefixed with WISHLANE_. Nested keys
// use a double underscore in the environment, e.g.
// WISHLANE_DATABASE__URL maps to database.url.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "WISHLANE_"

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Log       LogConfig       `koanf:"log"`
	Dispatch  DispatchConfig  `koanf:"dispatch"`
	MailQueue MailQueueConfig `koanf:"mail_queue"`
	Reminders RemindersConfig `koanf:"reminders"`
	Orders    OrdersConfig    `koanf:"orders"`
	Email     EmailConfig     `koanf:"email"`
	Push      PushConfig      `koanf:"push"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port"`
	MetricsPort       string        `koanf:"metrics_port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig contains PostgreSQL configuration.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts int           `koanf:"connect_attempts"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, text
}

// DispatchConfig contains dispatch trigger configuration.
type DispatchConfig struct {
	// Secret gates the trigger and queue endpoints. An empty secret
	// leaves them open, which is only acceptable in tests.
	Secret      string        `koanf:"secret"`
	TaskTimeout time.Duration `koanf:"task_timeout"`
}

// MailQueueConfig contains email queue processor configuration.
type MailQueueConfig struct {
	BatchSize   int           `koanf:"batch_size"`
	MaxAttempts int           `koanf:"max_attempts"`
	StuckAfter  time.Duration `koanf:"stuck_after"`
}

// RemindersConfig contains reminder scheduler configuration.
type RemindersConfig struct {
	// WindowDays lists the days-before-event offsets that trigger a
	// reminder.
	WindowDays []int `koanf:"window_days"`
}

// OrdersConfig contains order expiry sweeper configuration.
type OrdersConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

// EmailConfig contains SMTP sender configuration.
type EmailConfig struct {
	Enabled      bool    `koanf:"enabled"`
	SMTPHost     string  `koanf:"smtp_host"`
	SMTPPort     int     `koanf:"smtp_port"`
	SMTPUser     string  `koanf:"smtp_user"`
	SMTPPassword string  `koanf:"smtp_password"`
	FromAddress  string  `koanf:"from_address"`
	RateLimit    float64 `koanf:"rate_limit"` // messages per second
}

// PushConfig contains push webhook sender configuration.
type PushConfig struct {
	Enabled    bool          `koanf:"enabled"`
	WebhookURL string        `koanf:"webhook_url"`
	AuthToken  string        `koanf:"auth_token"`
	Timeout    time.Duration `koanf:"timeout"`
}

// SchedulerConfig controls the optional in-process cron trigger. When
// disabled, dispatch runs only when an external scheduler calls the
// trigger endpoint.
type SchedulerConfig struct {
	Enabled bool   `koanf:"enabled"`
	Spec    string `koanf:"spec"`
}

// Default returns configuration defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectTimeout:  30 * time.Second,
			ConnectAttempts: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Dispatch: DispatchConfig{
			TaskTimeout: 2 * time.Minute,
		},
		MailQueue: MailQueueConfig{
			BatchSize:   50,
			MaxAttempts: 3,
			StuckAfter:  15 * time.Minute,
		},
		Reminders: RemindersConfig{
			WindowDays: []int{7, 3, 1},
		},
		Orders: OrdersConfig{
			Timeout: 24 * time.Hour,
		},
		Email: EmailConfig{
			SMTPPort:  587,
			RateLimit: 1,
		},
		Push: PushConfig{
			Timeout: 10 * time.Second,
		},
		Scheduler: SchedulerConfig{
			Spec: "*/5 * * * *",
		},
	}
}

// Load reads configuration from an optional YAML file and the
// environment. An empty path skips the file layer; a non-empty path
// that does not exist is an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// envKey converts WISHLANE_DATABASE__MAX_OPEN_CONNS to
// database.max_open_conns.
func envKey(key string) string {
	key = strings.TrimPrefix(key, envPrefix)
	key = strings.ToLower(key)
	return strings.ReplaceAll(key, "__", ".")
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if c.MailQueue.BatchSize <= 0 {
		return fmt.Errorf("mail_queue.batch_size must be positive")
	}
	if c.MailQueue.MaxAttempts <= 0 {
		return fmt.Errorf("mail_queue.max_attempts must be positive")
	}
	if c.Orders.Timeout <= 0 {
		return fmt.Errorf("orders.timeout must be positive")
	}
	if len(c.Reminders.WindowDays) == 0 {
		return fmt.Errorf("reminders.window_days must not be empty")
	}
	for _, d := range c.Reminders.WindowDays {
		if d <= 0 {
			return fmt.Errorf("reminders.window_days entries must be positive, got %d", d)
		}
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", c.Log.Format)
	}
	return nil
}
