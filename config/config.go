// Package config loads the engine's configuration from a YAML file with
// environment-variable overrides, following the closed environment surface
// documented in SPEC_FULL.md.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// StoreConfig configures the columnar store gateway connection.
type StoreConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Database       string `yaml:"database"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// AlertConfig configures severity filtering and dedup for the dispatcher.
type AlertConfig struct {
	MinSeverity    string `yaml:"min_severity"`
	DedupTTLHours  int    `yaml:"dedup_ttl_hours"`
}

// SinksConfig configures the notification sinks.
type SinksConfig struct {
	ChatWebhookURL  string   `yaml:"chat_webhook_url"`
	BotToken        string   `yaml:"bot_token"`
	BotChatID       string   `yaml:"bot_chat_id"`
	BotThreadID     string   `yaml:"bot_thread_id"`
	WebhookURL      string   `yaml:"webhook_url"`
	WebhookURLs     []string `yaml:"webhook_urls"`
	WebhookSecret   string   `yaml:"webhook_secret"`
	WebhookAuthHdr  string   `yaml:"webhook_auth_header"`
}

// LogConfig configures the slog logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the engine's top-level configuration.
type Config struct {
	Store             StoreConfig `yaml:"store"`
	Alert             AlertConfig `yaml:"alert"`
	Sinks             SinksConfig `yaml:"sinks"`
	Log               LogConfig   `yaml:"log"`
	SchedulerInterval int         `yaml:"scheduler_interval_seconds"`
}

// ScanInterval returns the full analytics cycle's scheduling interval as a
// duration (the scheduler's own dispatch tick is a fixed 1s).
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.SchedulerInterval) * time.Second
}

// DedupTTL returns the alert dedup window as a duration.
func (c *AlertConfig) DedupTTL() time.Duration {
	return time.Duration(c.DedupTTLHours) * time.Hour
}

// Path returns the on-disk SQLite file backing the store gateway. Host/Port/
// User/Password describe a networked columnar store's connection surface and
// are accepted for configuration-compatibility but unused by the embedded
// pure-Go engine standing in for it; Database names the file.
func (c *StoreConfig) Path() string {
	if strings.HasSuffix(c.Database, ".db") {
		return c.Database
	}
	return c.Database + ".db"
}

// Timeout returns the store's operation timeout as a duration.
func (c *StoreConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func setDefaults(c *Config) {
	if c.Store.Port == 0 {
		c.Store.Port = 9000
	}
	if c.Store.Database == "" {
		c.Store.Database = "smartmoney"
	}
	if c.Store.TimeoutSeconds == 0 {
		c.Store.TimeoutSeconds = 30
	}
	if c.Alert.MinSeverity == "" {
		c.Alert.MinSeverity = "LOW"
	}
	if c.Alert.DedupTTLHours == 0 {
		c.Alert.DedupTTLHours = 24
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.SchedulerInterval == 0 {
		c.SchedulerInterval = 300
	}
}

// Load reads a YAML config file at path, applies a .env overlay if present,
// and finally applies the closed set of environment-variable overrides
// documented in SPEC_FULL.md §6. Missing path is not an error: defaults plus
// env overrides are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config.Load: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse %s: %w", path, err)
		}
	}

	// .env overrides are loaded best-effort; a missing .env is not an error.
	_ = godotenv.Load()

	setDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(c *Config) {
	if v := os.Getenv("STORE_HOST"); v != "" {
		c.Store.Host = v
	}
	if v := os.Getenv("STORE_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Store.Port = n
		}
	}
	if v := os.Getenv("STORE_DATABASE"); v != "" {
		c.Store.Database = v
	}
	if v := os.Getenv("STORE_USER"); v != "" {
		c.Store.User = v
	}
	if v := os.Getenv("STORE_PASSWORD"); v != "" {
		c.Store.Password = v
	}
	if v := os.Getenv("STORE_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Store.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("CHAT_WEBHOOK_URL"); v != "" {
		c.Sinks.ChatWebhookURL = v
	}
	if v := os.Getenv("BOT_TOKEN"); v != "" {
		c.Sinks.BotToken = v
	}
	if v := os.Getenv("BOT_CHAT_ID"); v != "" {
		c.Sinks.BotChatID = v
	}
	if v := os.Getenv("BOT_THREAD_ID"); v != "" {
		c.Sinks.BotThreadID = v
	}
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		c.Sinks.WebhookURL = v
	}
	if v := os.Getenv("WEBHOOK_URLS"); v != "" {
		c.Sinks.WebhookURLs = splitAndTrim(v, ",")
	}
	if v := os.Getenv("WEBHOOK_SECRET"); v != "" {
		c.Sinks.WebhookSecret = v
	}
	if v := os.Getenv("WEBHOOK_AUTH_HEADER"); v != "" {
		c.Sinks.WebhookAuthHdr = v
	}
	if v := os.Getenv("ALERT_MIN_SEVERITY"); v != "" {
		c.Alert.MinSeverity = v
	}
	if v := os.Getenv("ALERT_DEDUP_TTL_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Alert.DedupTTLHours = n
		}
	}
	if v := os.Getenv("SCHEDULER_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.SchedulerInterval = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) validate() error {
	c.Alert.MinSeverity = strings.ToUpper(c.Alert.MinSeverity)
	switch c.Alert.MinSeverity {
	case "LOW", "MEDIUM", "HIGH", "CRITICAL":
	default:
		return fmt.Errorf("invalid ALERT_MIN_SEVERITY %q", c.Alert.MinSeverity)
	}
	if c.SchedulerInterval <= 0 {
		return fmt.Errorf("scheduler_interval_seconds must be positive, got %d", c.SchedulerInterval)
	}
	return nil
}
