package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "STATSWATCH_CONFIG"
	databasePathEnv   = "STATSWATCH_DATABASE"
	sourceURLEnv      = "STATSWATCH_SOURCE_URL"
	intervalEnv       = "MONITOR_INTERVAL"
	smtpHostEnv       = "SMTP_HOST"
	smtpPortEnv       = "SMTP_PORT"
	emailSenderEnv    = "EMAIL_SENDER"
	emailPasswordEnv  = "EMAIL_PASSWORD"
	emailRecipientEnv = "EMAIL_RECIPIENT"
	notifyOnChangeEnv = "NOTIFY_ON_CHANGE"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database      DatabaseConfig     `yaml:"database"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Fetch         FetchConfig        `yaml:"fetch"`
	Email         EmailConfig        `yaml:"email"`
	Notifications NotificationConfig `yaml:"notifications"`
	Logging       LoggingConfig      `yaml:"logging"`
	Sources       []SourceConfig     `yaml:"sources"`
}

// DatabaseConfig locates the embedded SQLite database file.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SchedulerConfig defines how often monitoring cycles run.
type SchedulerConfig struct {
	IntervalMinutes int `yaml:"intervalMinutes"`
}

// Interval resolves the configured minutes to a duration.
func (s SchedulerConfig) Interval() time.Duration {
	if s.IntervalMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(s.IntervalMinutes) * time.Minute
}

// FetchConfig bounds outbound page requests.
type FetchConfig struct {
	TimeoutSeconds int `yaml:"timeoutSeconds"`
}

// Timeout resolves the configured seconds to a duration.
func (f FetchConfig) Timeout() time.Duration {
	if f.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// EmailConfig wires the SMTP transport for outbound notifications.
type EmailConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Sender    string `yaml:"sender"`
	Password  string `yaml:"password"`
	Recipient string `yaml:"recipient"`
}

// NotificationConfig toggles delivery without disabling change recording.
type NotificationConfig struct {
	OnChange string `yaml:"onChange"`
}

// Enabled reports whether notifications should be delivered. Anything but
// the literal "false" keeps delivery on.
func (n NotificationConfig) Enabled() bool {
	return n.OnChange != "false"
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SourceConfig seeds a statistics page to monitor.
type SourceConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv(intervalEnv); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil && minutes > 0 {
			c.Scheduler.IntervalMinutes = minutes
		} else {
			log.Printf("config: invalid %s=%q, keeping %d minutes", intervalEnv, v, c.Scheduler.IntervalMinutes)
		}
	}

	if v := os.Getenv(smtpHostEnv); v != "" {
		c.Email.Host = v
	}
	if v := os.Getenv(smtpPortEnv); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Email.Port = port
		}
	}
	if v := os.Getenv(emailSenderEnv); v != "" {
		c.Email.Sender = v
	}
	if v := os.Getenv(emailPasswordEnv); v != "" {
		c.Email.Password = v
	}
	if v := os.Getenv(emailRecipientEnv); v != "" {
		c.Email.Recipient = v
	}

	if v := os.Getenv(notifyOnChangeEnv); v != "" {
		c.Notifications.OnChange = v
	}

	if v := os.Getenv(sourceURLEnv); v != "" {
		c.Sources = append(c.Sources, SourceConfig{Name: "Primary Source", URL: v})
	}
}

func mergeConfig(base, override Config) Config {
	if override.Database.Path != "" {
		base.Database = override.Database
	}

	if override.Scheduler.IntervalMinutes > 0 {
		base.Scheduler = override.Scheduler
	}
	if override.Fetch.TimeoutSeconds > 0 {
		base.Fetch = override.Fetch
	}

	if override.Email.Host != "" {
		base.Email.Host = override.Email.Host
	}
	if override.Email.Port > 0 {
		base.Email.Port = override.Email.Port
	}
	if override.Email.Sender != "" {
		base.Email.Sender = override.Email.Sender
	}
	if override.Email.Password != "" {
		base.Email.Password = override.Email.Password
	}
	if override.Email.Recipient != "" {
		base.Email.Recipient = override.Email.Recipient
	}

	if override.Notifications.OnChange != "" {
		base.Notifications = override.Notifications
	}
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Database:  DatabaseConfig{Path: defaultDatabasePath()},
		Scheduler: SchedulerConfig{IntervalMinutes: 60},
		Fetch:     FetchConfig{TimeoutSeconds: 10},
		Email:     EmailConfig{Host: "smtp.gmail.com", Port: 587},
		Logging:   LoggingConfig{Level: "info"},
	}
}

func defaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "stats.db"
	}
	return filepath.Join(home, ".statswatch", "stats.db")
}
