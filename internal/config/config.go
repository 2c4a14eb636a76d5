// Package config provides configuration management for the course watcher.
//
// Settings come from environment variables. An optional YAML file supplies values
// for the same keys, written in lower case (target_url, state_file, ...); a variable
// set in the environment always wins over the file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"

	"github.com/chrisilt/course-watcher/internal/notifier"
	"github.com/chrisilt/course-watcher/internal/storage"
)

// Configuration validation errors.
var (
	ErrMissingTargetURL  = errors.New("TARGET_URL is required")
	ErrInvalidTargetURL  = errors.New("TARGET_URL must be an absolute http(s) URL")
	ErrInvalidTimeout    = errors.New("REQUEST_TIMEOUT must be at least 1 second")
	ErrInvalidBuffer     = errors.New("EXPIRED_DAYS_BUFFER must be non-negative")
	ErrInvalidSMTPPort   = errors.New("EMAIL_SMTP_PORT must be between 1 and 65535")
	ErrMissingStateFile  = errors.New("STATE_FILE is required")
	ErrInvalidWebhookURL = errors.New("WEBHOOK_URL must be an absolute http(s) URL")
	ErrInvalidTeamsURL   = errors.New("TEAMS_WEBHOOK_URL must be an absolute http(s) URL")
	ErrInvalidLogLevel   = errors.New("LOG_LEVEL must be one of: debug, info, warn, error")
	ErrInvalidLogFormat  = errors.New("LOG_FORMAT must be 'json' or 'text'")
	ErrInvalidConfigKey  = errors.New("config file values must be scalars")
)

// DefaultTargetURL is the open-registrations listing watched when TARGET_URL is unset
const DefaultTargetURL = "https://www.eugloh.eu/courses-trainings/?openRegistrations=%5Byes%5D"

// Config holds all watcher configuration.
// An empty user agent falls back to the scraper default.
type Config struct {
	// Page and extraction
	TargetURL     string `env:"TARGET_URL" envDefault:"https://www.eugloh.eu/courses-trainings/?openRegistrations=%5Byes%5D"`
	LinkSelector  string `env:"REG_LINK_SELECTOR" envDefault:"div.buttons-wrap a.button, p.formUrl a, div.buttons-wrap a[href*='register'], a[href*='register'], a[href*='intranet.eugloh.eu']"`
	TitleSelector string `env:"TITLE_SELECTOR" envDefault:"h5.headline"`
	DateSelector  string `env:"DATE_SELECTOR" envDefault:"time, .date"`
	UserAgent     string `env:"USER_AGENT"`

	// Seconds, as in REQUEST_TIMEOUT=15
	RequestTimeout int `env:"REQUEST_TIMEOUT" envDefault:"15"`

	// Grace period in days after a deadline before an event counts as expired
	ExpiredDaysBuffer int `env:"EXPIRED_DAYS_BUFFER" envDefault:"0"`

	// Files
	StateFile     string `env:"STATE_FILE" envDefault:"./seen.json"`
	HistoryFile   string `env:"HISTORY_FILE" envDefault:"./history.json"`
	FeedFile      string `env:"FEED_FILE" envDefault:"./feed.xml"`
	StatsFile     string `env:"STATS_FILE" envDefault:"./docs/stats.json"`
	StatsHTMLFile string `env:"STATS_HTML_FILE" envDefault:"./docs/stats.html"`
	MetricsFile   string `env:"METRICS_FILE"`
	FeedSelfURL   string `env:"FEED_SELF_URL"`

	// Webhook
	WebhookURL    string `env:"WEBHOOK_URL"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`

	// Email
	EmailEnabled      bool   `env:"EMAIL_ENABLED"`
	EmailFrom         string `env:"EMAIL_FROM"`
	EmailTo           string `env:"EMAIL_TO"`
	EmailSMTPHost     string `env:"EMAIL_SMTP_HOST"`
	EmailSMTPPort     int    `env:"EMAIL_SMTP_PORT" envDefault:"587"`
	EmailSMTPUser     string `env:"EMAIL_SMTP_USER"`
	EmailSMTPPassword string `env:"EMAIL_SMTP_PASSWORD"`

	// Chat
	TeamsWebhookURL string `env:"TEAMS_WEBHOOK_URL"`

	// Optional Redis seen-state backend
	RedisURL       string `env:"REDIS_URL"`
	RedisKeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"course-watcher:"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load reads the optional YAML file at path, overlays the environment and validates
func Load(path string) (*Config, error) {
	return load(path, environ())
}

func load(path string, environment map[string]string) (*Config, error) {
	merged := make(map[string]string)

	if path != "" {
		fileValues, err := readFile(path)
		if err != nil {
			return nil, err
		}
		for k, v := range fileValues {
			merged[k] = v
		}
	}
	for k, v := range environment {
		merged[k] = v
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: merged}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// readFile returns the file's keys upper-cased to their variable names
func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		var typeErr *yaml.TypeError
		if errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfigKey, err)
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		values[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	return values, nil
}

// environ returns the process environment. Empty variables count as unset so that
// REQUEST_TIMEOUT= keeps its default.
func environ() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// expandPaths resolves a leading ~/ in every file setting
func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.StateFile, &c.HistoryFile, &c.FeedFile, &c.StatsFile, &c.StatsHTMLFile, &c.MetricsFile} {
		expanded, err := storage.ExpandPath(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// Validate checks configuration values
func (c *Config) Validate() error {
	if strings.TrimSpace(c.TargetURL) == "" {
		return ErrMissingTargetURL
	}
	if !isHTTPURL(c.TargetURL) {
		return ErrInvalidTargetURL
	}
	if c.RequestTimeout < 1 {
		return ErrInvalidTimeout
	}
	if c.ExpiredDaysBuffer < 0 {
		return ErrInvalidBuffer
	}
	if c.StateFile == "" {
		return ErrMissingStateFile
	}
	if c.EmailSMTPPort < 1 || c.EmailSMTPPort > 65535 {
		return ErrInvalidSMTPPort
	}
	if c.WebhookURL != "" && !isHTTPURL(c.WebhookURL) {
		return ErrInvalidWebhookURL
	}
	if c.TeamsWebhookURL != "" && !isHTTPURL(c.TeamsWebhookURL) {
		return ErrInvalidTeamsURL
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return ErrInvalidLogLevel
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return ErrInvalidLogFormat
	}

	return nil
}

// Timeout returns the request timeout as a duration
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// Buffer returns the expiry grace period as a duration
func (c *Config) Buffer() time.Duration {
	return time.Duration(c.ExpiredDaysBuffer) * 24 * time.Hour
}

// Email returns the SMTP settings for the email sink
func (c *Config) Email() notifier.EmailConfig {
	return notifier.EmailConfig{
		From:     c.EmailFrom,
		To:       notifier.ParseRecipients(c.EmailTo),
		Host:     c.EmailSMTPHost,
		Port:     c.EmailSMTPPort,
		User:     c.EmailSMTPUser,
		Password: c.EmailSMTPPassword,
	}
}

// UseRedis reports whether seen state lives in Redis
func (c *Config) UseRedis() bool {
	return c.RedisURL != ""
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
