package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "watcher.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load("", map[string]string{})
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}

	if cfg.TargetURL != DefaultTargetURL {
		t.Errorf("TargetURL = %q, want %q", cfg.TargetURL, DefaultTargetURL)
	}
	if cfg.TitleSelector != "h5.headline" || cfg.DateSelector != "time, .date" {
		t.Errorf("selectors = %q, %q", cfg.TitleSelector, cfg.DateSelector)
	}
	if !strings.Contains(cfg.LinkSelector, "a[href*='intranet.eugloh.eu']") {
		t.Errorf("LinkSelector = %q", cfg.LinkSelector)
	}
	if cfg.RequestTimeout != 15 {
		t.Errorf("RequestTimeout = %d, want 15", cfg.RequestTimeout)
	}
	if cfg.ExpiredDaysBuffer != 0 {
		t.Errorf("ExpiredDaysBuffer = %d, want 0", cfg.ExpiredDaysBuffer)
	}
	if cfg.StateFile != "./seen.json" {
		t.Errorf("StateFile = %q", cfg.StateFile)
	}
	if cfg.HistoryFile != "./history.json" {
		t.Errorf("HistoryFile = %q", cfg.HistoryFile)
	}
	if cfg.FeedFile != "./feed.xml" {
		t.Errorf("FeedFile = %q", cfg.FeedFile)
	}
	if cfg.StatsFile != "./docs/stats.json" || cfg.StatsHTMLFile != "./docs/stats.html" {
		t.Errorf("stats files = %q, %q", cfg.StatsFile, cfg.StatsHTMLFile)
	}
	if cfg.EmailSMTPPort != 587 {
		t.Errorf("EmailSMTPPort = %d, want 587", cfg.EmailSMTPPort)
	}
	if cfg.EmailEnabled {
		t.Error("EmailEnabled should default to false")
	}
	if cfg.RedisKeyPrefix != "course-watcher:" {
		t.Errorf("RedisKeyPrefix = %q", cfg.RedisKeyPrefix)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "json" {
		t.Errorf("log settings = %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.UseRedis() {
		t.Error("UseRedis() should be false without REDIS_URL")
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	cfg, err := load("", map[string]string{
		"TARGET_URL":          "https://example.com/courses",
		"REQUEST_TIMEOUT":     "30",
		"EXPIRED_DAYS_BUFFER": "2",
		"EMAIL_ENABLED":       "true",
		"REDIS_URL":           "redis://localhost:6379/0",
		"LOG_FORMAT":          "text",
	})
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}

	if cfg.TargetURL != "https://example.com/courses" {
		t.Errorf("TargetURL = %q", cfg.TargetURL)
	}
	if cfg.Timeout() != 30*time.Second {
		t.Errorf("Timeout() = %v, want 30s", cfg.Timeout())
	}
	if cfg.Buffer() != 48*time.Hour {
		t.Errorf("Buffer() = %v, want 48h", cfg.Buffer())
	}
	if !cfg.EmailEnabled {
		t.Error("EmailEnabled should be true")
	}
	if !cfg.UseRedis() {
		t.Error("UseRedis() should be true")
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q", cfg.LogFormat)
	}
}

func TestLoad_FileWithEnvironmentPrecedence(t *testing.T) {
	path := writeYAML(t, `
target_url: https://file.example.com/list
state_file: /var/lib/watcher/seen.json
request_timeout: 20
email_enabled: true
`)

	cfg, err := load(path, map[string]string{
		"STATE_FILE": "/tmp/env-seen.json",
	})
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}

	if cfg.TargetURL != "https://file.example.com/list" {
		t.Errorf("TargetURL = %q, want file value", cfg.TargetURL)
	}
	if cfg.StateFile != "/tmp/env-seen.json" {
		t.Errorf("StateFile = %q, want environment value", cfg.StateFile)
	}
	if cfg.RequestTimeout != 20 {
		t.Errorf("RequestTimeout = %d, want 20", cfg.RequestTimeout)
	}
	if !cfg.EmailEnabled {
		t.Error("EmailEnabled should come from the file")
	}
	if cfg.FeedFile != "./feed.xml" {
		t.Errorf("FeedFile = %q, want default", cfg.FeedFile)
	}
}

func TestLoad_FileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
		if err == nil {
			t.Fatal("expected error for missing file")
		}
	})

	t.Run("malformed YAML", func(t *testing.T) {
		path := writeYAML(t, "target_url: [unclosed\n")
		_, err := load(path, nil)
		if err == nil || errors.Is(err, ErrInvalidConfigKey) {
			t.Fatalf("error = %v, want a parse error", err)
		}
	})

	t.Run("nested value", func(t *testing.T) {
		path := writeYAML(t, "email:\n  from: a@example.com\n")
		_, err := load(path, nil)
		if !errors.Is(err, ErrInvalidConfigKey) {
			t.Fatalf("error = %v, want ErrInvalidConfigKey", err)
		}
	})
}

func TestLoad_InvalidNumber(t *testing.T) {
	_, err := load("", map[string]string{"REQUEST_TIMEOUT": "soon"})
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_EmptyVariableKeepsDefault(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT", "")
	t.Setenv("STATE_FILE", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RequestTimeout != 15 {
		t.Errorf("RequestTimeout = %d, want 15", cfg.RequestTimeout)
	}
	if cfg.StateFile != "./seen.json" {
		t.Errorf("StateFile = %q, want default", cfg.StateFile)
	}
}

func TestLoad_ReadsProcessEnvironment(t *testing.T) {
	t.Setenv("FEED_FILE", "/srv/www/feed.xml")
	t.Setenv("EXPIRED_DAYS_BUFFER", "1")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.FeedFile != "/srv/www/feed.xml" {
		t.Errorf("FeedFile = %q", cfg.FeedFile)
	}
	if cfg.Buffer() != 24*time.Hour {
		t.Errorf("Buffer() = %v", cfg.Buffer())
	}
}

func validConfig() *Config {
	return &Config{
		TargetURL:      "https://example.com/courses",
		RequestTimeout: 15,
		StateFile:      "./seen.json",
		EmailSMTPPort:  587,
		LogLevel:       "info",
		LogFormat:      "json",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{"valid", func(c *Config) {}, nil},
		{"missing target", func(c *Config) { c.TargetURL = " " }, ErrMissingTargetURL},
		{"relative target", func(c *Config) { c.TargetURL = "/courses" }, ErrInvalidTargetURL},
		{"ftp target", func(c *Config) { c.TargetURL = "ftp://example.com/" }, ErrInvalidTargetURL},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, ErrInvalidTimeout},
		{"negative buffer", func(c *Config) { c.ExpiredDaysBuffer = -1 }, ErrInvalidBuffer},
		{"empty state file", func(c *Config) { c.StateFile = "" }, ErrMissingStateFile},
		{"bad smtp port", func(c *Config) { c.EmailSMTPPort = 70000 }, ErrInvalidSMTPPort},
		{"bad webhook", func(c *Config) { c.WebhookURL = "not a url" }, ErrInvalidWebhookURL},
		{"bad teams", func(c *Config) { c.TeamsWebhookURL = "teams.example.com" }, ErrInvalidTeamsURL},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, ErrInvalidLogLevel},
		{"warning alias", func(c *Config) { c.LogLevel = "WARNING" }, nil},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }, ErrInvalidLogFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEmail(t *testing.T) {
	cfg := validConfig()
	cfg.EmailFrom = "watcher@example.com"
	cfg.EmailTo = "a@example.com, b@example.com,"
	cfg.EmailSMTPHost = "smtp.example.com"
	cfg.EmailSMTPUser = "user"
	cfg.EmailSMTPPassword = "secret"

	email := cfg.Email()
	if len(email.To) != 2 || email.To[1] != "b@example.com" {
		t.Errorf("To = %v", email.To)
	}
	if email.Port != 587 {
		t.Errorf("Port = %d", email.Port)
	}
	if !email.Complete() {
		t.Error("email settings should be complete")
	}

	cfg.EmailSMTPPassword = ""
	if cfg.Email().Complete() {
		t.Error("email settings without password should be incomplete")
	}
}
