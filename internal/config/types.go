package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds the non-secret settings. Credentials never live here; see Credentials.
type Config struct {
	API      APIConfig      `json:"api"`
	Poll     PollConfig     `json:"poll"`
	Logging  LoggingConfig  `json:"logging"`
	Notifier NotifierConfig `json:"notifier"`
	Storage  StorageConfig  `json:"storage"`
}

type APIConfig struct {
	Endpoint string `json:"endpoint"`
	// Timeout is a Go duration string bounding one GET.
	Timeout string `json:"timeout"`
}

// PollConfig controls the cycle schedule.
//
// Every accepts a Go duration ("10m"), HH:MM ("00:10"), an "interval:"/"every:" prefix,
// or a cron expression ("*/10 * * * *", "cron:@hourly").
type PollConfig struct {
	Every string `json:"every"`
	// FromDate is the initial poll window (unix seconds). 0 means process start time.
	FromDate int64 `json:"from_date,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty"`
	Compress   bool   `json:"compress,omitempty"`
}

// NotifierConfig controls outbound delivery.
//
// All durations are Go duration strings (e.g. "500ms", "10s").
type NotifierConfig struct {
	RatePerSec    int    `json:"rate_per_sec"`
	RetryMax      int    `json:"retry_max"`
	RetryBase     string `json:"retry_base"`
	RetryMaxDelay string `json:"retry_max_delay"`
	SendTimeout   string `json:"send_timeout"`
}

// StorageConfig controls the optional audit trail.
//
// Example:
//
//	storage: { driver: "file", path: "./data/homework" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

const (
	DefaultEndpoint   = "https://practicum.yandex.ru/api/user_api/homework_statuses/"
	DefaultRetryEvery = "10m"
)

// Default returns the settings used when no settings file is given.
func Default() *Config {
	return &Config{
		API:  APIConfig{Endpoint: DefaultEndpoint, Timeout: "30s"},
		Poll: PollConfig{Every: DefaultRetryEvery},
		Logging: LoggingConfig{
			Level:   "debug",
			Console: true,
			File:    LoggingFile{Enabled: true, Path: "./homework.log"},
		},
		Notifier: NotifierConfig{
			RatePerSec:    1,
			RetryMax:      2,
			RetryBase:     "500ms",
			RetryMaxDelay: "10s",
			SendTimeout:   "10s",
		},
		Storage: StorageConfig{Driver: "none"},
	}
}

// Validate checks fields that can be checked without other packages.
// The poll schedule is validated by the caller (see app.validateConfig).
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(c.API.Endpoint) == "" {
		return fmt.Errorf("api.endpoint: required")
	}
	durations := map[string]string{
		"api.timeout":              c.API.Timeout,
		"notifier.retry_base":      c.Notifier.RetryBase,
		"notifier.retry_max_delay": c.Notifier.RetryMaxDelay,
		"notifier.send_timeout":    c.Notifier.SendTimeout,
		"storage.busy_timeout":     c.Storage.BusyTimeout,
	}
	for path, raw := range durations {
		if _, err := ParseDurationField(path, raw); err != nil {
			return err
		}
	}
	if c.Notifier.RetryMax < 0 {
		return fmt.Errorf("notifier.retry_max: must be >= 0")
	}
	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "", "none", "file", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
	}
	return nil
}

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
