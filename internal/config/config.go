package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Log backends accepted by Config.LogBackend.
const (
	LogBackendPebble   = "pebble"
	LogBackendPostgres = "postgres"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// FilesDir is where stored files live. Empty means <dataDir>/files.
	FilesDir string `json:"filesDir" yaml:"filesDir"`
	// LogBackend selects the mutation log store: pebble or postgres.
	LogBackend  string `json:"logBackend" yaml:"logBackend"`
	PostgresDSN string `json:"postgresDSN" yaml:"postgresDSN"`
	// SampleMaxBytes caps the inline content preview carried on write events.
	SampleMaxBytes int              `json:"sampleMaxBytes" yaml:"sampleMaxBytes"`
	Subscribers    SubscriberConfig `json:"subscribers" yaml:"subscribers"`
	Auth           AuthConfig       `json:"auth" yaml:"auth"`
	CORSOrigin     string           `json:"corsOrigin" yaml:"corsOrigin"`
	Log            LogConfig        `json:"log" yaml:"log"`
}

// SubscriberConfig tunes live delivery.
type SubscriberConfig struct {
	// Buffer is the number of pending events queued per subscriber.
	Buffer int `json:"buffer" yaml:"buffer"`
	// SendTimeoutMs bounds how long a broadcast waits on a full queue before
	// the subscriber is dropped.
	SendTimeoutMs int `json:"sendTimeoutMs" yaml:"sendTimeoutMs"`
	// FlushMs batches transport flushes; 0 flushes after every event.
	FlushMs int `json:"flushMs" yaml:"flushMs"`
}

// AuthConfig configures bearer token validation.
type AuthConfig struct {
	Secret          string `json:"secret" yaml:"secret"`
	Issuer          string `json:"issuer" yaml:"issuer"`
	Audience        string `json:"audience" yaml:"audience"`
	AllowQueryToken bool   `json:"allowQueryToken" yaml:"allowQueryToken"`
}

// LogConfig selects process log level and format.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		LogBackend:     LogBackendPebble,
		SampleMaxBytes: 1024,
		Subscribers: SubscriberConfig{
			Buffer:        128,
			SendTimeoutMs: 250,
		},
		Auth:       AuthConfig{AllowQueryToken: true},
		CORSOrigin: "*",
		Log:        LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If path is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.LogBackend {
	case LogBackendPebble:
	case LogBackendPostgres:
		if c.PostgresDSN == "" {
			return errors.New("postgresDSN is required when logBackend is postgres")
		}
	default:
		return fmt.Errorf("unknown logBackend %q", c.LogBackend)
	}
	if c.SampleMaxBytes < 0 {
		return errors.New("sampleMaxBytes must be >= 0")
	}
	if c.Subscribers.Buffer <= 0 {
		return errors.New("subscribers.buffer must be > 0")
	}
	if c.Subscribers.SendTimeoutMs < 0 || c.Subscribers.FlushMs < 0 {
		return errors.New("subscriber timings must be >= 0")
	}
	return nil
}

// SendTimeout returns Subscribers.SendTimeoutMs as a duration.
func (c Config) SendTimeout() time.Duration {
	return time.Duration(c.Subscribers.SendTimeoutMs) * time.Millisecond
}

// FlushInterval returns Subscribers.FlushMs as a duration.
func (c Config) FlushInterval() time.Duration {
	return time.Duration(c.Subscribers.FlushMs) * time.Millisecond
}
