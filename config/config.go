// Package config loads and validates the adapter configuration from a
// YAML file, with defaults that run against a local NATS server.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jvalue/ods-adapter/errors"
)

// Storage mode constants.
const (
	StorageModeMemory = "memory"
	StorageModeKV     = "kv"
)

// Config is the complete adapter configuration.
type Config struct {
	NATS      NATSConfig      `yaml:"nats"`
	Storage   StorageConfig   `yaml:"storage"`
	Publisher PublisherConfig `yaml:"publisher"`
	HTTPFetch HTTPFetchConfig `yaml:"http_fetch"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// NATSConfig describes the broker connection.
type NATSConfig struct {
	URL            string        `yaml:"url"`
	Name           string        `yaml:"name"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	MaxReconnects  int           `yaml:"max_reconnects"`
	ReconnectWait  time.Duration `yaml:"reconnect_wait"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Mode string `yaml:"mode"`
}

// PublisherConfig bounds the notification retry budget.
type PublisherConfig struct {
	Retries int           `yaml:"retries"`
	Backoff time.Duration `yaml:"backoff"`
}

// HTTPFetchConfig bounds outbound protocol fetches.
type HTTPFetchConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Addr disables
// the listener.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		NATS: NATSConfig{
			URL:            "nats://localhost:4222",
			Name:           "ods-adapter",
			ConnectTimeout: 5 * time.Second,
			MaxReconnects:  -1,
			ReconnectWait:  2 * time.Second,
		},
		Storage: StorageConfig{
			Mode: StorageModeMemory,
		},
		Publisher: PublisherConfig{
			Retries: 5,
			Backoff: 5 * time.Second,
		},
		HTTPFetch: HTTPFetchConfig{
			Timeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.WrapFatal(err, "Config", "Load", "file read")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.WrapInvalid(err, "Config", "Load", "yaml decoding")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the adapter cannot run with.
func (c Config) Validate() error {
	var problems []string

	if c.NATS.URL == "" {
		problems = append(problems, "nats.url must not be empty")
	}
	if c.Storage.Mode != StorageModeMemory && c.Storage.Mode != StorageModeKV {
		problems = append(problems, fmt.Sprintf("storage.mode must be %q or %q, got %q",
			StorageModeMemory, StorageModeKV, c.Storage.Mode))
	}
	if c.Publisher.Retries < 0 {
		problems = append(problems, "publisher.retries must not be negative")
	}
	if c.Publisher.Backoff < 0 {
		problems = append(problems, "publisher.backoff must not be negative")
	}
	if c.HTTPFetch.Timeout <= 0 {
		problems = append(problems, "http_fetch.timeout must be positive")
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		problems = append(problems, fmt.Sprintf("log.format must be json or text, got %q", c.Log.Format))
	}

	if len(problems) > 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%d problem(s): %v", len(problems), problems),
			"Config", "Validate", "configuration check",
		)
	}
	return nil
}
