// Package config loads the application configuration from a YAML or
// JSON file with optional environment variable overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/GenuineDickies/pat-sub001/core/dispatch"
	"github.com/GenuineDickies/pat-sub001/infra/notify"
)

type Config struct {
	Storage  StorageConfig   `json:"storage"`
	Dispatch dispatch.Config `json:"dispatch"`
	Metrics  MetricsConfig   `json:"metrics"`
	Notify   NotifyConfig    `json:"notify"`
}

// StorageConfig selects the queue and directory backend.
type StorageConfig struct {
	// Backend is "postgres" or "memory".
	Backend string `json:"backend"`
	DSN     string `json:"dsn"`
	// Bootstrap creates missing dispatch tables at startup.
	Bootstrap bool `json:"bootstrap"`
}

// SetDefaults applies sane defaults.
func (c *StorageConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
}

// Validate checks mandatory fields.
func (c StorageConfig) Validate() error {
	switch c.Backend {
	case "memory":
		return nil
	case "postgres":
		if c.DSN == "" {
			return fmt.Errorf("storage: dsn is required for postgres backend")
		}
		return nil
	default:
		return fmt.Errorf("storage: unknown backend %s", c.Backend)
	}
}

// MetricsConfig defines settings for the metrics sinks.
type MetricsConfig struct {
	// PrometheusAddr exposes /metrics when non-empty, e.g. ":9090".
	PrometheusAddr string `json:"prometheus_addr"`
	InfluxURL      string `json:"influx_url"`
	InfluxToken    string `json:"influx_token"`
	InfluxOrg      string `json:"influx_org"`
	InfluxBucket   string `json:"influx_bucket"`
}

// NotifyConfig wraps the MQTT notifier settings with an enable switch.
type NotifyConfig struct {
	Enabled bool          `json:"enabled"`
	MQTT    notify.Config `json:"mqtt"`
}

// Load reads the configuration file at path, applies PAT_-prefixed
// environment overrides, then defaults and validation.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides, e.g. PAT_STORAGE__DSN.
	if err := k.Load(env.Provider("PAT_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "pat_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Storage.SetDefaults()
	cfg.Dispatch.SetDefaults()
	cfg.Notify.MQTT.SetDefaults()
	if err := cfg.Storage.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Dispatch.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
