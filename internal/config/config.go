// Package config holds Retz's scheduler-wide configuration: the Store
// backend, the planner strategy, retention GC leeway, and the reference
// broker's offer cadence. Loading a config file is a convenience for the
// cmd/retzd entrypoint; it is not a collaborator the core store/planner/
// dispatcher depend on directly.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level scheduler configuration.
type Config struct {
	// StoreDSN is passed to database/sql.Open for the configured driver.
	StoreDSN string `yaml:"store_dsn"`

	// PlannerStrategy selects the built-in planner: "fifo" or "priority".
	PlannerStrategy string `yaml:"planner_strategy"`

	// RetentionLeewaySeconds is how long a terminal Job survives before
	// the retention GC is eligible to delete it.
	RetentionLeewaySeconds int `yaml:"retention_leeway_seconds"`

	// RetentionInterval is how often cmd/retzd invokes the retention GC.
	RetentionInterval time.Duration `yaml:"retention_interval"`

	// ListenAddr is read by the (out-of-scope) HTTP front-end; Retz itself
	// never dials it, it only carries the value through.
	ListenAddr string `yaml:"listen_addr"`

	// MetricsAddr is where cmd/retzd mounts /metrics.
	MetricsAddr string `yaml:"metrics_addr"`

	// OfferPollInterval governs how often broker.Reference manufactures a
	// synthetic batch of offers.
	OfferPollInterval time.Duration `yaml:"offer_poll_interval"`
}

// Load reads a YAML config file at path and layers it over Default().
// A missing file is not an error: Default() is returned unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
