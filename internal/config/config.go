// Package config loads the mapper's run configuration from YAML, following
// the teacher's internal/config.LoadConfig / internal/pkg/config.LoadConfig
// shape (the teacher carries two near-duplicate copies of this package;
// consolidated into one here).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"nettopo/internal/nterr"
)

// ProbingConfig holds the Alias Hint Collector's scheduling parameters
// (spec.md §4.4, §6 "Environment inputs").
type ProbingConfig struct {
	MaxThreads      uint16 `yaml:"max_threads"`
	NbIPIDs         uint8  `yaml:"nb_ip_ids"`
	TimeoutMillis   int    `yaml:"timeout_ms"`
	UDPPortRangeLow int    `yaml:"udp_port_range_low"`
	UDPPortRangeHi  int    `yaml:"udp_port_range_high"`
}

// Timeout returns the configured probe timeout as a Duration.
func (p ProbingConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutMillis) * time.Millisecond
}

// IOConfig names the input/output files consumed and produced by the
// mapper (spec.md §6).
type IOConfig struct {
	SubnetInputPath    string `yaml:"subnet_input_path"`
	SubnetOutputPath   string `yaml:"subnet_output_path"`
	AliasOutputPath    string `yaml:"alias_output_path"`
	BipartiteOutputPath string `yaml:"bipartite_output_path"`
}

// StoreConfig holds the ClickHouse persistence settings.
type StoreConfig struct {
	Addr     string `yaml:"addr"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// EventsConfig holds the NATS event-publishing settings.
type EventsConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// AlerterConfig holds run-health alerting thresholds and SMTP settings.
type AlerterConfig struct {
	CheckInterval       string   `yaml:"check_interval"`
	MaxInconsistentRate float64  `yaml:"max_inconsistent_route_rate"`
	SMTPAddr            string   `yaml:"smtp_addr"`
	MailFrom            string   `yaml:"mail_from"`
	MailTo              []string `yaml:"mail_to"`
}

// APIConfig holds the read-only query service's listen address.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Config is the top-level configuration for nettopo-mapper / nettopo-api.
type Config struct {
	Probing ProbingConfig `yaml:"probing"`
	IO      IOConfig      `yaml:"io"`
	Store   StoreConfig   `yaml:"store"`
	Events  EventsConfig  `yaml:"events"`
	Alerter AlerterConfig `yaml:"alerter"`
	API     APIConfig     `yaml:"api"`
}

// LoadConfig reads the configuration from a YAML file and returns a Config.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", filePath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", filePath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that spec.md §9 flags as invalid rather
// than letting them silently degenerate at run time (maxThreads < nbIPIDs+1
// would otherwise compute a zero-sized phase-1 worker pool on nonzero
// input).
func (c *Config) Validate() error {
	if c.Probing.MaxThreads == 0 {
		return &nterr.MalformedInput{Err: fmt.Errorf("probing.max_threads must be > 0")}
	}
	if uint32(c.Probing.MaxThreads) < uint32(c.Probing.NbIPIDs)+1 {
		return &nterr.MalformedInput{
			Err: fmt.Errorf("probing.max_threads (%d) must be >= nb_ip_ids+1 (%d)",
				c.Probing.MaxThreads, c.Probing.NbIPIDs+1),
		}
	}
	if c.Probing.TimeoutMillis <= 0 {
		return &nterr.MalformedInput{Err: fmt.Errorf("probing.timeout_ms must be > 0")}
	}
	if c.Probing.UDPPortRangeLow <= 0 || c.Probing.UDPPortRangeHi <= c.Probing.UDPPortRangeLow {
		return &nterr.MalformedInput{Err: fmt.Errorf("probing.udp_port_range_low/high must form a nonempty range")}
	}
	return nil
}
