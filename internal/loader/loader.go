// Package loader handles configuration file loading, validation and
// environment overrides.
//
// Precedence, lowest first: DefaultConfig, the YAML file, command line
// flags, environment variables.
package loader

import (
	"fmt"
	"os"
	"slices"

	"github.com/xtxerr/perfstat/config"
	"github.com/xtxerr/perfstat/internal/errors"
	"github.com/xtxerr/perfstat/internal/logging"
	"github.com/xtxerr/perfstat/internal/validation"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Load
// =============================================================================

// Load loads configuration from a YAML file on top of DefaultConfig.
// An empty path returns the defaults. ${VAR} references are expanded.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w: %v", path, errors.ErrInvalidConfig, err)
	}
	return cfg, nil
}

// =============================================================================
// Environment Overrides
// =============================================================================

// ApplyEnv applies the PERFSTAT_* overrides from the process environment.
// A variable that is set wins over the file and the flags, even if empty.
func ApplyEnv(cfg *Config) {
	applyEnv(cfg, os.LookupEnv)
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(config.EnvNetworkIface); ok {
		cfg.Source.Iface = v
	}
	if v, ok := lookup(config.EnvPerftestEndpoint); ok {
		cfg.Perftest.Endpoint = v
	}
}

// =============================================================================
// Validate
// =============================================================================

var (
	sourceKinds = []string{SourceLocal, SourceSNMP}
	logFormats  = []string{"auto", "text", "json"}
)

// Validate validates the configuration and reports every problem at once.
func Validate(cfg *Config) error {
	errs := errors.NewValidationErrors()

	if cfg.Interval.Duration() <= 0 {
		errs.AddField("interval", "must be positive")
	}

	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		errs.AddField("log.level", err.Error())
	}
	if !slices.Contains(logFormats, cfg.Log.Format) {
		errs.AddField("log.format", fmt.Sprintf("must be one of %v", logFormats))
	}

	if !slices.Contains(sourceKinds, cfg.Source.Kind) {
		errs.AddField("source.kind", fmt.Sprintf("must be one of %v", sourceKinds))
	}
	if err := validation.ValidateIfaceName(cfg.Source.Iface); err != nil {
		errs.Add(err)
	}
	if cfg.Source.Kind == SourceSNMP {
		snmp := cfg.Source.SNMP.ToSNMPConfig()
		if err := snmp.Validate(); err != nil {
			errs.Add(err)
		}
		if snmp.Timeout <= 0 {
			errs.AddField("source.snmp.timeout", "must be positive")
		} else if snmp.Timeout >= cfg.Interval.Duration() {
			errs.AddField("source.snmp.timeout", "must be shorter than interval")
		}
	}

	if cfg.Output.Dir == "" {
		errs.AddField("output.dir", "cannot be empty")
	}

	if cfg.Perftest.Endpoint != "" {
		if err := validation.ValidateEndpoint(cfg.Perftest.Endpoint); err != nil {
			errs.Add(err)
		}
	}
	if cfg.Perftest.Timeout.Duration() <= 0 {
		errs.AddField("perftest.timeout", "must be positive")
	}
	if cfg.Perftest.Retries < 0 {
		errs.AddField("perftest.retries", "cannot be negative")
	}
	if cfg.Perftest.Concurrency < 1 {
		errs.AddField("perftest.concurrency", "must be at least 1")
	}

	return errs.Err()
}
