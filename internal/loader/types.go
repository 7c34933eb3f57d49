// Package loader - Configuration Types
//
// Defines the YAML configuration structure for perfstat.
//
//	interval:  sampling cadence
//	log:       level and output format
//	source:    local host (gopsutil) or remote agent (SNMP)
//	output:    local artifact directory
//	perftest:  result service upload
//	archive:   DuckDB run archive
package loader

import (
	"fmt"
	"time"

	"github.com/xtxerr/perfstat/config"
	"github.com/xtxerr/perfstat/internal/counters"
	"github.com/xtxerr/perfstat/internal/perftest"
	"gopkg.in/yaml.v3"
)

// Source kinds.
const (
	SourceLocal = "local"
	SourceSNMP  = "snmp"
)

// =============================================================================
// Root Configuration
// =============================================================================

// Config is the root configuration structure for perfstat.
type Config struct {
	// Interval is the time between two samples.
	// Default: 1s
	Interval Duration `yaml:"interval"`

	Log      LogConfig      `yaml:"log"`
	Source   SourceConfig   `yaml:"source"`
	Output   OutputConfig   `yaml:"output"`
	Perftest PerftestConfig `yaml:"perftest"`
	Archive  ArchiveConfig  `yaml:"archive"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: info
	Level string `yaml:"level"`

	// Format is auto, text or json. auto picks text on a terminal.
	// Default: auto
	Format string `yaml:"format"`
}

// SourceConfig selects and configures the counter source.
type SourceConfig struct {
	// Kind is local or snmp.
	// Default: local
	Kind string `yaml:"kind"`

	// Iface restricts network counters to one interface. Empty means all.
	// Env: PERFSTAT_NETWORK_IFACE
	Iface string `yaml:"iface"`

	SNMP SNMPSourceConfig `yaml:"snmp"`
}

// SNMPSourceConfig holds SNMP agent settings.
type SNMPSourceConfig struct {
	Host string `yaml:"host"`
	Port uint16 `yaml:"port"`

	// v2c
	Community string `yaml:"community"`

	// v3
	SecurityName  string `yaml:"security_name"`
	SecurityLevel string `yaml:"security_level"`
	AuthProtocol  string `yaml:"auth_protocol"`
	AuthPassword  string `yaml:"auth_password"`
	PrivProtocol  string `yaml:"priv_protocol"`
	PrivPassword  string `yaml:"priv_password"`
	ContextName   string `yaml:"context_name"`

	// Timeout is per request and should stay well below the interval.
	Timeout Duration `yaml:"timeout"`
	Retries int      `yaml:"retries"`
}

// OutputConfig configures local artifacts. They are written when no
// perftest endpoint is set.
type OutputConfig struct {
	// Dir receives details.csv, summary.csv and the charts.
	// Default: .
	Dir string `yaml:"dir"`

	// Parquet also writes details.parquet.
	Parquet bool `yaml:"parquet"`

	// Stream also writes samples.pb.
	Stream bool `yaml:"stream"`
}

// PerftestConfig configures uploads to a perftest result service.
type PerftestConfig struct {
	// Endpoint addresses one test result, e.g.
	// https://perf.example.org/perftest/42. Empty disables uploads.
	// Env: PERFSTAT_PERFTEST_ENDPOINT
	Endpoint string `yaml:"endpoint"`

	// Timeout bounds a single HTTP request.
	// Default: 5s
	Timeout Duration `yaml:"timeout"`

	// Retries after transport errors and 5xx responses.
	// Default: 2
	Retries int `yaml:"retries"`

	// Concurrency limits parallel chart uploads.
	// Default: 4
	Concurrency int `yaml:"concurrency"`
}

// ArchiveConfig configures the DuckDB run archive.
type ArchiveConfig struct {
	// Path of the database file. Empty disables the archive.
	Path string `yaml:"path"`
}

// =============================================================================
// Defaults
// =============================================================================

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Interval: Duration(config.DefaultSampleInterval),
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Source: SourceConfig{
			Kind: config.DefaultSourceKind,
			SNMP: SNMPSourceConfig{
				Port:      config.DefaultSNMPPort,
				Community: "public",
				Timeout:   Duration(config.DefaultSNMPTimeout),
				Retries:   config.DefaultSNMPRetries,
			},
		},
		Output: OutputConfig{
			Dir: config.DefaultOutputDir,
		},
		Perftest: PerftestConfig{
			Timeout:     Duration(config.DefaultUploadTimeout),
			Retries:     config.DefaultUploadRetries,
			Concurrency: config.DefaultUploadConcurrency,
		},
	}
}

// =============================================================================
// Conversions
// =============================================================================

// ToSNMPConfig converts the YAML settings to the SNMP source config.
func (c *SNMPSourceConfig) ToSNMPConfig() counters.SNMPConfig {
	return counters.SNMPConfig{
		Host:          c.Host,
		Port:          c.Port,
		Community:     c.Community,
		SecurityName:  c.SecurityName,
		SecurityLevel: c.SecurityLevel,
		AuthProtocol:  c.AuthProtocol,
		AuthPassword:  c.AuthPassword,
		PrivProtocol:  c.PrivProtocol,
		PrivPassword:  c.PrivPassword,
		ContextName:   c.ContextName,
		Timeout:       c.Timeout.Duration(),
		Retries:       c.Retries,
	}
}

// ToClientConfig converts the YAML settings to the upload client config.
func (c *PerftestConfig) ToClientConfig() *perftest.Config {
	cfg := perftest.DefaultConfig()
	cfg.Timeout = c.Timeout.Duration()
	cfg.Retries = c.Retries
	cfg.Concurrency = c.Concurrency
	return cfg
}

// =============================================================================
// Duration
// =============================================================================

// Duration is a time.Duration that can be unmarshaled from YAML.
// Supports: "1s", "500ms", "2m", or an integer number of seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var secs int64
	if err := value.Decode(&secs); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
