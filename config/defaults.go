// Package config provides configuration defaults for perfstat.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via config.yaml, flags or environment variables.
package config

import "time"

// =============================================================================
// Sampling Defaults
// =============================================================================

const (
	// DefaultSampleInterval is the cadence of the sampling loop.
	// Override via config: interval
	DefaultSampleInterval = time.Second

	// TimestampResolution is the rounding applied to every sample timestamp.
	TimestampResolution = 10 * time.Microsecond

	// DefaultSourceKind selects the counter source.
	// Override via config: source.kind
	DefaultSourceKind = "local"
)

// =============================================================================
// SNMP Source Defaults
// =============================================================================

const (
	// DefaultSNMPPort is the standard SNMP agent port.
	// Override via config: source.snmp.port
	DefaultSNMPPort = 161

	// DefaultSNMPTimeout is the timeout for a single SNMP request.
	// Keep it well below the sample interval.
	// Override via config: source.snmp.timeout
	DefaultSNMPTimeout = 500 * time.Millisecond

	// DefaultSNMPRetries is the number of retry attempts after timeout.
	// Override via config: source.snmp.retries
	DefaultSNMPRetries = 1
)

// =============================================================================
// Output Defaults
// =============================================================================

const (
	// DefaultOutputDir is where local artifacts are written.
	// Override via config: output.dir or -out
	DefaultOutputDir = "."

	// DetailCSVFile and SummaryCSVFile are the CSV artifact names.
	DetailCSVFile  = "details.csv"
	SummaryCSVFile = "summary.csv"

	// DetailParquetFile is written when output.parquet is enabled.
	DetailParquetFile = "details.parquet"

	// SampleStreamFile is written when output.stream is enabled.
	SampleStreamFile = "samples.pb"

	// DefaultChartWidth and DefaultChartHeight size the rendered SVG charts.
	DefaultChartWidth  = 1024
	DefaultChartHeight = 512
)

// =============================================================================
// Upload Defaults
// =============================================================================

const (
	// DefaultUploadTimeout bounds a single HTTP request to the result service.
	// Override via config: perftest.timeout
	DefaultUploadTimeout = 5 * time.Second

	// DefaultUploadRetries is the retry count for transport errors and 5xx.
	// Override via config: perftest.retries
	DefaultUploadRetries = 2

	// DefaultUploadBackoff is multiplied by the attempt number between retries.
	DefaultUploadBackoff = 500 * time.Millisecond

	// DefaultUploadConcurrency limits parallel chart uploads.
	// Override via config: perftest.concurrency
	DefaultUploadConcurrency = 4

	// MaxErrorBodySize caps how much of an error response is kept for logging.
	MaxErrorBodySize = 4 * 1024
)

// =============================================================================
// Environment Overrides
// =============================================================================

const (
	// EnvNetworkIface overrides source.iface.
	EnvNetworkIface = "PERFSTAT_NETWORK_IFACE"

	// EnvPerftestEndpoint overrides perftest.endpoint.
	EnvPerftestEndpoint = "PERFSTAT_PERFTEST_ENDPOINT"
)
