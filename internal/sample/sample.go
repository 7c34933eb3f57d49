package sample

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/xtxerr/perfstat/config"
)

// Metric names. Every sample of a run carries all of them plus one
// per-core key per detected CPU.
const (
	CPUUser       = "cpu_all_user_perc"
	CPUSystem     = "cpu_all_system_perc"
	CPUUserSystem = "cpu_all_user+system_perc"
	CPUIdle       = "cpu_all_idle_perc"
	CPUOther      = "cpu_all_other_perc"

	NetBytesSent   = "net_bytes_sent"
	NetBytesRecv   = "net_bytes_recv"
	DiskReadBytes  = "disk_read_bytes"
	DiskWriteBytes = "disk_write_bytes"
)

const (
	corePrefix = "cpu_"
	coreSuffix = "_perc"
)

// CoreKey returns the metric name for CPU core n.
func CoreKey(n int) string {
	return corePrefix + strconv.Itoa(n) + coreSuffix
}

// ParseCoreKey returns the core index of a cpu_<n>_perc key.
func ParseCoreKey(key string) (int, bool) {
	if !strings.HasPrefix(key, corePrefix) || !strings.HasSuffix(key, coreSuffix) {
		return 0, false
	}
	digits := key[len(corePrefix) : len(key)-len(coreSuffix)]
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// FixedKeys are the metrics every sample carries regardless of core count.
var FixedKeys = []string{
	CPUUser, CPUSystem, CPUUserSystem, CPUIdle, CPUOther,
	NetBytesSent, NetBytesRecv, DiskReadBytes, DiskWriteBytes,
}

// CumulativeKeys are the metrics derived from monotonically increasing counters.
var CumulativeKeys = []string{NetBytesSent, NetBytesRecv, DiskReadBytes, DiskWriteBytes}

// Sample is one timestamped snapshot of all tracked metrics.
type Sample struct {
	// Time is UTC, rounded to config.TimestampResolution.
	Time time.Time

	// Values maps metric name to value.
	Values map[string]float64
}

// New creates an empty sample at ts.
func New(ts time.Time, capacity int) Sample {
	return Sample{
		Time:   ts,
		Values: make(map[string]float64, capacity),
	}
}

// TimestampMs returns the timestamp as Unix milliseconds.
func (s *Sample) TimestampMs() int64 {
	return s.Time.UnixMilli()
}

// Keys returns the metric names in lexicographic order.
func (s *Sample) Keys() []string {
	keys := make([]string, 0, len(s.Values))
	for k := range s.Values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Get returns the value of a metric.
func (s *Sample) Get(key string) (float64, bool) {
	v, ok := s.Values[key]
	return v, ok
}

// MustGet returns the value of a metric that every valid sample carries.
func (s *Sample) MustGet(key string) float64 {
	v, ok := s.Values[key]
	if !ok {
		panic(fmt.Sprintf("sample at %s has no metric %q", s.Time.Format(time.RFC3339Nano), key))
	}
	return v
}

// RoundTime normalizes a wall-clock time to the sample timestamp format.
func RoundTime(t time.Time) time.Time {
	return t.Round(config.TimestampResolution).UTC()
}
