// Package counters reads raw host resource counters.
//
// A Source returns a Snapshot per call: CPU percentages measured since the
// previous call on the same Source, and the current values of the
// cumulative network and disk byte counters. Sources keep their own
// "since last call" state; there is no process-wide state.
//
// Two implementations exist:
//   - Local reads the host this process runs on (gopsutil)
//   - SNMP reads one remote host through its SNMP agent (gosnmp)
package counters

import (
	"context"
	"math"
	"regexp"
	"slices"
	"strings"
)

// Source is the contract of a counter source.
type Source interface {
	// Snapshot returns the instantaneous counter reading. CPU percentages
	// cover the time since the previous call.
	Snapshot(ctx context.Context) (Snapshot, error)
}

// CPUPercent holds aggregate CPU time shares in percent (0-100).
type CPUPercent struct {
	User   float64
	System float64
	Idle   float64
}

// Cumulative holds monotonically increasing byte counters.
type Cumulative struct {
	NetBytesSent   uint64
	NetBytesRecv   uint64
	DiskReadBytes  uint64
	DiskWriteBytes uint64
}

// Sub returns the per-interval change from prev to c.
// The counters are 64 bit: a decrease is treated as a counter reset.
func (c Cumulative) Sub(prev Cumulative) Cumulative {
	return Cumulative{
		NetBytesSent:   Delta(prev.NetBytesSent, c.NetBytesSent, Width64),
		NetBytesRecv:   Delta(prev.NetBytesRecv, c.NetBytesRecv, Width64),
		DiskReadBytes:  Delta(prev.DiskReadBytes, c.DiskReadBytes, Width64),
		DiskWriteBytes: Delta(prev.DiskWriteBytes, c.DiskWriteBytes, Width64),
	}
}

// Snapshot is one raw reading of a Source.
type Snapshot struct {
	// CPU is the aggregate over all cores.
	CPU CPUPercent

	// PerCore holds one busy percentage per core. Its length is fixed
	// after the first call.
	PerCore []float64

	// Counters are the undifferenced cumulative readings.
	Counters Cumulative
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	s.PerCore = slices.Clone(s.PerCore)
	return s
}

// =============================================================================
// Counter Arithmetic
// =============================================================================

// Width is the bit width of a hardware or protocol counter.
type Width int

const (
	Width32 Width = 32
	Width64 Width = 64
)

// Delta returns cur - prev for a monotonically increasing counter.
//
// When cur < prev a 32-bit counter is assumed to have wrapped exactly once.
// A 64-bit counter does not wrap in practice, so a decrease is a reset
// (interface re-created, agent restarted) and cur is the best estimate.
func Delta(prev, cur uint64, width Width) uint64 {
	if cur >= prev {
		return cur - prev
	}
	if width == Width32 && prev <= math.MaxUint32 {
		return cur + (math.MaxUint32 - prev) + 1
	}
	return cur
}

// =============================================================================
// CPU Time Accounting
// =============================================================================

// cpuTimes is the cumulative time spent per CPU state. Units are whatever
// the platform reports (seconds locally, ticks over SNMP); only ratios are used.
type cpuTimes struct {
	user, nice, system, idle, iowait, irq, softirq, steal float64
}

func (t cpuTimes) total() float64 {
	return t.user + t.nice + t.system + t.idle + t.iowait + t.irq + t.softirq + t.steal
}

func (t cpuTimes) busy() float64 {
	return t.total() - t.idle - t.iowait
}

// timesPercent returns the share of each state between prev and cur.
// With no elapsed CPU time the CPU is reported idle.
func timesPercent(prev, cur cpuTimes) CPUPercent {
	all := cur.total() - prev.total()
	if all <= 0 {
		return CPUPercent{Idle: 100}
	}
	scale := 100 / all
	return CPUPercent{
		User:   clampPercent((cur.user - prev.user) * scale),
		System: clampPercent((cur.system - prev.system) * scale),
		Idle:   clampPercent((cur.idle - prev.idle) * scale),
	}
}

// busyPercent returns the non-idle share between prev and cur.
func busyPercent(prev, cur cpuTimes) float64 {
	all := cur.total() - prev.total()
	if all <= 0 {
		return 0
	}
	return clampPercent((cur.busy() - prev.busy()) / all * 100)
}

func clampPercent(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// =============================================================================
// Disk Selection
// =============================================================================

var partitionSuffix = regexp.MustCompile(`^p?[0-9]+$`)

// isWholeDisk reports whether name is a physical disk rather than a
// partition of another listed device or a loop/ram device. Summing
// partitions together with their parent would count bytes twice.
func isWholeDisk(name string, all []string) bool {
	if strings.HasPrefix(name, "loop") || strings.HasPrefix(name, "ram") {
		return false
	}
	for _, parent := range all {
		if parent == name || !strings.HasPrefix(name, parent) {
			continue
		}
		if partitionSuffix.MatchString(name[len(parent):]) {
			return false
		}
	}
	return true
}

// wholeDisks filters names down to whole disks, sorted.
func wholeDisks(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if isWholeDisk(n, names) {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return out
}
