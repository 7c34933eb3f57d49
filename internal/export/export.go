// Package export turns a series into chart groups.
//
// Each group is one chart: a name used for its file, a title, the unit of
// its y axis and one or more labeled series of (time, value) points. CPU
// groups have one point per sample. Throughput groups divide each byte
// delta by the seconds elapsed since the previous sample and therefore
// have no point for the first sample.
package export

import (
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/xtxerr/perfstat/internal/errors"
	"github.com/xtxerr/perfstat/internal/sample"
)

// Group names, also used as chart file names.
const (
	GroupCPU      = "cpu1"
	GroupCPUSplit = "cpu3"
	GroupCPUs     = "cpus"
	GroupNet      = "net"
	GroupDisk     = "disk"
)

// Conversion factors from bytes per second.
const (
	bytesToMbit = 8.0 / 1_000_000
	bytesToMB   = 1.0 / 1_048_576
)

// Point is one chart data point.
type Point struct {
	Time  time.Time
	Value float64
}

// ChartSeries is one labeled line of a chart.
type ChartSeries struct {
	Label  string
	Points []Point
}

// ChartGroup is one chart.
type ChartGroup struct {
	Name   string
	Title  string
	Unit   string
	Series []ChartSeries
}

// PointCount returns the largest number of points of any series.
func (g *ChartGroup) PointCount() int {
	n := 0
	for _, s := range g.Series {
		n = max(n, len(s.Points))
	}
	return n
}

// Charts builds all chart groups of series, in a fixed order:
// cpu1, cpu3, cpus, net, disk.
func Charts(series *sample.Series) ([]ChartGroup, error) {
	if series.IsEmpty() {
		return nil, fmt.Errorf("charts: %w", errors.ErrNoData)
	}
	cores := series.CoreCount()
	if missing := lo.Without(chartKeys(cores), series.Keys()...); len(missing) > 0 {
		return nil, fmt.Errorf("charts: series has no %v: %w", missing, errors.ErrInvariantViolation)
	}

	samples := series.Samples()
	groups := []ChartGroup{
		{
			Name:  GroupCPU,
			Title: "CPU Usage",
			Unit:  "%",
			Series: []ChartSeries{
				gauge("CPU Usage (%)", samples, sample.CPUUserSystem),
			},
		},
		{
			Name:  GroupCPUSplit,
			Title: "CPU Usage by Mode",
			Unit:  "%",
			Series: []ChartSeries{
				gauge("CPU User (%)", samples, sample.CPUUser),
				gauge("CPU System (%)", samples, sample.CPUSystem),
				gauge("CPU Other (%)", samples, sample.CPUOther),
			},
		},
		coreGroup(samples, cores),
		{
			Name:  GroupNet,
			Title: "Network Throughput",
			Unit:  "Mbit/s",
			Series: []ChartSeries{
				rate("Network Sent (Mbit/s)", samples, sample.NetBytesSent, bytesToMbit),
				rate("Network Received (Mbit/s)", samples, sample.NetBytesRecv, bytesToMbit),
			},
		},
		{
			Name:  GroupDisk,
			Title: "Disk Throughput",
			Unit:  "MB/s",
			Series: []ChartSeries{
				rate("Disk Read (MB/s)", samples, sample.DiskReadBytes, bytesToMB),
				rate("Disk Write (MB/s)", samples, sample.DiskWriteBytes, bytesToMB),
			},
		},
	}
	return groups, nil
}

// chartKeys returns the metrics Charts reads. Core keys must be numbered
// without gaps.
func chartKeys(cores int) []string {
	keys := slices.Clone(sample.FixedKeys)
	for n := 0; n < cores; n++ {
		keys = append(keys, sample.CoreKey(n))
	}
	return keys
}

func coreGroup(samples []sample.Sample, cores int) ChartGroup {
	g := ChartGroup{
		Name:   GroupCPUs,
		Title:  "CPU Usage per Core",
		Unit:   "%",
		Series: make([]ChartSeries, 0, cores),
	}
	for n := 0; n < cores; n++ {
		label := fmt.Sprintf("CPU%d Usage (%%)", n)
		g.Series = append(g.Series, gauge(label, samples, sample.CoreKey(n)))
	}
	return g
}

// gauge plots the stored value of key for every sample.
func gauge(label string, samples []sample.Sample, key string) ChartSeries {
	cs := ChartSeries{Label: label, Points: make([]Point, 0, len(samples))}
	for i := range samples {
		cs.Points = append(cs.Points, Point{
			Time:  samples[i].Time,
			Value: samples[i].MustGet(key),
		})
	}
	return cs
}

// rate plots the per-second change of a cumulative metric, scaled by factor.
// The first sample has no preceding interval and yields no point.
func rate(label string, samples []sample.Sample, key string, factor float64) ChartSeries {
	cs := ChartSeries{Label: label, Points: make([]Point, 0, max(len(samples)-1, 0))}
	for i := 1; i < len(samples); i++ {
		elapsed := samples[i].Time.Sub(samples[i-1].Time).Seconds()
		if elapsed <= 0 {
			continue
		}
		cs.Points = append(cs.Points, Point{
			Time:  samples[i].Time,
			Value: samples[i].MustGet(key) / elapsed * factor,
		})
	}
	return cs
}
