package chart

import (
	"bytes"
	"testing"
	"time"

	"github.com/xtxerr/perfstat/internal/errors"
	"github.com/xtxerr/perfstat/internal/export"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func group(unit string, values ...float64) *export.ChartGroup {
	pts := make([]export.Point, len(values))
	for i, v := range values {
		pts[i] = export.Point{Time: t0.Add(time.Duration(i) * time.Second), Value: v}
	}
	return &export.ChartGroup{
		Name:   "cpu1",
		Title:  "CPU Usage",
		Unit:   unit,
		Series: []export.ChartSeries{{Label: "CPU Usage (%)", Points: pts}},
	}
}

func TestRenderSVG(t *testing.T) {
	out, err := Render(group("%", 15, 25, 35), DefaultOptions())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.HasPrefix(bytes.TrimSpace(out), []byte("<svg")) {
		t.Errorf("output is not an SVG document: %.40q", out)
	}
	if !bytes.Contains(out, []byte("CPU Usage")) {
		t.Error("title missing from SVG")
	}
}

func TestRenderFlatLine(t *testing.T) {
	if _, err := Render(group("Mbit/s", 0, 0, 0), Options{}); err != nil {
		t.Fatalf("Render of all-zero series: %v", err)
	}
}

func TestRenderNotEnoughPoints(t *testing.T) {
	for _, g := range []*export.ChartGroup{group("%"), group("%", 1)} {
		if _, err := Render(g, DefaultOptions()); !errors.Is(err, errors.ErrNotEnoughPoints) {
			t.Errorf("Render(%d points) error = %v, want ErrNotEnoughPoints", g.PointCount(), err)
		}
	}
}

func TestYRange(t *testing.T) {
	tests := []struct {
		name string
		g    *export.ChartGroup
		max  float64
	}{
		{name: "percent headroom", g: group("%", 10, 50), max: 55},
		{name: "percent capped", g: group("%", 99), max: 100},
		{name: "percent minimum", g: group("%", 1), max: 10},
		{name: "zero throughput", g: group("MB/s", 0, 0), max: 1},
		{name: "throughput", g: group("MB/s", 0, 2), max: 2.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := yRange(tt.g)
			if r.Min != 0 {
				t.Errorf("min = %v, want 0", r.Min)
			}
			if diff := r.Max - tt.max; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("max = %v, want %v", r.Max, tt.max)
			}
		})
	}
}

func TestFileName(t *testing.T) {
	if got := FileName(group("%")); got != "cpu1.svg" {
		t.Errorf("FileName = %q", got)
	}
}
