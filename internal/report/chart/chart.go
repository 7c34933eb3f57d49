// Package chart renders chart groups as SVG.
package chart

import (
	"bytes"
	"fmt"
	"math"
	"time"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/xtxerr/perfstat/config"
	"github.com/xtxerr/perfstat/internal/errors"
	"github.com/xtxerr/perfstat/internal/export"
)

// ContentType is the MIME type of rendered charts.
const ContentType = "image/svg+xml"

// Options configures rendering.
type Options struct {
	Width  int
	Height int

	// TimeFormat formats x axis labels.
	TimeFormat string
}

// DefaultOptions returns default rendering options.
func DefaultOptions() Options {
	return Options{
		Width:      config.DefaultChartWidth,
		Height:     config.DefaultChartHeight,
		TimeFormat: "15:04:05",
	}
}

// FileName returns the file name of a rendered group.
func FileName(g *export.ChartGroup) string {
	return g.Name + ".svg"
}

// Render draws g as an SVG document.
//
// A time axis needs two distinct points; groups with fewer return
// ErrNotEnoughPoints and should be skipped by the caller.
func Render(g *export.ChartGroup, opts Options) ([]byte, error) {
	if g.PointCount() < 2 {
		return nil, fmt.Errorf("chart %s: %d point(s): %w", g.Name, g.PointCount(), errors.ErrNotEnoughPoints)
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		def := DefaultOptions()
		opts.Width, opts.Height = def.Width, def.Height
	}
	if opts.TimeFormat == "" {
		opts.TimeFormat = DefaultOptions().TimeFormat
	}

	series := make([]gochart.Series, 0, len(g.Series))
	for _, s := range g.Series {
		if len(s.Points) == 0 {
			continue
		}
		ts := gochart.TimeSeries{
			Name:    s.Label,
			XValues: make([]time.Time, len(s.Points)),
			YValues: make([]float64, len(s.Points)),
		}
		for i, p := range s.Points {
			ts.XValues[i] = p.Time
			ts.YValues[i] = p.Value
		}
		series = append(series, ts)
	}

	graph := gochart.Chart{
		Title:  g.Title,
		Width:  opts.Width,
		Height: opts.Height,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: gochart.XAxis{
			Name:           "Time (UTC)",
			ValueFormatter: gochart.TimeValueFormatterWithFormat(opts.TimeFormat),
		},
		YAxis: gochart.YAxis{
			Name:  g.Unit,
			Range: yRange(g),
		},
		Series: series,
	}
	graph.Elements = []gochart.Renderable{gochart.Legend(&graph)}

	var buf bytes.Buffer
	if err := graph.Render(gochart.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render chart %s: %w", g.Name, err)
	}
	return buf.Bytes(), nil
}

// yRange starts the y axis at zero and leaves headroom above the largest
// value. Percent charts are capped at 100.
func yRange(g *export.ChartGroup) *gochart.ContinuousRange {
	hi := 0.0
	for _, s := range g.Series {
		for _, p := range s.Points {
			if !math.IsNaN(p.Value) && !math.IsInf(p.Value, 0) {
				hi = math.Max(hi, p.Value)
			}
		}
	}
	hi *= 1.1
	if g.Unit == "%" {
		hi = math.Min(math.Max(hi, 10), 100)
	}
	if hi <= 0 {
		hi = 1
	}
	return &gochart.ContinuousRange{Min: 0, Max: hi}
}
