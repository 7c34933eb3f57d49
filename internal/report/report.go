// Package report assembles the artifacts of a finished run and hands them
// to one or more sinks.
//
// A Report is built once, after the sampler is stopped:
//
//	rep, err := report.Build(smp.Series())
//	if errors.Is(err, errors.ErrNoData) {
//		// nothing measured, nothing to publish
//	}
//	err = report.Multi(sinks...).Publish(ctx, rep)
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/xtxerr/perfstat/config"
	"github.com/xtxerr/perfstat/internal/aggregate"
	"github.com/xtxerr/perfstat/internal/errors"
	"github.com/xtxerr/perfstat/internal/export"
	"github.com/xtxerr/perfstat/internal/logging"
	"github.com/xtxerr/perfstat/internal/sample"
)

var log = logging.Component("report")

// Artifact kinds used by the result service.
const (
	KindCSV   = "CSV"
	KindGraph = "GRAPH"

	ContentTypeCSV = "text/csv"
)

// =============================================================================
// Report
// =============================================================================

// Report holds everything derived from one series.
type Report struct {
	Series *sample.Series

	// Detail is the per-sample CSV table.
	Detail string

	// Summary is the per-metric total/count/average CSV table.
	Summary     string
	SummaryRows []aggregate.SummaryRow

	Charts []export.ChartGroup

	Start time.Time
	End   time.Time
}

// Build derives tables and chart groups from series. It returns ErrNoData
// for an empty series.
func Build(series *sample.Series) (*Report, error) {
	if series.IsEmpty() {
		return nil, fmt.Errorf("build report: %w", errors.ErrNoData)
	}

	detail, err := aggregate.DetailTable(series)
	if err != nil {
		return nil, fmt.Errorf("detail table: %w", err)
	}
	rows, err := aggregate.Summary(series)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	summary, err := aggregate.SummaryTable(series)
	if err != nil {
		return nil, fmt.Errorf("summary table: %w", err)
	}
	charts, err := export.Charts(series)
	if err != nil {
		return nil, fmt.Errorf("charts: %w", err)
	}

	return &Report{
		Series:      series,
		Detail:      detail,
		Summary:     summary,
		SummaryRows: rows,
		Charts:      charts,
		Start:       series.At(0).Time,
		End:         series.Last().Time,
	}, nil
}

// Duration returns the time between the first and last sample.
func (r *Report) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// =============================================================================
// Artifacts
// =============================================================================

// Artifact is one named output file.
type Artifact struct {
	Name        string
	Kind        string
	Subtype     string
	Description string
	ContentType string
	Data        []byte
}

// Tables returns the summary and detail CSV artifacts, in upload order.
func (r *Report) Tables() []Artifact {
	return []Artifact{
		{
			Name:        config.SummaryCSVFile,
			Kind:        KindCSV,
			Subtype:     "summary",
			Description: "Summary of all measurements",
			ContentType: ContentTypeCSV,
			Data:        []byte(r.Summary),
		},
		{
			Name:        config.DetailCSVFile,
			Kind:        KindCSV,
			Subtype:     "detail",
			Description: "Detailed measurements",
			ContentType: ContentTypeCSV,
			Data:        []byte(r.Detail),
		},
	}
}

// =============================================================================
// Sinks
// =============================================================================

// Sink publishes a report somewhere.
type Sink interface {
	Name() string
	Publish(ctx context.Context, r *Report) error
}

type multi []Sink

// Multi returns a sink that publishes to every sink in order. A failing
// sink does not stop the others; all errors are joined.
func Multi(sinks ...Sink) Sink {
	return multi(sinks)
}

func (m multi) Name() string {
	return fmt.Sprintf("multi(%d)", len(m))
}

func (m multi) Publish(ctx context.Context, r *Report) error {
	var errs []error
	for _, s := range m {
		start := time.Now()
		if err := s.Publish(ctx, r); err != nil {
			log.Error("publish failed", "sink", s.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		log.Info("published", "sink", s.Name(), "took", time.Since(start).Round(time.Millisecond))
	}
	return errors.Join(errs...)
}
