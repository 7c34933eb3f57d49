package perftest

import (
	"context"
	"fmt"

	"github.com/xtxerr/perfstat/config"
	"github.com/xtxerr/perfstat/internal/report"
	"github.com/xtxerr/perfstat/internal/report/chart"
	"golang.org/x/sync/errgroup"
)

// Sink uploads a report to a perftest endpoint: the summary and detail
// tables first, in that order, then every chart.
type Sink struct {
	client      *Client
	concurrency int
	chart       chart.Options
}

// NewSink creates a sink uploading through client.
func NewSink(client *Client, cfg *Config) *Sink {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	n := cfg.Concurrency
	if n <= 0 {
		n = config.DefaultUploadConcurrency
	}
	return &Sink{client: client, concurrency: n, chart: chart.DefaultOptions()}
}

// Name implements report.Sink.
func (s *Sink) Name() string {
	return "perftest:" + s.client.Endpoint()
}

// Publish implements report.Sink.
func (s *Sink) Publish(ctx context.Context, r *report.Report) error {
	resultID, err := s.client.TestResultID(ctx)
	if err != nil {
		return fmt.Errorf("fetch test result: %w", err)
	}
	log.Debug("test result", "id", resultID)

	for _, a := range r.Tables() {
		if _, err := s.client.Upload(ctx, resultID, &a); err != nil {
			return err
		}
	}

	charts, err := report.RenderCharts(ctx, r, s.chart)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range charts {
		a := &charts[i]
		g.Go(func() error {
			_, err := s.client.Upload(gctx, resultID, a)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("report uploaded", "test_result", resultID, "attachments", len(charts)+2)
	return nil
}
