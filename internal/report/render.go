package report

import (
	"context"
	"fmt"

	"github.com/xtxerr/perfstat/internal/errors"
	"github.com/xtxerr/perfstat/internal/report/chart"
	"golang.org/x/sync/errgroup"
)

// RenderCharts renders every chart group of r concurrently. Groups with
// too few points are skipped with a warning. The result keeps group order.
func RenderCharts(ctx context.Context, r *Report, opts chart.Options) ([]Artifact, error) {
	out := make([]*Artifact, len(r.Charts))

	g, ctx := errgroup.WithContext(ctx)
	for i := range r.Charts {
		group := &r.Charts[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := chart.Render(group, opts)
			if errors.Is(err, errors.ErrNotEnoughPoints) {
				log.Warn("chart skipped", "group", group.Name, "points", group.PointCount())
				return nil
			}
			if err != nil {
				return err
			}
			out[i] = &Artifact{
				Name:        chart.FileName(group),
				Kind:        KindGraph,
				Subtype:     chart.FileName(group),
				Description: group.Title,
				ContentType: chart.ContentType,
				Data:        data,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("render charts: %w", err)
	}

	arts := make([]Artifact, 0, len(out))
	for _, a := range out {
		if a != nil {
			arts = append(arts, *a)
		}
	}
	return arts, nil
}
