package report

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/xtxerr/perfstat/config"
	"github.com/xtxerr/perfstat/internal/report/chart"
	"github.com/xtxerr/perfstat/internal/report/parquet"
	"github.com/xtxerr/perfstat/internal/report/stream"
)

// FileSink writes the artifacts of a report into a directory.
type FileSink struct {
	Dir string

	// Parquet also writes the series as details.parquet.
	Parquet bool

	// Stream also writes the series as a protobuf stream in samples.pb.
	Stream bool

	Chart chart.Options
}

// NewFileSink creates a sink writing into dir.
func NewFileSink(dir string) *FileSink {
	return &FileSink{Dir: dir, Chart: chart.DefaultOptions()}
}

// Name implements Sink.
func (s *FileSink) Name() string {
	return "file:" + s.Dir
}

// Publish implements Sink.
func (s *FileSink) Publish(ctx context.Context, r *Report) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	for _, a := range r.Tables() {
		if err := s.write(a.Name, a.Data); err != nil {
			return err
		}
	}

	charts, err := RenderCharts(ctx, r, s.Chart)
	if err != nil {
		return err
	}
	for _, a := range charts {
		if err := s.write(a.Name, a.Data); err != nil {
			return err
		}
	}

	if s.Parquet {
		path := filepath.Join(s.Dir, config.DetailParquetFile)
		rows, err := parquet.WriteSeries(path, r.Series, parquet.DefaultOptions())
		if err != nil {
			return fmt.Errorf("write %s: %w", config.DetailParquetFile, err)
		}
		s.logFile(path, "rows", rows)
	}

	if s.Stream {
		var buf bytes.Buffer
		n, err := stream.WriteSeries(&buf, r.Series)
		if err != nil {
			return fmt.Errorf("encode %s: %w", config.SampleStreamFile, err)
		}
		if err := s.write(config.SampleStreamFile, buf.Bytes(), "samples", n); err != nil {
			return err
		}
	}
	return nil
}

func (s *FileSink) write(name string, data []byte, attrs ...any) error {
	path := filepath.Join(s.Dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	s.logFile(path, attrs...)
	return nil
}

func (s *FileSink) logFile(path string, attrs ...any) {
	size := "?"
	if st, err := os.Stat(path); err == nil {
		size = humanize.Bytes(uint64(st.Size()))
	}
	log.Info("wrote file", append([]any{"path", path, "size", size}, attrs...)...)
}
