// Package parquet stores a sample series as a long-format Parquet table:
// one row per (sample, metric).
package parquet

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
	"github.com/xtxerr/perfstat/internal/sample"
)

// Options configures the Parquet writer.
type Options struct {
	// Compression is one of "zstd", "snappy", "gzip", "lz4" or "none".
	Compression string
}

// DefaultOptions returns default Parquet options.
func DefaultOptions() Options {
	return Options{Compression: "zstd"}
}

func codec(name string) compress.Codec {
	switch name {
	case "snappy":
		return &parquet.Snappy
	case "gzip":
		return &parquet.Gzip
	case "lz4":
		return &parquet.Lz4Raw
	case "none":
		return &parquet.Uncompressed
	default:
		return &parquet.Zstd
	}
}

// Row is one metric value of one sample.
type Row struct {
	// TimestampUs is Unix microseconds; sample timestamps have 10µs resolution.
	TimestampUs int64   `parquet:"timestamp_us"`
	Metric      string  `parquet:"metric,dict,zstd"`
	Value       float64 `parquet:"value"`
}

// Rows flattens smp into rows in metric name order.
func Rows(smp *sample.Sample) []Row {
	keys := smp.Keys()
	rows := make([]Row, len(keys))
	ts := smp.Time.UnixMicro()
	for i, k := range keys {
		rows[i] = Row{TimestampUs: ts, Metric: k, Value: smp.Values[k]}
	}
	return rows
}

// Writer writes samples to a Parquet file.
type Writer struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	writer   *parquet.GenericWriter[Row]
	rowCount int64
	closed   bool
}

// NewWriter creates path and its parent directory.
func NewWriter(path string, opts Options) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}

	return &Writer{
		path:   path,
		file:   f,
		writer: parquet.NewGenericWriter[Row](f, parquet.Compression(codec(opts.Compression))),
	}, nil
}

// Write appends the rows of one sample.
func (w *Writer) Write(smp *sample.Sample) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}

	n, err := w.writer.Write(Rows(smp))
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	w.rowCount += int64(n)
	return nil
}

// Close flushes the footer and closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("close writer: %w", err)
	}
	return w.file.Close()
}

// RowCount returns the number of rows written.
func (w *Writer) RowCount() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rowCount
}

// Path returns the file path.
func (w *Writer) Path() string {
	return w.path
}

// WriteSeries writes every sample of s to path.
func WriteSeries(path string, s *sample.Series, opts Options) (int64, error) {
	w, err := NewWriter(path, opts)
	if err != nil {
		return 0, err
	}
	for i := range s.Len() {
		if err := w.Write(s.At(i)); err != nil {
			w.Close()
			return 0, err
		}
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return w.RowCount(), nil
}

// ErrWriterClosed is returned when writing to a closed writer.
var ErrWriterClosed = fmt.Errorf("parquet writer is closed")
