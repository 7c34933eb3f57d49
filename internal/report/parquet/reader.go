package parquet

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/xtxerr/perfstat/internal/errors"
	"github.com/xtxerr/perfstat/internal/sample"
)

// Reader reads rows from a Parquet file written by Writer.
type Reader struct {
	file   *os.File
	reader *parquet.GenericReader[Row]
}

// NewReader opens path.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return &Reader{
		file:   f,
		reader: parquet.NewGenericReader[Row](f),
	}, nil
}

// NumRows returns the total number of rows in the file.
func (r *Reader) NumRows() int64 {
	return r.reader.NumRows()
}

// ReadAll reads every row.
func (r *Reader) ReadAll() ([]Row, error) {
	rows := make([]Row, r.reader.NumRows())
	n, err := r.reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return rows[:n], nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	if err := r.reader.Close(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}

// ReadSeries rebuilds the series stored at path. Rows sharing a timestamp
// form one sample.
func ReadSeries(path string) (*sample.Series, error) {
	r, err := NewReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	series := sample.NewSeries(0)
	var cur *sample.Sample
	flush := func() error {
		if cur == nil {
			return nil
		}
		return series.Append(*cur)
	}
	for _, row := range rows {
		ts := time.UnixMicro(row.TimestampUs).UTC()
		if cur == nil || !cur.Time.Equal(ts) {
			if err := flush(); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			smp := sample.New(ts, 0)
			cur = &smp
		}
		cur.Values[row.Metric] = row.Value
	}
	if err := flush(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return series, nil
}
