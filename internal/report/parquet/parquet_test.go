package parquet

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xtxerr/perfstat/internal/sample"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 10_000, time.UTC)

func testSeries(t *testing.T, n int) *sample.Series {
	t.Helper()
	s := sample.NewSeries(n)
	for i := range n {
		smp := sample.New(t0.Add(time.Duration(i)*time.Second), 3)
		smp.Values[sample.CPUUser] = float64(10 + i)
		smp.Values[sample.CoreKey(0)] = 12.5
		smp.Values[sample.NetBytesSent] = float64(1000 * i)
		if err := s.Append(smp); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	return s
}

func TestRows(t *testing.T) {
	s := testSeries(t, 1)
	rows := Rows(s.At(0))
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	want := []string{sample.CoreKey(0), sample.CPUUser, sample.NetBytesSent}
	for i, r := range rows {
		if r.Metric != want[i] {
			t.Errorf("rows[%d].Metric = %q, want %q", i, r.Metric, want[i])
		}
		if r.TimestampUs != t0.UnixMicro() {
			t.Errorf("rows[%d].TimestampUs = %d", i, r.TimestampUs)
		}
	}
}

func TestWriteSeries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "details.parquet")

	n, err := WriteSeries(path, testSeries(t, 4), DefaultOptions())
	if err != nil {
		t.Fatalf("WriteSeries: %v", err)
	}
	if n != 12 {
		t.Errorf("rows written = %d, want 12", n)
	}
	stat, err := os.Stat(path)
	if err != nil {
		t.Fatalf("file should exist: %v", err)
	}
	if stat.Size() == 0 {
		t.Error("file should not be empty")
	}
}

func TestSeriesRoundTrip(t *testing.T) {
	for _, compression := range []string{"zstd", "snappy", "none"} {
		t.Run(compression, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "details.parquet")
			in := testSeries(t, 5)
			if _, err := WriteSeries(path, in, Options{Compression: compression}); err != nil {
				t.Fatalf("WriteSeries: %v", err)
			}

			out, err := ReadSeries(path)
			if err != nil {
				t.Fatalf("ReadSeries: %v", err)
			}
			if out.Len() != in.Len() {
				t.Fatalf("samples = %d, want %d", out.Len(), in.Len())
			}
			for i := range in.Len() {
				a, b := in.At(i), out.At(i)
				if !a.Time.Equal(b.Time) {
					t.Errorf("sample %d time = %s, want %s", i, b.Time, a.Time)
				}
				for k, v := range a.Values {
					if b.Values[k] != v {
						t.Errorf("sample %d %s = %v, want %v", i, k, b.Values[k], v)
					}
				}
			}
		})
	}
}

func TestWriterClosed(t *testing.T) {
	w, err := NewWriter(filepath.Join(t.TempDir(), "x.parquet"), DefaultOptions())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	smp := sample.New(t0, 0)
	if err := w.Write(&smp); err != ErrWriterClosed {
		t.Errorf("Write after Close = %v, want ErrWriterClosed", err)
	}
}
