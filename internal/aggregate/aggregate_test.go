package aggregate

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/xtxerr/perfstat/internal/errors"
	"github.com/xtxerr/perfstat/internal/sample"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func makeSeries(t *testing.T, rows ...map[string]float64) *sample.Series {
	t.Helper()
	s := sample.NewSeries(len(rows))
	for i, values := range rows {
		smp := sample.New(t0.Add(time.Duration(i)*time.Second), len(values))
		for k, v := range values {
			smp.Values[k] = v
		}
		if err := s.Append(smp); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
	return s
}

func TestStreamingAggregate(t *testing.T) {
	agg := New("net_bytes_sent")
	if !agg.IsEmpty() {
		t.Error("new aggregate should be empty")
	}
	if r := agg.Result(); r.Average != 0 || r.Count != 0 {
		t.Errorf("empty Result = %+v", r)
	}

	agg.Add(0, 1000)
	agg.Add(500, 2000)
	agg.Add(2500, 3000)

	r := agg.Result()
	if r.Metric != "net_bytes_sent" || r.Count != 3 || r.Total != 3000 || r.Average != 1000 {
		t.Errorf("Result = %+v", r)
	}
	if r.FirstTs != 1000 || r.LastTs != 3000 {
		t.Errorf("time bounds = [%d, %d], want [1000, 3000]", r.FirstTs, r.LastTs)
	}
}

func TestDetailTable(t *testing.T) {
	s := makeSeries(t,
		map[string]float64{"b": 1.5, "a": 10, "c": 0.00001},
		map[string]float64{"b": 2, "a": 20, "c": 0.25},
	)
	got, err := DetailTable(s)
	if err != nil {
		t.Fatal(err)
	}
	want := "a,b,c,\n" +
		"10.0,1.5,1e-05,\n" +
		"20.0,2.0,0.25,\n"
	if got != want {
		t.Errorf("DetailTable =\n%q\nwant\n%q", got, want)
	}
}

func TestDetailTableRoundTrip(t *testing.T) {
	rows := []map[string]float64{
		{sample.CPUUser: 12.3, sample.CPUSystem: 4.56, sample.NetBytesSent: 0, sample.CoreKey(0): 99.9},
		{sample.CPUUser: 1.0 / 3, sample.CPUSystem: 1e-7, sample.NetBytesSent: 123456789012, sample.CoreKey(0): 0.1},
	}
	s := makeSeries(t, rows...)
	text, err := DetailTable(s)
	if err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	if len(lines) != len(rows)+1 {
		t.Fatalf("got %d lines, want %d", len(lines), len(rows)+1)
	}
	header := strings.Split(strings.TrimSuffix(lines[0], ","), ",")
	for i, line := range lines[1:] {
		if !strings.HasSuffix(line, ",") {
			t.Errorf("row %d has no trailing comma: %q", i, line)
		}
		fields := strings.Split(strings.TrimSuffix(line, ","), ",")
		if len(fields) != len(header) {
			t.Fatalf("row %d has %d fields, header has %d", i, len(fields), len(header))
		}
		for j, key := range header {
			v, err := ParseValue(fields[j])
			if err != nil {
				t.Fatalf("row %d %s: %v", i, key, err)
			}
			if v != rows[i][key] {
				t.Errorf("row %d %s = %v, want %v", i, key, v, rows[i][key])
			}
		}
	}
}

func TestSummaryTable(t *testing.T) {
	s := makeSeries(t,
		map[string]float64{"net_bytes_sent": 0, "cpu_all_user_perc": 10},
		map[string]float64{"net_bytes_sent": 500, "cpu_all_user_perc": 20},
		map[string]float64{"net_bytes_sent": 2500, "cpu_all_user_perc": 30},
	)
	got, err := SummaryTable(s)
	if err != nil {
		t.Fatal(err)
	}
	want := "stat,total,count,average\n" +
		"cpu_all_user_perc,60.0,3,20.0\n" +
		"net_bytes_sent,3000.0,3,1000.0\n"
	if got != want {
		t.Errorf("SummaryTable =\n%q\nwant\n%q", got, want)
	}
}

func TestSummaryMatchesSum(t *testing.T) {
	values := []float64{0.1, 0.2, 0.3, 7.25}
	rows := make([]map[string]float64, len(values))
	var total float64
	for i, v := range values {
		rows[i] = map[string]float64{"x": v}
		total += v
	}
	summary, err := Summary(makeSeries(t, rows...))
	if err != nil {
		t.Fatal(err)
	}
	if len(summary) != 1 {
		t.Fatalf("got %d rows, want 1", len(summary))
	}
	r := summary[0]
	if r.Total != total || r.Count != int64(len(values)) {
		t.Errorf("row = %+v, want total %v count %d", r, total, len(values))
	}
	if math.Abs(r.Average-total/float64(len(values))) > 1e-12 {
		t.Errorf("average = %v, want %v", r.Average, total/float64(len(values)))
	}
}

func TestEmptySeries(t *testing.T) {
	for name, fn := range map[string]func(*sample.Series) (string, error){
		"detail":  DetailTable,
		"summary": SummaryTable,
	} {
		t.Run(name, func(t *testing.T) {
			for _, s := range []*sample.Series{nil, sample.NewSeries(0)} {
				out, err := fn(s)
				if !errors.Is(err, errors.ErrNoData) {
					t.Errorf("error = %v, want ErrNoData", err)
				}
				if out != "" {
					t.Errorf("output = %q, want empty", out)
				}
			}
		})
	}
}

func TestFormatValue(t *testing.T) {
	a, b := 0.1, 0.2
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.0"},
		{math.Copysign(0, -1), "-0.0"},
		{1, "1.0"},
		{-5, "-5.0"},
		{12.5, "12.5"},
		{a + b, "0.30000000000000004"},
		{1e-4, "0.0001"},
		{1e-5, "1e-05"},
		{1.5e-7, "1.5e-07"},
		{123456789012, "123456789012.0"},
		{1e16, "1e+16"},
		{2.5e20, "2.5e+20"},
		{math.NaN(), "nan"},
		{math.Inf(1), "inf"},
		{math.Inf(-1), "-inf"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.in); got != tt.want {
			t.Errorf("FormatValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
