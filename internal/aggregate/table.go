package aggregate

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xtxerr/perfstat/internal/errors"
	"github.com/xtxerr/perfstat/internal/sample"
)

// SummaryHeader is the first line of the summary table.
const SummaryHeader = "stat,total,count,average"

// SummaryRow holds the aggregate statistics of one metric.
type SummaryRow struct {
	Metric  string
	Total   float64
	Count   int64
	Average float64

	// FirstTs and LastTs bound the samples that contributed, in Unix ms.
	FirstTs int64
	LastTs  int64
}

// =============================================================================
// Detail Table
// =============================================================================

// DetailTable renders every sample of series as CSV. The header lists the
// metric names in lexicographic order and each row holds the values in the
// same order. Every field, the last one included, is followed by a comma.
func DetailTable(series *sample.Series) (string, error) {
	if series.IsEmpty() {
		return "", fmt.Errorf("detail table: %w", errors.ErrNoData)
	}
	keys := series.Keys()

	var b strings.Builder
	b.Grow((series.Len() + 1) * len(keys) * 12)

	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte(',')
	}
	b.WriteByte('\n')

	for i, smp := range series.Samples() {
		for _, k := range keys {
			v, ok := smp.Values[k]
			if !ok {
				return "", fmt.Errorf("detail table: sample %d has no %q: %w", i, k, errors.ErrKeySetMismatch)
			}
			b.WriteString(FormatValue(v))
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// =============================================================================
// Summary Table
// =============================================================================

// Summary aggregates every metric of series, in lexicographic order.
func Summary(series *sample.Series) ([]SummaryRow, error) {
	if series.IsEmpty() {
		return nil, fmt.Errorf("summary: %w", errors.ErrNoData)
	}
	keys := series.Keys()

	aggs := make(map[string]*StreamingAggregate, len(keys))
	for _, k := range keys {
		aggs[k] = New(k)
	}
	for _, smp := range series.Samples() {
		ts := smp.TimestampMs()
		for k, v := range smp.Values {
			if agg, ok := aggs[k]; ok {
				agg.Add(v, ts)
			}
		}
	}

	rows := make([]SummaryRow, 0, len(keys))
	for _, k := range keys {
		agg := aggs[k]
		if agg.IsEmpty() {
			return nil, fmt.Errorf("summary: metric %q has no values: %w", k, errors.ErrInvariantViolation)
		}
		rows = append(rows, agg.Result())
	}
	return rows, nil
}

// SummaryTable renders Summary as CSV with the header
// "stat,total,count,average".
func SummaryTable(series *sample.Series) (string, error) {
	rows, err := Summary(series)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(SummaryHeader)
	b.WriteByte('\n')
	for _, r := range rows {
		b.WriteString(r.Metric)
		b.WriteByte(',')
		b.WriteString(FormatValue(r.Total))
		b.WriteByte(',')
		b.WriteString(strconv.FormatInt(r.Count, 10))
		b.WriteByte(',')
		b.WriteString(FormatValue(r.Average))
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// =============================================================================
// Number Formatting
// =============================================================================

// FormatValue formats v as the shortest decimal that parses back to v.
// Integral values keep a ".0" suffix and magnitudes outside [1e-4, 1e16)
// use exponent notation, so existing consumers of the CSV files see the
// same text as before.
func FormatValue(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}

	abs := math.Abs(v)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

// ParseValue parses a value written by FormatValue.
func ParseValue(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}
