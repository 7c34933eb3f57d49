package sample

import (
	"fmt"
	"slices"

	"github.com/samber/lo"
	"github.com/xtxerr/perfstat/internal/errors"
)

// Series is the ordered list of samples of one run.
//
// The key set is fixed by the first appended sample; every later sample
// must carry exactly the same keys. Timestamps are strictly increasing.
// Series is not safe for concurrent use; the Sampler owns it while running.
type Series struct {
	keys    []string
	samples []Sample
}

// NewSeries creates an empty series with room for capacity samples.
func NewSeries(capacity int) *Series {
	return &Series{
		samples: make([]Sample, 0, capacity),
	}
}

// Len returns the number of samples.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.samples)
}

// IsEmpty reports whether the series has no samples.
func (s *Series) IsEmpty() bool {
	return s.Len() == 0
}

// Keys returns the sorted key set shared by all samples.
func (s *Series) Keys() []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s.keys)
}

// At returns the i-th sample.
func (s *Series) At(i int) *Sample {
	return &s.samples[i]
}

// Samples returns the samples in chronological order.
// Callers must not modify the returned slice.
func (s *Series) Samples() []Sample {
	if s == nil {
		return nil
	}
	return s.samples
}

// Last returns the most recent sample, or nil.
func (s *Series) Last() *Sample {
	if s.Len() == 0 {
		return nil
	}
	return &s.samples[len(s.samples)-1]
}

// CheckKeys verifies that smp carries exactly the series key set.
// An empty series accepts any non-empty key set.
func (s *Series) CheckKeys(smp *Sample) error {
	if len(smp.Values) == 0 {
		return fmt.Errorf("sample has no metrics: %w", errors.ErrKeySetMismatch)
	}
	if len(s.keys) == 0 {
		return nil
	}
	keys := smp.Keys()
	if slices.Equal(keys, s.keys) {
		return nil
	}
	missing, extra := lo.Difference(s.keys, keys)
	return fmt.Errorf("missing %v, unexpected %v: %w", missing, extra, errors.ErrKeySetMismatch)
}

// Append adds a sample after validating its key set and timestamp.
// On error the series is unchanged.
func (s *Series) Append(smp Sample) error {
	if err := s.CheckKeys(&smp); err != nil {
		return err
	}
	if last := s.Last(); last != nil && !smp.Time.After(last.Time) {
		return fmt.Errorf("timestamp %s not after %s: %w",
			smp.Time, last.Time, errors.ErrInvariantViolation)
	}
	if len(s.keys) == 0 {
		s.keys = smp.Keys()
	}
	s.samples = append(s.samples, smp)
	return nil
}

// CoreCount returns the number of cpu_<n>_perc keys in the key set.
func (s *Series) CoreCount() int {
	n := 0
	for _, k := range s.keys {
		if _, ok := ParseCoreKey(k); ok {
			n++
		}
	}
	return n
}
