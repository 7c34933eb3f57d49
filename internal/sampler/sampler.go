// Package sampler turns counter snapshots into a series of samples.
//
// A Sampler moves through Idle → Running → Stopped:
//
//   - Start primes the counter source with a throwaway snapshot
//   - Add appends one sample per call while running
//   - Finish stops the sampler; it is idempotent and may be called from
//     any goroutine, including concurrently with Add
//
// Cumulative counters (network and disk bytes) are stored as the change
// since the previous Add. The first Add after Start has no reference point
// and stores zero for them, so a zero in the first sample does not mean the
// host was idle.
package sampler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xtxerr/perfstat/config"
	"github.com/xtxerr/perfstat/internal/counters"
	"github.com/xtxerr/perfstat/internal/errors"
	"github.com/xtxerr/perfstat/internal/logging"
	"github.com/xtxerr/perfstat/internal/sample"
)

var log = logging.Component("sampler")

// =============================================================================
// State
// =============================================================================

// State is the lifecycle state of a Sampler.
type State int

const (
	Idle State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds sampler configuration.
type Config struct {
	// Now returns the wall-clock time of a sample. Defaults to time.Now.
	Now func() time.Time

	// Capacity preallocates room for this many samples.
	Capacity int
}

// DefaultConfig returns default sampler configuration.
func DefaultConfig() *Config {
	return &Config{
		Now:      time.Now,
		Capacity: 3600,
	}
}

// =============================================================================
// Sampler
// =============================================================================

// Sampler owns the series of one run.
//
// Sampler is safe for concurrent use. The mutex is held for the whole of
// Add so a concurrent Finish waits for an in-flight sample to complete.
type Sampler struct {
	source counters.Source
	now    func() time.Time

	mu     sync.Mutex
	state  State
	series *sample.Series

	// baseline is the cumulative reading taken by the last successful Add.
	baseline counters.Cumulative
	primed   bool
}

// New creates an idle sampler reading from source.
func New(source counters.Source, cfg *Config) *Sampler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Sampler{
		source: source,
		now:    now,
		series: sample.NewSeries(cfg.Capacity),
	}
}

// Start moves the sampler from Idle to Running.
//
// It takes one snapshot and discards it: CPU percentages cover the time
// since the previous snapshot, so the first reading is only meaningful one
// interval later. If that snapshot fails the sampler stays Idle.
func (s *Sampler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Idle {
		return fmt.Errorf("start in state %s: %w", s.state, errors.ErrAlreadyStarted)
	}
	if _, err := s.source.Snapshot(ctx); err != nil {
		return errors.Wrap(err, "prime counter source")
	}
	s.state = Running

	log.Info("sampler started")
	return nil
}

// Add takes a snapshot and appends one sample.
//
// It returns ErrNotRunning unless the sampler is Running. On any other
// error nothing is appended and the cumulative baseline is unchanged, so
// the next Add computes its deltas against the last good reading.
func (s *Sampler) Add(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Running {
		return fmt.Errorf("add in state %s: %w", s.state, errors.ErrNotRunning)
	}

	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return errors.Wrap(err, "snapshot")
	}

	var delta counters.Cumulative
	if s.primed {
		delta = snap.Counters.Sub(s.baseline)
	}

	smp := s.build(s.nextTime(), snap, delta)
	if err := s.series.Append(smp); err != nil {
		return errors.Wrapf(err, "sample %d", s.series.Len()+1)
	}

	s.baseline = snap.Counters
	s.primed = true

	log.Debug("sample added",
		"n", s.series.Len(),
		"cpu_user", snap.CPU.User,
		"cpu_system", snap.CPU.System)
	return nil
}

// Finish stops the sampler. Once Finish returns no further sample is
// appended. Calling Finish on an idle sampler also stops it.
func (s *Sampler) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Stopped {
		return
	}
	prev := s.state
	s.state = Stopped

	log.Info("sampler stopped", "from", prev.String(), "samples", s.series.Len())
}

// State returns the current state.
func (s *Sampler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Len returns the number of samples collected so far.
func (s *Sampler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.series.Len()
}

// Series returns the collected series. It must not be read while the
// sampler is Running; after Finish it is frozen.
func (s *Sampler) Series() *sample.Series {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.series
}

// nextTime returns the rounded timestamp for a new sample, bumped one
// resolution step past the previous sample if the clock did not advance.
func (s *Sampler) nextTime() time.Time {
	ts := sample.RoundTime(s.now())
	if last := s.series.Last(); last != nil && !ts.After(last.Time) {
		ts = last.Time.Add(config.TimestampResolution)
	}
	return ts
}

func (s *Sampler) build(ts time.Time, snap counters.Snapshot, delta counters.Cumulative) sample.Sample {
	cpu := snap.CPU
	smp := sample.New(ts, 9+len(snap.PerCore))

	smp.Values[sample.CPUUser] = cpu.User
	smp.Values[sample.CPUSystem] = cpu.System
	smp.Values[sample.CPUUserSystem] = cpu.User + cpu.System
	smp.Values[sample.CPUIdle] = cpu.Idle
	smp.Values[sample.CPUOther] = 100 - cpu.User - cpu.System - cpu.Idle
	for i, pct := range snap.PerCore {
		smp.Values[sample.CoreKey(i)] = pct
	}

	smp.Values[sample.NetBytesSent] = float64(delta.NetBytesSent)
	smp.Values[sample.NetBytesRecv] = float64(delta.NetBytesRecv)
	smp.Values[sample.DiskReadBytes] = float64(delta.DiskReadBytes)
	smp.Values[sample.DiskWriteBytes] = float64(delta.DiskWriteBytes)
	return smp
}
