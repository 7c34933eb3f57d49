package testing

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xtxerr/perfstat/internal/counters"
)

// =============================================================================
// Scripted Counter Source
// =============================================================================

// Step is one scripted Snapshot result.
type Step struct {
	Snapshot counters.Snapshot
	Err      error
}

// ScriptedSource is a counters.Source that replays a fixed list of steps.
// Once the script is exhausted the last step repeats. It is safe for
// concurrent use.
type ScriptedSource struct {
	mu    sync.Mutex
	steps []Step
	calls int

	// Block, if set, is received from before each Snapshot returns.
	Block   chan struct{}
	blocked atomic.Int32
}

// NewScriptedSource creates a source replaying steps.
func NewScriptedSource(steps ...Step) *ScriptedSource {
	return &ScriptedSource{steps: steps}
}

// Snapshot implements counters.Source.
func (s *ScriptedSource) Snapshot(ctx context.Context) (counters.Snapshot, error) {
	if s.Block != nil {
		s.blocked.Add(1)
		select {
		case <-s.Block:
			s.blocked.Add(-1)
		case <-ctx.Done():
			s.blocked.Add(-1)
			return counters.Snapshot{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.steps) == 0 {
		return Snap(0, 0, 100, nil, counters.Cumulative{}), nil
	}
	i := min(s.calls, len(s.steps)-1)
	s.calls++
	st := s.steps[i]
	return st.Snapshot.Clone(), st.Err
}

// Append adds steps to the end of the script.
func (s *ScriptedSource) Append(steps ...Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, steps...)
}

// Calls returns the number of Snapshot calls served.
func (s *ScriptedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Blocked returns the number of Snapshot calls waiting on Block.
func (s *ScriptedSource) Blocked() int {
	return int(s.blocked.Load())
}

// Snap builds a snapshot from aggregate CPU percentages, per-core
// percentages and cumulative counters.
func Snap(user, system, idle float64, cores []float64, c counters.Cumulative) counters.Snapshot {
	return counters.Snapshot{
		CPU:      counters.CPUPercent{User: user, System: system, Idle: idle},
		PerCore:  cores,
		Counters: c,
	}
}

// Ok wraps a snapshot in a successful step.
func Ok(snap counters.Snapshot) Step {
	return Step{Snapshot: snap}
}

// Fail returns a failing step.
func Fail(err error) Step {
	return Step{Err: err}
}

// =============================================================================
// Stepping Clock
// =============================================================================

// Clock is a fake wall clock. Each call to Now returns the current time and
// then advances it by Step.
type Clock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewClock creates a clock starting at start.
func NewClock(start time.Time, step time.Duration) *Clock {
	return &Clock{now: start, step: step}
}

// Now returns the current fake time and advances the clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
