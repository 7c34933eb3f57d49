// Package scheduler drives a Sampler at a fixed interval.
//
// The scheduler is the clock trigger of a run: it starts the sampler, calls
// Add on every tick of a time.Ticker and stops when the context is
// cancelled or Stop is called. Snapshot failures are logged and the loop
// keeps going; invariant violations end the run.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xtxerr/perfstat/config"
	"github.com/xtxerr/perfstat/internal/errors"
	"github.com/xtxerr/perfstat/internal/logging"
	"github.com/xtxerr/perfstat/internal/sampler"
)

var log = logging.Component("scheduler")

// =============================================================================
// Scheduler Configuration
// =============================================================================

// Config holds scheduler configuration.
type Config struct {
	// Interval is the time between two samples.
	Interval time.Duration
}

// DefaultConfig returns default scheduler configuration.
func DefaultConfig() *Config {
	return &Config{
		Interval: config.DefaultSampleInterval,
	}
}

// =============================================================================
// Scheduler
// =============================================================================

// Scheduler calls Sampler.Add once per interval.
//
// Run must be called at most once. Stop is safe to call from any goroutine,
// any number of times.
type Scheduler struct {
	sampler  *sampler.Sampler
	interval time.Duration

	shutdown chan struct{}
	stopOnce sync.Once

	// Metrics
	ticks    atomic.Int64
	failures atomic.Int64
}

// New creates a scheduler for s.
func New(s *sampler.Sampler, cfg *Config) *Scheduler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = config.DefaultSampleInterval
	}
	return &Scheduler{
		sampler:  s,
		interval: interval,
		shutdown: make(chan struct{}),
	}
}

// Run starts the sampler and samples until ctx is done, Stop is called or
// an invariant violation occurs. The sampler is always finished when Run
// returns. A normal stop returns nil, including a Stop that lands before
// the sampler started.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.sampler.Finish()

	if err := s.sampler.Start(ctx); err != nil {
		if errors.IsStateError(err) && s.sampler.State() == sampler.Stopped {
			log.Info("stopped before first sample")
			return nil
		}
		return err
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info("sampling", "interval", s.interval)

	for {
		select {
		case <-ticker.C:
			done, err := s.tick(ctx)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		case <-s.shutdown:
			return nil
		case <-ctx.Done():
			log.Debug("context done", "reason", ctx.Err())
			return nil
		}
	}
}

// tick takes one sample. It reports done once the sampler no longer runs.
func (s *Scheduler) tick(ctx context.Context) (bool, error) {
	err := s.sampler.Add(ctx)
	switch {
	case err == nil:
		s.ticks.Add(1)
		return false, nil
	case errors.Is(err, errors.ErrNotRunning):
		return true, nil
	case errors.IsInvariantViolation(err):
		log.Error("sampling aborted", "error", err)
		return true, err
	default:
		s.failures.Add(1)
		log.Warn("sample skipped", "error", err)
		return false, nil
	}
}

// Stop finishes the sampler and wakes the loop. After Stop returns no
// further sample is appended.
func (s *Scheduler) Stop() {
	s.sampler.Finish()
	s.stopOnce.Do(func() {
		close(s.shutdown)
	})
}

// Stats returns the number of samples taken and ticks skipped on errors.
func (s *Scheduler) Stats() (ticks, failures int64) {
	return s.ticks.Load(), s.failures.Load()
}
