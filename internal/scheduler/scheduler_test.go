package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/xtxerr/perfstat/internal/counters"
	"github.com/xtxerr/perfstat/internal/errors"
	"github.com/xtxerr/perfstat/internal/sample"
	"github.com/xtxerr/perfstat/internal/sampler"
	testutil "github.com/xtxerr/perfstat/internal/testing"
)

const testInterval = 5 * time.Millisecond

func step(cores int, sent uint64) testutil.Step {
	return testutil.Ok(testutil.Snap(10, 5, 85, make([]float64, cores), counters.Cumulative{NetBytesSent: sent}))
}

func runAsync(ctx context.Context, gt *testutil.GoroutineTest, sched *Scheduler, want error) {
	gt.Go(func() error {
		err := sched.Run(ctx)
		if want == nil && err != nil {
			return fmt.Errorf("Run: %w", err)
		}
		if want != nil && !errors.Is(err, want) {
			return fmt.Errorf("Run = %v, want %v", err, want)
		}
		return nil
	})
}

func TestSchedulerSamplesUntilStop(t *testing.T) {
	smp := sampler.New(testutil.NewScriptedSource(step(2, 0)), nil)
	sched := New(smp, &Config{Interval: testInterval})

	gt := testutil.NewGoroutineTestWithTimeout(t, 5*time.Second)
	runAsync(context.Background(), gt, sched, nil)

	if err := testutil.Eventually(2*time.Second, time.Millisecond, func() bool {
		return smp.Len() >= 3
	}); err != nil {
		t.Fatal(err)
	}
	sched.Stop()
	gt.Wait()

	if smp.State() != sampler.Stopped {
		t.Errorf("sampler state = %s, want stopped", smp.State())
	}
	ticks, failures := sched.Stats()
	if int(ticks) != smp.Len() {
		t.Errorf("ticks = %d, series length = %d", ticks, smp.Len())
	}
	if failures != 0 {
		t.Errorf("failures = %d, want 0", failures)
	}

	n := smp.Len()
	time.Sleep(3 * testInterval)
	if smp.Len() != n {
		t.Errorf("series grew after Stop: %d -> %d", n, smp.Len())
	}
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	smp := sampler.New(testutil.NewScriptedSource(step(1, 0)), nil)
	sched := New(smp, &Config{Interval: testInterval})

	ctx, cancel := context.WithCancel(context.Background())
	gt := testutil.NewGoroutineTestWithTimeout(t, 5*time.Second)
	runAsync(ctx, gt, sched, nil)

	if err := testutil.Eventually(2*time.Second, time.Millisecond, func() bool {
		return smp.Len() >= 1
	}); err != nil {
		t.Fatal(err)
	}
	cancel()
	gt.Wait()

	if smp.State() != sampler.Stopped {
		t.Errorf("sampler state = %s, want stopped", smp.State())
	}
}

func TestSchedulerSkipsFailedTicks(t *testing.T) {
	src := testutil.NewScriptedSource(
		step(1, 0),
		step(1, 100),
		testutil.Fail(fmt.Errorf("transient")),
		testutil.Fail(fmt.Errorf("transient")),
		step(1, 400),
	)
	smp := sampler.New(src, nil)
	sched := New(smp, &Config{Interval: testInterval})

	gt := testutil.NewGoroutineTestWithTimeout(t, 5*time.Second)
	runAsync(context.Background(), gt, sched, nil)

	if err := testutil.Eventually(2*time.Second, time.Millisecond, func() bool {
		return smp.Len() >= 2
	}); err != nil {
		t.Fatal(err)
	}
	sched.Stop()
	gt.Wait()

	_, failures := sched.Stats()
	if failures != 2 {
		t.Errorf("failures = %d, want 2", failures)
	}
	got, _ := smp.Series().At(1).Get(sample.NetBytesSent)
	if got != 300 {
		t.Errorf("delta after skipped ticks = %v, want 300", got)
	}
}

func TestSchedulerAbortsOnInvariantViolation(t *testing.T) {
	src := testutil.NewScriptedSource(step(2, 0), step(2, 0), step(3, 0))
	smp := sampler.New(src, nil)
	sched := New(smp, &Config{Interval: testInterval})

	err := testutil.WithTimeout(2*time.Second, func() error {
		return sched.Run(context.Background())
	})
	if !errors.Is(err, errors.ErrKeySetMismatch) {
		t.Fatalf("Run = %v, want ErrKeySetMismatch", err)
	}
	if smp.Len() != 1 {
		t.Errorf("series length = %d, want 1", smp.Len())
	}
	if smp.State() != sampler.Stopped {
		t.Errorf("sampler state = %s, want stopped", smp.State())
	}
}

func TestSchedulerStartFailure(t *testing.T) {
	smp := sampler.New(testutil.NewScriptedSource(testutil.Fail(errors.ErrSourceUnavailable)), nil)
	sched := New(smp, nil)

	err := sched.Run(context.Background())
	if !errors.Is(err, errors.ErrSourceUnavailable) {
		t.Fatalf("Run = %v, want ErrSourceUnavailable", err)
	}
}

func TestStopBeforeRun(t *testing.T) {
	src := testutil.NewScriptedSource(step(1, 0))
	smp := sampler.New(src, nil)
	sched := New(smp, &Config{Interval: testInterval})
	sched.Stop()
	sched.Stop()

	if err := sched.Run(context.Background()); err != nil {
		t.Errorf("Run after Stop = %v, want nil", err)
	}
	if src.Calls() != 0 {
		t.Errorf("snapshots = %d, want 0", src.Calls())
	}
	if smp.Len() != 0 {
		t.Errorf("series length = %d, want 0", smp.Len())
	}
}

func TestRunTwice(t *testing.T) {
	smp := sampler.New(testutil.NewScriptedSource(step(1, 0)), nil)
	if err := smp.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	sched := New(smp, &Config{Interval: testInterval})

	err := sched.Run(context.Background())
	if !errors.Is(err, errors.ErrAlreadyStarted) {
		t.Errorf("Run on a running sampler = %v, want ErrAlreadyStarted", err)
	}
}

func TestDefaultInterval(t *testing.T) {
	sched := New(sampler.New(testutil.NewScriptedSource(), nil), &Config{})
	if sched.interval != time.Second {
		t.Errorf("interval = %v, want 1s", sched.interval)
	}
}
