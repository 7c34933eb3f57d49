package counters

import (
	"context"
	"fmt"
	"testing"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/net"
	"github.com/xtxerr/perfstat/internal/errors"
)

// fakeHost is a scripted gopsutil replacement. Each call to Snapshot
// consumes one step.
type fakeHost struct {
	step  int
	total []cpu.TimesStat
	cores [][]cpu.TimesStat
	nics  [][]net.IOCountersStat
	disks []map[string]disk.IOCountersStat
	fail  map[int]error
}

func (f *fakeHost) api() hostAPI {
	return hostAPI{
		cpuTimes: func(_ context.Context, percpu bool) ([]cpu.TimesStat, error) {
			if err := f.fail[f.step]; err != nil {
				return nil, err
			}
			if percpu {
				return f.cores[f.step], nil
			}
			return []cpu.TimesStat{f.total[f.step]}, nil
		},
		netIO: func(_ context.Context, pernic bool) ([]net.IOCountersStat, error) {
			nics := f.nics[f.step]
			if pernic {
				return nics, nil
			}
			all := net.IOCountersStat{Name: "all"}
			for _, n := range nics {
				all.BytesSent += n.BytesSent
				all.BytesRecv += n.BytesRecv
			}
			return []net.IOCountersStat{all}, nil
		},
		diskIO: func(_ context.Context, _ ...string) (map[string]disk.IOCountersStat, error) {
			d := f.disks[f.step]
			f.step++
			return d, nil
		},
	}
}

func twoStepHost() *fakeHost {
	return &fakeHost{
		total: []cpu.TimesStat{
			{User: 100, System: 50, Idle: 850},
			{User: 120, System: 60, Idle: 920},
		},
		cores: [][]cpu.TimesStat{
			{{User: 50, Idle: 450}, {User: 50, System: 50, Idle: 400}},
			{{User: 70, Idle: 480}, {User: 50, System: 60, Idle: 440}},
		},
		nics: [][]net.IOCountersStat{
			{{Name: "lo", BytesSent: 10, BytesRecv: 10}, {Name: "eth0", BytesSent: 1000, BytesRecv: 2000}},
			{{Name: "lo", BytesSent: 20, BytesRecv: 20}, {Name: "eth0", BytesSent: 1500, BytesRecv: 2600}},
		},
		disks: []map[string]disk.IOCountersStat{
			{"sda": {ReadBytes: 4096, WriteBytes: 1024}, "sda1": {ReadBytes: 4096, WriteBytes: 1024}},
			{"sda": {ReadBytes: 8192, WriteBytes: 1024}, "sda1": {ReadBytes: 8192, WriteBytes: 1024}},
		},
	}
}

func TestLocalSnapshot(t *testing.T) {
	ctx := context.Background()
	host := twoStepHost()
	src, err := newLocal(ctx, "", host.api())
	if err != nil {
		t.Fatalf("newLocal: %v", err)
	}

	if _, err := src.Snapshot(ctx); err != nil {
		t.Fatalf("first Snapshot: %v", err)
	}
	snap, err := src.Snapshot(ctx)
	if err != nil {
		t.Fatalf("second Snapshot: %v", err)
	}

	// total delta = 20 + 10 + 70 = 100
	if snap.CPU.User != 20 || snap.CPU.System != 10 || snap.CPU.Idle != 70 {
		t.Errorf("CPU = %+v, want user=20 system=10 idle=70", snap.CPU)
	}
	if len(snap.PerCore) != 2 {
		t.Fatalf("PerCore len = %d, want 2", len(snap.PerCore))
	}
	// core0: busy 20 of 50, core1: busy 10 of 50
	if snap.PerCore[0] != 40 || snap.PerCore[1] != 20 {
		t.Errorf("PerCore = %v, want [40 20]", snap.PerCore)
	}

	want := Cumulative{NetBytesSent: 1520, NetBytesRecv: 2620, DiskReadBytes: 8192, DiskWriteBytes: 1024}
	if snap.Counters != want {
		t.Errorf("Counters = %+v, want %+v", snap.Counters, want)
	}
}

func TestLocalInterfaceScope(t *testing.T) {
	ctx := context.Background()
	host := twoStepHost()
	src, err := newLocal(ctx, "eth0", host.api())
	if err != nil {
		t.Fatalf("newLocal: %v", err)
	}
	snap, err := src.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Counters.NetBytesSent != 1000 || snap.Counters.NetBytesRecv != 2000 {
		t.Errorf("eth0 counters = %+v, want sent=1000 recv=2000", snap.Counters)
	}
}

func TestLocalUnknownInterface(t *testing.T) {
	host := twoStepHost()
	_, err := newLocal(context.Background(), "wlan9", host.api())
	if !errors.Is(err, errors.ErrUnknownInterface) {
		t.Fatalf("newLocal error = %v, want ErrUnknownInterface", err)
	}
	if !errors.IsConfigError(err) {
		t.Error("unknown interface should be a configuration error")
	}
}

func TestLocalFailureKeepsBaseline(t *testing.T) {
	ctx := context.Background()
	host := twoStepHost()
	src, err := newLocal(ctx, "", host.api())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := src.Snapshot(ctx); err != nil {
		t.Fatal(err)
	}

	host.fail = map[int]error{1: fmt.Errorf("proc not mounted")}
	if _, err := src.Snapshot(ctx); err == nil {
		t.Fatal("expected error")
	}
	if src.prevAll.user != 100 {
		t.Errorf("baseline changed after failure: %+v", src.prevAll)
	}

	host.fail = nil
	snap, err := src.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot after recovery: %v", err)
	}
	if snap.CPU.User != 20 {
		t.Errorf("CPU user after recovery = %v, want 20", snap.CPU.User)
	}
}

func TestLocalCoreCountChange(t *testing.T) {
	ctx := context.Background()
	host := twoStepHost()
	host.cores[1] = host.cores[1][:1]
	src, err := newLocal(ctx, "", host.api())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := src.Snapshot(ctx); err != nil {
		t.Fatal(err)
	}
	_, err = src.Snapshot(ctx)
	if !errors.Is(err, errors.ErrInvariantViolation) {
		t.Fatalf("Snapshot error = %v, want ErrInvariantViolation", err)
	}
}
