package counters

import (
	"context"
	"fmt"
	"sync"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/net"
	"github.com/xtxerr/perfstat/internal/errors"
	"github.com/xtxerr/perfstat/internal/logging"
)

var localLog = logging.Component("counters")

// hostAPI is the subset of gopsutil the local source uses.
type hostAPI struct {
	cpuTimes func(ctx context.Context, percpu bool) ([]cpu.TimesStat, error)
	netIO    func(ctx context.Context, pernic bool) ([]net.IOCountersStat, error)
	diskIO   func(ctx context.Context, names ...string) (map[string]disk.IOCountersStat, error)
}

func gopsutilAPI() hostAPI {
	return hostAPI{
		cpuTimes: cpu.TimesWithContext,
		netIO:    net.IOCountersWithContext,
		diskIO:   disk.IOCountersWithContext,
	}
}

// Local reads counters of the local host.
//
// Local is safe for concurrent use, but percentages are relative to the
// previous call from any goroutine.
type Local struct {
	api   hostAPI
	iface string

	mu        sync.Mutex
	prevAll   cpuTimes
	prevCores []cpuTimes
	primed    bool
}

// NewLocal creates a local source. If iface is non-empty, network counters
// are scoped to that interface; an unknown name is a configuration error.
func NewLocal(ctx context.Context, iface string) (*Local, error) {
	return newLocal(ctx, iface, gopsutilAPI())
}

func newLocal(ctx context.Context, iface string, api hostAPI) (*Local, error) {
	l := &Local{api: api, iface: iface}
	if iface != "" {
		if _, _, err := l.netCounters(ctx); err != nil {
			return nil, err
		}
	}
	localLog.Debug("local source ready", "iface", ifaceLabel(iface))
	return l, nil
}

// Snapshot implements Source.
func (l *Local) Snapshot(ctx context.Context) (Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	all, cores, err := l.readCPU(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	if l.primed && len(cores) != len(l.prevCores) {
		return Snapshot{}, fmt.Errorf("core count changed from %d to %d: %w",
			len(l.prevCores), len(cores), errors.ErrInvariantViolation)
	}

	netSent, netRecv, err := l.netCounters(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	diskRead, diskWrite, err := l.diskCounters(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	prevCores := l.prevCores
	if !l.primed {
		prevCores = make([]cpuTimes, len(cores))
	}

	snap := Snapshot{
		CPU:     timesPercent(l.prevAll, all),
		PerCore: make([]float64, len(cores)),
		Counters: Cumulative{
			NetBytesSent:   netSent,
			NetBytesRecv:   netRecv,
			DiskReadBytes:  diskRead,
			DiskWriteBytes: diskWrite,
		},
	}
	for i := range cores {
		snap.PerCore[i] = busyPercent(prevCores[i], cores[i])
	}

	l.prevAll = all
	l.prevCores = cores
	l.primed = true
	return snap, nil
}

func (l *Local) readCPU(ctx context.Context) (cpuTimes, []cpuTimes, error) {
	total, err := l.api.cpuTimes(ctx, false)
	if err != nil {
		return cpuTimes{}, nil, fmt.Errorf("cpu times: %w", err)
	}
	if len(total) == 0 {
		return cpuTimes{}, nil, fmt.Errorf("cpu times: empty result: %w", errors.ErrSourceUnavailable)
	}
	perCPU, err := l.api.cpuTimes(ctx, true)
	if err != nil {
		return cpuTimes{}, nil, fmt.Errorf("per-cpu times: %w", err)
	}
	cores := make([]cpuTimes, len(perCPU))
	for i, t := range perCPU {
		cores[i] = fromTimesStat(t)
	}
	return fromTimesStat(total[0]), cores, nil
}

// fromTimesStat maps gopsutil times. Guest time is already part of user
// time on Linux and is left out.
func fromTimesStat(t cpu.TimesStat) cpuTimes {
	return cpuTimes{
		user:    t.User,
		nice:    t.Nice,
		system:  t.System,
		idle:    t.Idle,
		iowait:  t.Iowait,
		irq:     t.Irq,
		softirq: t.Softirq,
		steal:   t.Steal,
	}
}

func (l *Local) netCounters(ctx context.Context) (sent, recv uint64, err error) {
	stats, err := l.api.netIO(ctx, l.iface != "")
	if err != nil {
		return 0, 0, fmt.Errorf("network counters: %w", err)
	}
	if l.iface == "" {
		for _, s := range stats {
			sent += s.BytesSent
			recv += s.BytesRecv
		}
		return sent, recv, nil
	}

	names := make([]string, 0, len(stats))
	for _, s := range stats {
		if s.Name == l.iface {
			return s.BytesSent, s.BytesRecv, nil
		}
		names = append(names, s.Name)
	}
	return 0, 0, errors.NewUnknownInterface(l.iface, names)
}

func (l *Local) diskCounters(ctx context.Context) (read, write uint64, err error) {
	stats, err := l.api.diskIO(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("disk counters: %w", err)
	}
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	for _, name := range wholeDisks(names) {
		read += stats[name].ReadBytes
		write += stats[name].WriteBytes
	}
	return read, write, nil
}

func ifaceLabel(iface string) string {
	if iface == "" {
		return "all"
	}
	return iface
}
