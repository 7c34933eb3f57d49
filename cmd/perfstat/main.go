// perfstat samples host CPU, network and disk counters once per interval
// until it is interrupted, then writes or uploads the results.
//
// Usage:
//
//	perfstat [flags] [endpoint]
//
// With a perftest endpoint (flag, config, positional argument or
// PERFSTAT_PERFTEST_ENDPOINT) the tables and charts are uploaded to the
// result service; otherwise they are written to the output directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/xtxerr/perfstat/internal/counters"
	"github.com/xtxerr/perfstat/internal/errors"
	"github.com/xtxerr/perfstat/internal/loader"
	"github.com/xtxerr/perfstat/internal/logging"
	"github.com/xtxerr/perfstat/internal/perftest"
	"github.com/xtxerr/perfstat/internal/report"
	"github.com/xtxerr/perfstat/internal/report/archive"
	"github.com/xtxerr/perfstat/internal/sampler"
	"github.com/xtxerr/perfstat/internal/scheduler"
)

// Version is set at build time via ldflags
var Version = "dev"

const defaultConfigPath = "perfstat.yaml"

// Exit codes.
const (
	exitOK = iota
	exitFailure
	exitUsage
)

func main() {
	os.Exit(run())
}

func run() int {
	// CLI flags
	var endpoint, iface string
	cfgPath := flag.String("config", defaultConfigPath, "config file path")
	flag.StringVar(&endpoint, "endpoint", "", "perftest endpoint URL (or PERFSTAT_PERFTEST_ENDPOINT env)")
	flag.StringVar(&endpoint, "e", "", "shorthand for -endpoint")
	flag.StringVar(&iface, "iface", "", "network interface to monitor, default all (or PERFSTAT_NETWORK_IFACE env)")
	flag.StringVar(&iface, "i", "", "shorthand for -iface")
	interval := flag.Duration("interval", 0, "sample interval (overrides config)")
	outDir := flag.String("out", "", "output directory (overrides config)")
	logLevel := flag.String("log-level", "", "debug, info, warn or error (overrides config)")
	flag.Parse()

	logging.InitAuto(slog.LevelInfo)
	log := logging.Component("main")

	// Load config
	cfg, err := loader.Load(*cfgPath)
	if err != nil {
		if *cfgPath == defaultConfigPath && errors.Is(err, fs.ErrNotExist) {
			cfg = loader.DefaultConfig()
		} else {
			log.Error("load config", "error", err)
			return exitUsage
		}
	}

	// CLI overrides
	if endpoint != "" {
		cfg.Perftest.Endpoint = endpoint
	}
	if iface != "" {
		cfg.Source.Iface = iface
	}
	if *interval != 0 {
		cfg.Interval = loader.Duration(*interval)
	}
	if *outDir != "" {
		cfg.Output.Dir = *outDir
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	loader.ApplyEnv(cfg)

	if cfg.Perftest.Endpoint == "" && flag.NArg() > 0 {
		cfg.Perftest.Endpoint = strings.TrimSpace(flag.Arg(0))
	}

	if err := loader.Validate(cfg); err != nil {
		log.Error("invalid configuration", "error", err)
		flag.Usage()
		return exitUsage
	}

	level, _ := logging.ParseLevel(cfg.Log.Level)
	if err := logging.InitFormat(level, cfg.Log.Format); err != nil {
		log.Error("init logging", "error", err)
		return exitUsage
	}
	log.Info("perfstat starting",
		"version", Version,
		"source", cfg.Source.Kind,
		"iface", ifaceLabel(cfg.Source.Iface),
		"interval", cfg.Interval.Duration())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// =========================================================================
	// Counter Source
	// =========================================================================

	src, host, closeSrc, err := openSource(ctx, cfg)
	if err != nil {
		log.Error("open counter source", "error", err)
		if errors.IsConfigError(err) {
			return exitUsage
		}
		return exitFailure
	}
	defer closeSrc()

	// =========================================================================
	// Sampling
	// =========================================================================

	smp := sampler.New(src, nil)
	sched := scheduler.New(smp, &scheduler.Config{Interval: cfg.Interval.Duration()})

	// The first signal stops sampling and lets the run publish its
	// results; a second one aborts publishing.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		sig, ok := <-sigCh
		if !ok {
			return
		}
		log.Info("signal received, finishing", "signal", sig.String())
		sched.Stop()

		if sig, ok = <-sigCh; ok {
			log.Warn("second signal, aborting", "signal", sig.String())
			cancel()
		}
	}()

	start := time.Now()
	if err := sched.Run(ctx); err != nil {
		log.Error("sampling failed", "error", err)
		return exitFailure
	}
	ticks, failures := sched.Stats()
	log.Info("sampling finished",
		"samples", ticks,
		"skipped", failures,
		"took", time.Since(start).Round(time.Millisecond))

	// =========================================================================
	// Report
	// =========================================================================

	rep, err := report.Build(smp.Series())
	if errors.Is(err, errors.ErrNoData) {
		log.Info("no measurement yet, nothing to publish")
		return exitOK
	}
	if err != nil {
		log.Error("build report", "error", err)
		return exitFailure
	}

	sinks, err := buildSinks(cfg, host)
	if err != nil {
		log.Error("configure output", "error", err)
		return exitFailure
	}
	if err := report.Multi(sinks...).Publish(ctx, rep); err != nil {
		log.Error("publish report", "error", err)
		return exitFailure
	}
	return exitOK
}

// openSource creates the configured counter source. host names the
// measured machine for the archive.
func openSource(ctx context.Context, cfg *loader.Config) (counters.Source, string, func(), error) {
	switch cfg.Source.Kind {
	case loader.SourceSNMP:
		s, err := counters.NewSNMP(ctx, cfg.Source.SNMP.ToSNMPConfig(), cfg.Source.Iface)
		if err != nil {
			return nil, "", nil, err
		}
		return s, cfg.Source.SNMP.Host, func() { s.Close() }, nil
	default:
		l, err := counters.NewLocal(ctx, cfg.Source.Iface)
		if err != nil {
			return nil, "", nil, err
		}
		host, err := os.Hostname()
		if err != nil {
			host = "localhost"
		}
		return l, host, func() {}, nil
	}
}

func buildSinks(cfg *loader.Config, host string) ([]report.Sink, error) {
	var sinks []report.Sink

	if cfg.Perftest.Endpoint != "" {
		clientCfg := cfg.Perftest.ToClientConfig()
		client, err := perftest.NewClient(cfg.Perftest.Endpoint, clientCfg)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, perftest.NewSink(client, clientCfg))
	} else {
		fileSink := report.NewFileSink(cfg.Output.Dir)
		fileSink.Parquet = cfg.Output.Parquet
		fileSink.Stream = cfg.Output.Stream
		sinks = append(sinks, fileSink)
	}

	if cfg.Archive.Path != "" {
		sinks = append(sinks, archive.NewSink(cfg.Archive.Path, host))
	}
	return sinks, nil
}

func ifaceLabel(iface string) string {
	if iface == "" {
		return "all"
	}
	return iface
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "perfstat %s\n\nUsage: perfstat [flags] [endpoint]\n\n", Version)
		flag.PrintDefaults()
	}
}
