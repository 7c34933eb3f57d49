package main

import (
	"strings"
	"testing"

	"github.com/xtxerr/perfstat/internal/loader"
)

func TestBuildSinks(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		archive  string
		want     []string
	}{
		{name: "files", want: []string{"file:"}},
		{name: "upload", endpoint: "https://perf.example.org/perftest/3", want: []string{"perftest:"}},
		{name: "files and archive", archive: "runs.duckdb", want: []string{"file:", "archive:"}},
		{name: "upload and archive", endpoint: "https://perf.example.org/perftest/3", archive: "runs.duckdb",
			want: []string{"perftest:", "archive:"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loader.DefaultConfig()
			cfg.Perftest.Endpoint = tt.endpoint
			cfg.Archive.Path = tt.archive

			sinks, err := buildSinks(cfg, "host")
			if err != nil {
				t.Fatalf("buildSinks: %v", err)
			}
			if len(sinks) != len(tt.want) {
				t.Fatalf("sinks = %d, want %d", len(sinks), len(tt.want))
			}
			for i, s := range sinks {
				if !strings.HasPrefix(s.Name(), tt.want[i]) {
					t.Errorf("sink %d = %s, want prefix %s", i, s.Name(), tt.want[i])
				}
			}
		})
	}
}

func TestBuildSinksBadEndpoint(t *testing.T) {
	cfg := loader.DefaultConfig()
	cfg.Perftest.Endpoint = "https://perf.example.org/perftest/"
	if _, err := buildSinks(cfg, "host"); err == nil {
		t.Error("buildSinks should reject the endpoint")
	}
}

func TestIfaceLabel(t *testing.T) {
	if ifaceLabel("") != "all" || ifaceLabel("eth0") != "eth0" {
		t.Error("ifaceLabel")
	}
}
