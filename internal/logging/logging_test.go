package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestComponentUsesLaterInit(t *testing.T) {
	log := Component("sampler")

	var buf bytes.Buffer
	InitWithHandler(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	defer Init(slog.LevelInfo, false)

	log.Debug("tick", "n", 3)

	out := buf.String()
	if !strings.Contains(out, "component=sampler") {
		t.Errorf("missing component attribute: %q", out)
	}
	if !strings.Contains(out, "n=3") {
		t.Errorf("missing record attribute: %q", out)
	}
}

func TestComponentRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWithHandler(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	defer Init(slog.LevelInfo, false)

	Component("export").Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info record should be filtered at warn level, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "warn", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "loud", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestInitFormat(t *testing.T) {
	defer Init(slog.LevelInfo, false)

	for _, f := range []string{"", "auto", "text", "json", "JSON"} {
		if err := InitFormat(slog.LevelInfo, f); err != nil {
			t.Errorf("InitFormat(%q) error = %v", f, err)
		}
	}
	if err := InitFormat(slog.LevelInfo, "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}
