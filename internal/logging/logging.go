// Package logging provides structured logging for perfstat.
//
// This package wraps the standard library's log/slog package to provide
// consistent logging across all components. It supports both text and JSON
// output formats, configurable log levels, and component-based loggers.
//
// Usage:
//
//	// Initialize at startup
//	logging.InitAuto(slog.LevelInfo)    // text on a terminal, JSON otherwise
//	logging.Init(slog.LevelDebug, true) // force JSON
//
//	// Get a component logger
//	log := logging.Component("sampler")
//	log.Info("sampler started", "source", "local")
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Logger is the global logger instance.
var Logger *slog.Logger

var (
	mu     sync.RWMutex
	output io.Writer = os.Stdout
)

// Init initializes the global logger with the specified level and format.
// If jsonFormat is true, logs are output as JSON; otherwise, human-readable text.
func Init(level slog.Level, jsonFormat bool) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	if jsonFormat {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	InitWithHandler(handler)
}

// InitAuto picks text output when stdout is a terminal and JSON otherwise.
func InitAuto(level slog.Level) {
	Init(level, !term.IsTerminal(int(os.Stdout.Fd())))
}

// InitFormat initializes the logger from a format name: "auto", "text" or "json".
func InitFormat(level slog.Level, format string) error {
	switch strings.ToLower(format) {
	case "", "auto":
		InitAuto(level)
	case "text":
		Init(level, false)
	case "json":
		Init(level, true)
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}

// InitWithHandler initializes the global logger with a custom handler.
// This is useful for testing or custom output destinations.
func InitWithHandler(handler slog.Handler) {
	mu.Lock()
	Logger = slog.New(handler)
	mu.Unlock()
	slog.SetDefault(Logger)
}

// ParseLevel parses "debug", "info", "warn" or "error" (case-insensitive).
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

func current() *slog.Logger {
	mu.RLock()
	l := Logger
	mu.RUnlock()
	if l == nil {
		Init(slog.LevelInfo, false)
		mu.RLock()
		l = Logger
		mu.RUnlock()
	}
	return l
}

// With returns a new logger with additional attributes.
// These attributes are included in every log entry from the returned logger.
func With(args ...any) *slog.Logger {
	return current().With(args...)
}

// Component returns a logger for a specific component.
//
// The returned logger resolves the global logger on every call, so
// package-level component loggers created before Init still honour the
// level and format chosen at startup.
//
// Example:
//
//	log := logging.Component("sampler")
//	log.Info("started") // Output: time=... level=INFO component=sampler msg=started
func Component(name string) *slog.Logger {
	return slog.New(&componentHandler{attrs: []slog.Attr{slog.String("component", name)}})
}

// componentHandler forwards to the current global handler.
type componentHandler struct {
	attrs  []slog.Attr
	groups []string
}

func (h *componentHandler) resolve() slog.Handler {
	handler := current().Handler().WithAttrs(h.attrs)
	for _, g := range h.groups {
		handler = handler.WithGroup(g)
	}
	return handler
}

func (h *componentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.resolve().Enabled(ctx, level)
}

func (h *componentHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.resolve().Handle(ctx, r)
}

func (h *componentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(h.groups) > 0 {
		return h.resolve().WithAttrs(attrs)
	}
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &componentHandler{attrs: merged}
}

func (h *componentHandler) WithGroup(name string) slog.Handler {
	groups := make([]string, 0, len(h.groups)+1)
	groups = append(groups, h.groups...)
	groups = append(groups, name)
	return &componentHandler{attrs: h.attrs, groups: groups}
}

// =============================================================================
// Convenience Functions
// =============================================================================

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	current().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	current().Info(msg, args...)
}

// Warn logs at warning level.
func Warn(msg string, args ...any) {
	current().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	current().Error(msg, args...)
}
