package errors

import (
	"fmt"
	"testing"
)

func TestCategories(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		config    bool
		invariant bool
		state     bool
		retriable bool
	}{
		{name: "invalid config", err: NewValidation("interval", "must be positive"), config: true},
		{name: "missing field", err: NewMissingField("source.snmp.host"), config: true},
		{name: "unknown iface", err: NewUnknownInterface("eth9", []string{"eth0"}), config: true},
		{name: "endpoint", err: NewInvalidEndpoint("x", "must start with http"), config: true},
		{name: "key set", err: fmt.Errorf("sample 3: %w", ErrKeySetMismatch), invariant: true},
		{name: "invariant", err: ErrInvariantViolation, invariant: true},
		{name: "not running", err: ErrNotRunning, state: true},
		{name: "already started", err: ErrAlreadyStarted, state: true},
		{name: "timeout", err: Wrap(ErrTimeout, "GET"), retriable: true},
		{name: "connection", err: Wrapf(ErrConnectionFailed, "dial %s", "x"), retriable: true},
		{name: "upload", err: ErrUpload},
		{name: "no data", err: ErrNoData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConfigError(tt.err); got != tt.config {
				t.Errorf("IsConfigError = %v, want %v", got, tt.config)
			}
			if got := IsInvariantViolation(tt.err); got != tt.invariant {
				t.Errorf("IsInvariantViolation = %v, want %v", got, tt.invariant)
			}
			if got := IsStateError(tt.err); got != tt.state {
				t.Errorf("IsStateError = %v, want %v", got, tt.state)
			}
			if got := IsRetriable(tt.err); got != tt.retriable {
				t.Errorf("IsRetriable = %v, want %v", got, tt.retriable)
			}
		})
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "x") != nil || Wrapf(nil, "x %d", 1) != nil {
		t.Error("wrapping nil should return nil")
	}
}

func TestUnknownInterfaceMessage(t *testing.T) {
	err := NewUnknownInterface("eth9", []string{"eth0", "lo"})
	want := `"eth9" (available: [eth0 lo]): unknown network interface`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestValidationErrors(t *testing.T) {
	v := NewValidationErrors()
	if v.HasErrors() || v.Err() != nil {
		t.Fatal("new collector should be empty")
	}

	v.Add(nil)
	v.AddField("interval", "must be positive")
	if v.Error() != "invalid interval: must be positive: invalid configuration" {
		t.Errorf("single error message = %q", v.Error())
	}

	v.AddMissing("output.dir")
	err := v.Err()
	if err == nil || len(v.Errors) != 2 {
		t.Fatalf("Err = %v, errors = %d", err, len(v.Errors))
	}
	if !Is(err, ErrInvalidConfig) || !Is(err, ErrMissingField) {
		t.Errorf("collected errors not reachable through Is: %v", err)
	}
	want := "validation failed with 2 errors:\n" +
		"  - invalid interval: must be positive: invalid configuration\n" +
		"  - output.dir: missing required field"
	if err.Error() != want {
		t.Errorf("Error() =\n%s\nwant\n%s", err.Error(), want)
	}
}
