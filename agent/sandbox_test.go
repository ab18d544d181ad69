package agent

import (
	"errors"
	"strings"
	"testing"
)

func sandboxRows() []Row {
	return []Row{
		{"Region": "East", "Sales": "100"},
		{"Region": "West", "Sales": "200"},
	}
}

func TestTransformSandbox_RunIdentity(t *testing.T) {
	sandbox := NewTransformSandbox(nil)
	got, err := sandbox.Run("return data;", sandboxRows())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0]["Region"] != "East" {
		t.Errorf("got %v", got)
	}
}

func TestTransformSandbox_RunMapsRows(t *testing.T) {
	sandbox := NewTransformSandbox(nil)
	body := `return data.map(function(row) {
		return { Region: row.Region, Sales: Number(row.Sales) * 2 };
	});`
	got, err := sandbox.Run(body, sandboxRows())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if v, ok := got[0]["Sales"].(int64); ok {
		if v != 200 {
			t.Errorf("Sales = %d, want 200", v)
		}
	} else if v, ok := got[0]["Sales"].(float64); !ok || v != 200 {
		t.Errorf("Sales = %v (%T), want 200", got[0]["Sales"], got[0]["Sales"])
	}
}

func TestTransformSandbox_MissingReturn(t *testing.T) {
	sandbox := NewTransformSandbox(nil)
	_, err := sandbox.Run("var x = data.length;", sandboxRows())
	if err == nil {
		t.Fatal("expected error for missing return")
	}
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected *ExecutionError, got %T", err)
	}
	if !strings.Contains(execErr.Message, "did not return an array") {
		t.Errorf("message %q should name the missing return", execErr.Message)
	}
}

func TestTransformSandbox_SyntaxError(t *testing.T) {
	sandbox := NewTransformSandbox(nil)
	_, err := sandbox.Run("return data.map(function(row) {", sandboxRows())
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected *ExecutionError, got %T", err)
	}
	if execErr.Stage != "compile" {
		t.Errorf("stage = %q, want compile", execErr.Stage)
	}
}

func TestTransformSandbox_ThrownException(t *testing.T) {
	sandbox := NewTransformSandbox(nil)
	_, err := sandbox.Run(`throw new Error("boom");`, sandboxRows())
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected *ExecutionError, got %T", err)
	}
	if !strings.Contains(execErr.Message, "boom") {
		t.Errorf("message %q should carry the JS error", execErr.Message)
	}
}

func TestTransformSandbox_NonArrayReturn(t *testing.T) {
	sandbox := NewTransformSandbox(nil)
	_, err := sandbox.Run(`return {count: data.length};`, sandboxRows())
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected *ExecutionError, got %T", err)
	}
	if !strings.Contains(execErr.Message, "array of row objects") {
		t.Errorf("message %q should name the shape requirement", execErr.Message)
	}
}

func TestTransformSandbox_ArrayOfNonObjects(t *testing.T) {
	sandbox := NewTransformSandbox(nil)
	_, err := sandbox.Run(`return [1, 2, 3];`, sandboxRows())
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected *ExecutionError, got %T", err)
	}
	if !strings.Contains(execErr.Message, "not an object") {
		t.Errorf("message %q should name the offending element", execErr.Message)
	}
}

func TestTransformSandbox_DryRunFailureStopsRun(t *testing.T) {
	// A body that throws on the sample must never reach the full dataset.
	var logs []string
	sandbox := NewTransformSandbox(func(msg string) { logs = append(logs, msg) })

	_, err := sandbox.Run(`throw new Error("bad sample");`, sandboxRows())
	if err == nil {
		t.Fatal("expected dry-run failure")
	}
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected *ExecutionError, got %T", err)
	}
	if execErr.Stage != "dry-run" {
		t.Errorf("stage = %q, want dry-run", execErr.Stage)
	}
	for _, line := range logs {
		if strings.Contains(line, "Dry run passed") {
			t.Error("full run must not start after a failed dry run")
		}
	}
}

func TestTransformSandbox_EmptyArrayAllowed(t *testing.T) {
	// The sandbox reports shape faithfully; rejecting empty results is the
	// caller's policy, not the sandbox's.
	sandbox := NewTransformSandbox(nil)
	got, err := sandbox.Run(`return [];`, sandboxRows())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
}
