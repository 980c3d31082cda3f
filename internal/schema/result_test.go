package schema

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestOKEnvelopeInvariant(t *testing.T) {
	r := OK("done", "sess-1", &Usage{InputTokens: 10, OutputTokens: 20, Cost: 0.5}, 1200)
	if !r.Success {
		t.Fatal("expected success")
	}
	if len(r.Errors) != 0 {
		t.Fatalf("success envelope must have no errors, got %v", r.Errors)
	}
	if r.Result == nil {
		t.Fatal("success envelope must have a non-nil result")
	}
}

func TestErrorEnvelopeInvariant(t *testing.T) {
	r := Error("boom", 42)
	if r.Success {
		t.Fatal("expected failure")
	}
	if r.Result != nil {
		t.Fatalf("failure envelope must have a nil result, got %v", r.Result)
	}
	if len(r.Errors) != 1 || r.Errors[0] != "boom" {
		t.Fatalf("unexpected errors: %v", r.Errors)
	}
	if r.DurationMS != 42 {
		t.Fatalf("duration = %d, want 42", r.DurationMS)
	}
}

func TestErrorf(t *testing.T) {
	r := Errorf(1, "phase %d missing", 3)
	if r.Errors[0] != "phase 3 missing" {
		t.Fatalf("unexpected error message %q", r.Errors[0])
	}
}

func TestJSONNeverEmitsNullErrors(t *testing.T) {
	r := Result{Success: true, Result: "x"}
	out, err := r.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := decoded["errors"].([]any); !ok {
		t.Fatalf("errors should serialize as an array, got %T", decoded["errors"])
	}
}

func TestZeroUsageFullyPopulated(t *testing.T) {
	u := ZeroUsage()
	if u == nil {
		t.Fatal("ZeroUsage returned nil")
	}
	if u.InputTokens != 0 || u.OutputTokens != 0 || u.Cost != 0 {
		t.Fatalf("expected all-zero usage, got %+v", u)
	}
}

func TestTextRendering(t *testing.T) {
	r := OK("all good", "sess-9", ZeroUsage(), 7)
	text := r.Text()
	for _, want := range []string{"Status: success", "Result: all good", "Session: sess-9", "Duration: 7ms"} {
		if !strings.Contains(text, want) {
			t.Fatalf("text output missing %q:\n%s", want, text)
		}
	}

	text = Error("broke", 3).Text()
	if !strings.Contains(text, "Status: failed") || !strings.Contains(text, "Error: broke") {
		t.Fatalf("unexpected failure text:\n%s", text)
	}
}
