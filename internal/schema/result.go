// Package schema defines the uniform result envelope returned by every
// openclawpack operation.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Usage carries token and cost figures for one agent run. All three fields
// are always populated together; a run that reported nothing gets zeros.
type Usage struct {
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}

// Result is the envelope every operation returns.
//
// Invariant: Success == true implies Errors is empty and Result is non-nil;
// Success == false implies Result is nil and Errors is non-empty.
type Result struct {
	Success    bool     `json:"success"`
	Result     any      `json:"result"`
	Errors     []string `json:"errors"`
	SessionID  string   `json:"session_id"`
	Usage      *Usage   `json:"usage"`
	DurationMS int64    `json:"duration_ms"`
}

// OK builds a success envelope.
func OK(result any, sessionID string, usage *Usage, durationMS int64) Result {
	return Result{
		Success:    true,
		Result:     result,
		Errors:     []string{},
		SessionID:  sessionID,
		Usage:      usage,
		DurationMS: durationMS,
	}
}

// Error builds a failure envelope with a single error message.
func Error(message string, durationMS int64) Result {
	return Result{
		Success:    false,
		Errors:     []string{message},
		DurationMS: durationMS,
	}
}

// Errorf builds a failure envelope from a format string.
func Errorf(durationMS int64, format string, args ...any) Result {
	return Error(fmt.Sprintf(format, args...), durationMS)
}

// ZeroUsage returns a fully populated all-zero usage block. Local-only
// operations that never spawn the agent use this instead of a nil usage so
// downstream consumers can index into it unconditionally.
func ZeroUsage() *Usage {
	return &Usage{}
}

// JSON serializes the envelope as indented JSON.
func (r Result) JSON() (string, error) {
	if r.Errors == nil {
		r.Errors = []string{}
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return string(data), nil
}

// Text renders a human-readable summary of the envelope.
func (r Result) Text() string {
	var b strings.Builder
	if r.Success {
		b.WriteString("Status: success\n")
		if s, ok := r.Result.(string); ok {
			fmt.Fprintf(&b, "Result: %s\n", s)
		} else if r.Result != nil {
			data, err := json.MarshalIndent(r.Result, "", "  ")
			if err == nil {
				fmt.Fprintf(&b, "Result:\n%s\n", data)
			}
		}
	} else {
		b.WriteString("Status: failed\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "Error: %s\n", e)
		}
	}
	if r.SessionID != "" {
		fmt.Fprintf(&b, "Session: %s\n", r.SessionID)
	}
	if r.Usage != nil {
		fmt.Fprintf(&b, "Usage: %d in / %d out tokens, $%.4f\n",
			r.Usage.InputTokens, r.Usage.OutputTokens, r.Usage.Cost)
	}
	fmt.Fprintf(&b, "Duration: %dms\n", r.DurationMS)
	return b.String()
}
