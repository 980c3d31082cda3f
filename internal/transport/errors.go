package transport

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorKind is the closed set of transport failure classifications.
type ErrorKind string

const (
	// KindExecutableNotFound means the agent CLI binary could not be found.
	KindExecutableNotFound ErrorKind = "executable_not_found"
	// KindProcessFailure means the subprocess exited abnormally, or exited
	// cleanly without ever producing a terminal result message.
	KindProcessFailure ErrorKind = "process_failure"
	// KindTimeout means the invocation exceeded its wall-clock timeout.
	KindTimeout ErrorKind = "timeout"
	// KindMalformedOutput means the agent's output stream could not be
	// decoded as the expected stream-json protocol.
	KindMalformedOutput ErrorKind = "malformed_output"
	// KindConnectionFailure means a transport-level I/O failure while
	// talking to the subprocess.
	KindConnectionFailure ErrorKind = "connection_failure"
)

// Retryable reports whether re-attempting a call that failed with this kind
// has a reasonable chance of succeeding. A missing binary, corrupt output,
// or a run that already consumed its full timeout budget cannot be fixed by
// retrying; process and connection failures are the usual shape of a rate
// limit or transient backend hiccup seen through a subprocess boundary.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindProcessFailure, KindConnectionFailure:
		return true
	default:
		return false
	}
}

// Error is the single classified error type the transport surfaces. Every
// failure crossing the transport boundary is wrapped in exactly one of
// these; raw subprocess errors never leak unclassified.
type Error struct {
	Kind     ErrorKind
	Message  string
	ExitCode int // valid only for KindProcessFailure; -1 otherwise
	Stderr   string
}

func (e *Error) Error() string {
	parts := []string{e.Message}
	if e.Kind == KindProcessFailure && e.ExitCode >= 0 {
		parts = append(parts, fmt.Sprintf("exit_code=%d", e.ExitCode))
	}
	if e.Stderr != "" {
		parts = append(parts, fmt.Sprintf("stderr=%q", truncate(e.Stderr, 200)))
	}
	return strings.Join(parts, " | ")
}

// AsError unwraps err into a classified transport *Error if it is one.
func AsError(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

func notFoundError(path string) *Error {
	return &Error{
		Kind:     KindExecutableNotFound,
		Message:  fmt.Sprintf("agent CLI not found: %s (install with: npm install -g @anthropic-ai/claude-code)", path),
		ExitCode: -1,
	}
}

func processError(message string, exitCode int, stderr string) *Error {
	return &Error{
		Kind:     KindProcessFailure,
		Message:  message,
		ExitCode: exitCode,
		Stderr:   stderr,
	}
}

func timeoutError(timeout time.Duration) *Error {
	return &Error{
		Kind:     KindTimeout,
		Message:  fmt.Sprintf("agent subprocess timed out after %s", timeout),
		ExitCode: -1,
	}
}

func malformedError(line string, cause error) *Error {
	return &Error{
		Kind:     KindMalformedOutput,
		Message:  fmt.Sprintf("failed to decode agent output: %v (line: %q)", cause, truncate(line, 200)),
		ExitCode: -1,
	}
}

func connectionError(message string, cause error) *Error {
	msg := message
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", message, cause)
	}
	return &Error{
		Kind:     KindConnectionFailure,
		Message:  msg,
		ExitCode: -1,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
