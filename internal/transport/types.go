// Package transport spawns and supervises the external agent CLI, answering
// its question control requests inline so runs complete without a human.
package transport

import (
	"io"
	"time"
)

const (
	defaultCLIName        = "claude"
	defaultPermissionMode = "bypassPermissions"
	defaultTimeout        = 300 * time.Second

	// termGracePeriod is how long a timed-out or cancelled subprocess gets
	// between SIGTERM and SIGKILL.
	termGracePeriod = 5 * time.Second
)

// Config holds the immutable per-call settings for one transport invocation.
// Built fresh per logical operation and never mutated after construction.
type Config struct {
	// CWD is the working directory for the subprocess. Empty uses the
	// current directory.
	CWD string
	// CLIPath overrides the agent binary. Empty resolves "claude" on PATH.
	CLIPath string
	// Timeout bounds the entire invocation, not individual reads. Zero
	// uses the 300s default.
	Timeout time.Duration
	// AllowedTools is the capability allow-list passed to the agent.
	AllowedTools []string
	// SystemPromptAppend is appended to the agent's preset system prompt.
	SystemPromptAppend string
	// PermissionMode defaults to bypassPermissions so the agent proceeds
	// non-interactively.
	PermissionMode string
	// SettingSources restricts which settings the agent loads.
	SettingSources []string
	// ResumeSessionID, when set, continues a previous agent conversation.
	// Opaque pass-through: the transport does not interpret it.
	ResumeSessionID string
	// VerboseWriter, when non-nil, receives every raw intermediate stream
	// line as a side channel. Independent of the returned outcome.
	VerboseWriter io.Writer
	// GracePeriod overrides the SIGTERM-to-SIGKILL window. Zero uses 5s.
	GracePeriod time.Duration
}

func (c Config) cliPath() string {
	if c.CLIPath != "" {
		return c.CLIPath
	}
	return defaultCLIName
}

func (c Config) permissionMode() string {
	if c.PermissionMode != "" {
		return c.PermissionMode
	}
	return defaultPermissionMode
}

func (c Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return defaultTimeout
}

func (c Config) gracePeriod() time.Duration {
	if c.GracePeriod > 0 {
		return c.GracePeriod
	}
	return termGracePeriod
}

// QuestionKind discriminates the shapes a question can take.
type QuestionKind int

const (
	// QuestionFreeText has no candidate options.
	QuestionFreeText QuestionKind = iota
	// QuestionSingleSelect offers options and expects one.
	QuestionSingleSelect
	// QuestionMultiSelect offers options and accepts several, joined
	// with ", " in the answer.
	QuestionMultiSelect
)

// Question is one structured prompt the agent raises mid-run. Transient:
// it exists only for the duration of one answer resolution.
type Question struct {
	Kind    QuestionKind
	Text    string
	Options []string
}

// QuestionHandler resolves a question to an answer string. Invoked
// synchronously from the stream read loop; the returned answer is fed back
// into the same running process.
type QuestionHandler func(Question) string

// Usage is the token/cost telemetry from one run. Always fully populated:
// runs that report nothing get zeros, never a partial block.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	Cost         float64
}

// Outcome is the raw terminal result of one transport invocation.
type Outcome struct {
	// Result is the agent's final text output.
	Result string
	// SessionID is the resumable session identifier the agent issued.
	SessionID string
	// IsError is the agent-reported logical failure flag. The process
	// still exited cleanly; this is not a transport failure.
	IsError bool
	Usage   Usage
	// Duration is the run duration as reported by the agent, falling back
	// to wall clock.
	Duration time.Duration
}
