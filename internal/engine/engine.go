// Package engine turns high-level workflow operations into supervised agent
// runs: it builds the skill prompt, merges answer maps, drives the transport
// with retry, and normalizes every outcome into the result envelope.
package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"openclawpack/internal/answers"
	"openclawpack/internal/audit"
	"openclawpack/internal/events"
	"openclawpack/internal/schema"
	"openclawpack/internal/state"
	"openclawpack/internal/transport"
)

const (
	auditActor = "openclawpack"

	// systemPromptAppend steers the agent away from clarifying questions the
	// answer maps would otherwise have to field.
	systemPromptAppend = "Execute the following command non-interactively. " +
		"Do not ask unnecessary clarifying questions."
)

// Runner executes one agent invocation. *transport.Client is the production
// implementation; tests substitute their own.
type Runner interface {
	Run(ctx context.Context, prompt string, onQuestion transport.QuestionHandler) (*transport.Outcome, error)
}

// Options configures an Engine. Construction is config-only: no process is
// spawned and no file is touched until Run.
type Options struct {
	// ProjectDir is the working directory for agent subprocesses. Empty
	// means the current directory.
	ProjectDir string
	// CLIPath overrides the agent binary.
	CLIPath string
	// Verbose, when non-nil, receives raw agent stream lines.
	Verbose io.Writer
	// Answers is the parsed answers file, if any.
	Answers *FileConfig
	// Bus receives progress events. Nil disables publishing.
	Bus *events.Bus
	// Audit receives audit events. Nil disables the audit trail.
	Audit *audit.Logger
	// Retry overrides the default retry policy.
	Retry *transport.RetryPolicy
	// NewRunner overrides how transports are built, for tests.
	NewRunner func(transport.Config) Runner
}

// Engine orchestrates workflow operations.
type Engine struct {
	opts      Options
	newRunner func(transport.Config) Runner
}

// New builds an Engine from options.
func New(opts Options) *Engine {
	newRunner := opts.NewRunner
	if newRunner == nil {
		newRunner = func(cfg transport.Config) Runner { return transport.NewClient(cfg) }
	}
	return &Engine{opts: opts, newRunner: newRunner}
}

// RunRequest describes one workflow operation invocation.
type RunRequest struct {
	// Operation is one of the Op* constants.
	Operation string
	// Idea is the project idea for new-project: plain text, or a path to a
	// file whose contents become the idea.
	Idea string
	// Phase is the 1-based phase number for plan-phase and execute-phase.
	Phase int
	// Timeout overrides the operation's default timeout when positive.
	Timeout time.Duration
	// Answers are caller overrides merged over the defaults, winning
	// key-for-key.
	Answers map[string]string
	// Resume continues a previous agent session.
	Resume string
}

// AnsweredQuestion records one question resolved during a run.
type AnsweredQuestion struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Fallback bool   `json:"fallback"`
}

// RunReport is the side-channel record of a run: what was asked, what was
// answered, and how many attempts the transport needed. It exists so the
// envelope shape stays fixed while callers can still see when a fallback
// answered on the operator's behalf.
type RunReport struct {
	RunID    string             `json:"run_id"`
	Attempts int                `json:"attempts"`
	Answered []AnsweredQuestion `json:"answered"`
}

// Fallbacks returns the questions resolved by the fallback tier.
func (r *RunReport) Fallbacks() []AnsweredQuestion {
	var out []AnsweredQuestion
	for _, a := range r.Answered {
		if a.Fallback {
			out = append(out, a)
		}
	}
	return out
}

// Run executes one workflow operation end to end and always returns an
// envelope; failures are folded into it, never raised past this boundary.
func (e *Engine) Run(ctx context.Context, req RunRequest) (schema.Result, *RunReport) {
	start := time.Now()
	report := &RunReport{RunID: uuid.NewString()}

	spec, ok := opSpecs[req.Operation]
	if !ok {
		return schema.Errorf(msSince(start), "unknown operation %q", req.Operation), report
	}
	prompt, err := e.buildPrompt(spec, req)
	if err != nil {
		return schema.Error(err.Error(), msSince(start)), report
	}

	opCfg := e.opts.Answers.operation(req.Operation)
	answerMap := answers.Merge(spec.defaults, answers.Merge(opCfg.Answers, req.Answers))

	timeout := spec.timeout
	if opCfg.Timeout > 0 {
		timeout = opCfg.Timeout.Std()
	}
	if req.Timeout > 0 {
		timeout = req.Timeout
	}

	e.publish(events.OperationStarted, req.Operation, "run "+report.RunID, nil)
	e.auditEvent(req.Operation+"_started", map[string]any{
		"run_id":  report.RunID,
		"prompt":  prompt,
		"timeout": timeout.String(),
	})

	runner := e.newRunner(transport.Config{
		CWD:                e.opts.ProjectDir,
		CLIPath:            e.opts.CLIPath,
		Timeout:            timeout,
		SystemPromptAppend: systemPromptAppend,
		SettingSources:     []string{"project"},
		ResumeSessionID:    req.Resume,
		VerboseWriter:      e.opts.Verbose,
	})

	policy := transport.DefaultRetryPolicy()
	if e.opts.Retry != nil {
		policy = *e.opts.Retry
	}
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		e.publish(events.ProgressUpdate, req.Operation,
			fmt.Sprintf("retrying after %s (attempt %d failed: %v)", delay, attempt+1, err), nil)
		e.auditEvent("retry_backoff", map[string]any{
			"run_id":  report.RunID,
			"attempt": attempt,
			"delay":   delay.String(),
			"error":   err.Error(),
		})
	}

	outcome, runErr := policy.Do(ctx, func(ctx context.Context) (*transport.Outcome, error) {
		report.Attempts++
		// Only the attempt that produced the outcome should be reported.
		report.Answered = report.Answered[:0]
		return runner.Run(ctx, prompt, func(q transport.Question) string {
			answer, fallback := answers.Resolve(q, answerMap)
			report.Answered = append(report.Answered, AnsweredQuestion{
				Question: q.Text,
				Answer:   answer,
				Fallback: fallback,
			})
			eventType := "question_answered"
			if fallback {
				eventType = "question_fallback"
			}
			e.auditEvent(eventType, map[string]any{
				"run_id":   report.RunID,
				"question": q.Text,
				"answer":   answer,
			})
			return answer
		})
	})

	result := e.finish(req.Operation, outcome, runErr, start)
	for _, fb := range report.Fallbacks() {
		e.publish(events.DecisionMade, req.Operation,
			fmt.Sprintf("answered %q with fallback %q", fb.Question, fb.Answer),
			map[string]any{"question": fb.Question, "answer": fb.Answer})
	}
	e.auditEvent(req.Operation+"_finished", map[string]any{
		"run_id":   report.RunID,
		"success":  result.Success,
		"attempts": report.Attempts,
		"errors":   result.Errors,
	})
	return result, report
}

// finish folds the transport outcome or error into the envelope and
// publishes the terminal event.
func (e *Engine) finish(operation string, outcome *transport.Outcome, runErr error, start time.Time) schema.Result {
	if runErr != nil {
		e.publish(events.OperationFailed, operation, runErr.Error(), nil)
		return schema.Error(runErr.Error(), msSince(start))
	}

	usage := &schema.Usage{
		InputTokens:  outcome.Usage.InputTokens,
		OutputTokens: outcome.Usage.OutputTokens,
		Cost:         outcome.Usage.Cost,
	}
	durationMS := outcome.Duration.Milliseconds()

	// A logical failure reported by the agent is a completed run with a bad
	// answer, not a transport fault: no retry, but the session, usage, and
	// duration it produced are still real and flow through.
	if outcome.IsError {
		msg := outcome.Result
		if msg == "" {
			msg = "agent reported an error without detail"
		}
		e.publish(events.OperationFailed, operation, msg, nil)
		result := schema.Error(msg, durationMS)
		result.SessionID = outcome.SessionID
		result.Usage = usage
		return result
	}

	e.publish(events.OperationComplete, operation, outcome.Result, nil)
	return schema.OK(outcome.Result, outcome.SessionID, usage, durationMS)
}

// buildPrompt renders the skill invocation for an operation.
func (e *Engine) buildPrompt(spec opSpec, req RunRequest) (string, error) {
	switch req.Operation {
	case OpNewProject:
		idea := req.Idea
		if idea == "" {
			return "", fmt.Errorf("new-project requires a project idea")
		}
		// The idea may be a path to a file holding the real text.
		if info, err := os.Stat(idea); err == nil && info.Mode().IsRegular() {
			data, err := os.ReadFile(idea)
			if err != nil {
				return "", fmt.Errorf("read idea file: %w", err)
			}
			idea = string(data)
		}
		return fmt.Sprintf("/%s --auto\n\n%s", spec.command, idea), nil
	default:
		if req.Phase < 1 {
			return "", fmt.Errorf("%s requires a phase number >= 1, got %d", req.Operation, req.Phase)
		}
		return fmt.Sprintf("/%s %d", spec.command, req.Phase), nil
	}
}

// Status reads the local project state without spawning the agent. The
// envelope carries a zero usage block so consumers can index into it
// unconditionally.
func (e *Engine) Status(projectDir string) schema.Result {
	start := time.Now()
	if projectDir == "" {
		projectDir = e.opts.ProjectDir
	}
	if projectDir == "" {
		projectDir = "."
	}
	summary, err := state.ProjectSummary(projectDir)
	if err != nil {
		return schema.Error(err.Error(), msSince(start))
	}
	result := schema.OK(summary, "", schema.ZeroUsage(), msSince(start))
	return result
}

func (e *Engine) publish(eventType, operation, message string, data map[string]any) {
	e.opts.Bus.Publish(events.Event{
		Type:      eventType,
		Operation: operation,
		Message:   message,
		Data:      data,
	})
}

func (e *Engine) auditEvent(eventType string, payload map[string]any) {
	if e.opts.Audit == nil {
		return
	}
	// The audit trail is best effort; a broken DB never fails the run.
	_ = e.opts.Audit.LogEvent(auditActor, eventType, payload)
}

func msSince(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
