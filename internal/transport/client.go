package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// Client executes the agent CLI, one subprocess per Run call. It is safe to
// share across goroutines: Run holds no mutable state on the Client.
type Client struct {
	Config Config
}

// NewClient returns a Client bound to the provided configuration.
func NewClient(cfg Config) *Client {
	return &Client{Config: cfg}
}

// Run executes the agent exactly once with the given prompt and returns the
// raw outcome. Questions raised mid-run are resolved via onQuestion and fed
// back into the same process. Every failure is classified onto exactly one
// ErrorKind before it crosses this boundary; a caller-cancelled context is
// the one exception and propagates as the context's own error after the
// subprocess has been terminated.
func (c *Client) Run(ctx context.Context, prompt string, onQuestion QuestionHandler) (*Outcome, error) {
	cfg := c.Config
	start := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, cfg.timeout())
	defer cancel()

	cmd := exec.Command(cfg.cliPath(), buildArgs(cfg, prompt)...)
	if cfg.CWD != "" {
		cmd.Dir = cfg.CWD
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, connectionError("open stdin pipe", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, connectionError("open stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, connectionError("open stderr pipe", err)
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, notFoundError(cfg.cliPath())
		}
		return nil, connectionError("start agent subprocess", err)
	}

	// Both pipes drain concurrently from the moment the process starts.
	// The parent never calls Wait while either pipe is unread, or it
	// deadlocks against a child blocked on a full buffer.
	errTail := newTailBuffer(16 * 1024)
	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		_, _ = io.Copy(errTail, stderr)
	}()

	// Timeout and caller cancellation share one termination path:
	// SIGTERM, a grace window, then SIGKILL.
	waitDone := make(chan struct{})
	go func() {
		select {
		case <-runCtx.Done():
			terminate(cmd.Process, cfg.gracePeriod(), waitDone)
		case <-waitDone:
		}
	}()

	var (
		resultMsg *streamMessage
		decodeErr error
		writeErr  error
	)

	answers := json.NewEncoder(stdin)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if cfg.VerboseWriter != nil {
			fmt.Fprintln(cfg.VerboseWriter, line)
		}
		if decodeErr != nil {
			continue // keep draining so the child can die
		}

		var msg streamMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			decodeErr = malformedError(line, err)
			cancel() // reap the child; classification below prefers decodeErr
			continue
		}

		switch msg.Type {
		case msgTypeResult:
			m := msg
			resultMsg = &m
		case msgTypeControlRequest:
			if err := c.handleControl(answers, msg, onQuestion); err != nil {
				var te *Error
				if errors.As(err, &te) && te.Kind == KindMalformedOutput {
					decodeErr = err
					cancel()
				} else if writeErr == nil {
					writeErr = err
				}
			}
		}
	}
	readErr := scanner.Err()

	_ = stdin.Close()
	<-stderrDone
	waitErr := cmd.Wait()
	close(waitDone)

	switch {
	case decodeErr != nil:
		return nil, decodeErr
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		return nil, timeoutError(cfg.timeout())
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case waitErr != nil:
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return nil, processError("agent subprocess failed", exitErr.ExitCode(), errTail.String())
		}
		return nil, connectionError("wait for agent subprocess", waitErr)
	case writeErr != nil:
		return nil, writeErr
	case readErr != nil:
		return nil, connectionError("read agent output", readErr)
	case resultMsg == nil:
		return nil, processError("agent exited without a terminal result message", 0, errTail.String())
	}

	return outcomeFrom(resultMsg, time.Since(start)), nil
}

// handleControl answers one control request. AskUserQuestion calls get the
// resolved answers injected; every other tool call is allowed unchanged.
func (c *Client) handleControl(enc *json.Encoder, msg streamMessage, onQuestion QuestionHandler) error {
	req := msg.Request
	if req == nil || req.Subtype != controlSubtypeCanUseTool {
		return nil
	}
	if req.ToolName != questionToolName || onQuestion == nil {
		if err := enc.Encode(allowResponse(msg.RequestID)); err != nil {
			return connectionError("send control response to agent", err)
		}
		return nil
	}

	input, questions, err := decodeQuestions(req.Input)
	if err != nil {
		return malformedError(string(req.Input), err)
	}
	resolved := make(map[string]string, len(questions))
	for _, q := range questions {
		resolved[q.Text] = onQuestion(q)
	}
	if err := enc.Encode(answerResponse(msg.RequestID, input, resolved)); err != nil {
		return connectionError("send answer to agent", err)
	}
	return nil
}

func buildArgs(cfg Config, prompt string) []string {
	args := []string{
		"-p", prompt,
		"--output-format", "stream-json",
		"--input-format", "stream-json",
		"--verbose",
		"--permission-mode", cfg.permissionMode(),
	}
	if len(cfg.AllowedTools) > 0 {
		args = append(args, "--allowed-tools", strings.Join(cfg.AllowedTools, ","))
	}
	if cfg.SystemPromptAppend != "" {
		args = append(args, "--append-system-prompt", cfg.SystemPromptAppend)
	}
	if len(cfg.SettingSources) > 0 {
		args = append(args, "--setting-sources", strings.Join(cfg.SettingSources, ","))
	}
	if cfg.ResumeSessionID != "" {
		args = append(args, "--resume", cfg.ResumeSessionID)
	}
	return args
}

func outcomeFrom(msg *streamMessage, elapsed time.Duration) *Outcome {
	// Usage is always fully populated: the cost figure merges in, and a
	// run that reported nothing gets zeros rather than a partial block.
	usage := Usage{Cost: msg.TotalCostUSD}
	if msg.Usage != nil {
		usage.InputTokens = msg.Usage.InputTokens
		usage.OutputTokens = msg.Usage.OutputTokens
	}
	duration := elapsed
	if msg.DurationMS > 0 {
		duration = time.Duration(msg.DurationMS) * time.Millisecond
	}
	return &Outcome{
		Result:    msg.Result,
		SessionID: msg.SessionID,
		IsError:   msg.IsError,
		Usage:     usage,
		Duration:  duration,
	}
}

// terminate sends SIGTERM, waits for the grace window, then force-kills.
// done is closed once the process has been reaped.
func terminate(p *os.Process, grace time.Duration, done <-chan struct{}) {
	if p == nil {
		return
	}
	if err := p.Signal(syscall.SIGTERM); err != nil {
		_ = p.Kill()
		return
	}
	select {
	case <-done:
	case <-time.After(grace):
		_ = p.Kill()
	}
}

// tailBuffer keeps the last max bytes written, for stderr capture that
// cannot grow without bound.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
