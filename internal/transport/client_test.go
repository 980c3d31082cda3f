package transport

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// writeAgent writes a fake agent script into a temp dir and returns its path.
func writeAgent(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake agent scripts require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fake-claude")
	script := "#!/bin/sh\n" + body
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake agent: %v", err)
	}
	return path
}

const resultLine = `{"type":"result","subtype":"success","is_error":false,"result":"done","session_id":"sess-1","duration_ms":1200,"total_cost_usd":0.5,"usage":{"input_tokens":10,"output_tokens":20}}`

func TestRunHappyPath(t *testing.T) {
	agent := writeAgent(t, "echo '"+resultLine+"'\n")
	c := NewClient(Config{CLIPath: agent, Timeout: 10 * time.Second})

	outcome, err := c.Run(context.Background(), "/gsd:plan-phase 1", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Result != "done" || outcome.SessionID != "sess-1" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if outcome.IsError {
		t.Fatal("IsError should be false")
	}
	if outcome.Usage.InputTokens != 10 || outcome.Usage.OutputTokens != 20 || outcome.Usage.Cost != 0.5 {
		t.Fatalf("usage not merged: %+v", outcome.Usage)
	}
	if outcome.Duration != 1200*time.Millisecond {
		t.Fatalf("duration = %s, want agent-reported 1.2s", outcome.Duration)
	}
}

func TestRunZeroFillsMissingUsage(t *testing.T) {
	agent := writeAgent(t, `echo '{"type":"result","result":"ok","session_id":"s"}'`+"\n")
	c := NewClient(Config{CLIPath: agent, Timeout: 10 * time.Second})

	outcome, err := c.Run(context.Background(), "p", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Usage.InputTokens != 0 || outcome.Usage.OutputTokens != 0 || outcome.Usage.Cost != 0 {
		t.Fatalf("expected zero-filled usage, got %+v", outcome.Usage)
	}
}

func TestRunQuestionRoundTrip(t *testing.T) {
	captured := filepath.Join(t.TempDir(), "answer.json")
	agent := writeAgent(t, `
echo '{"type":"control_request","request_id":"req-1","request":{"subtype":"can_use_tool","tool_name":"AskUserQuestion","input":{"questions":[{"question":"Pick a depth","options":[{"label":"1"},{"label":"3"}]}]}}}'
read -r line
printf '%s' "$line" > `+captured+`
echo '`+resultLine+`'
`)
	c := NewClient(Config{CLIPath: agent, Timeout: 10 * time.Second})

	var asked []Question
	outcome, err := c.Run(context.Background(), "p", func(q Question) string {
		asked = append(asked, q)
		return "3"
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Result != "done" {
		t.Fatalf("result = %q", outcome.Result)
	}
	if len(asked) != 1 || asked[0].Text != "Pick a depth" || asked[0].Kind != QuestionSingleSelect {
		t.Fatalf("unexpected questions: %+v", asked)
	}

	data, err := os.ReadFile(captured)
	if err != nil {
		t.Fatalf("read captured answer: %v", err)
	}
	for _, want := range []string{`"request_id":"req-1"`, `"updatedInput"`, `"Pick a depth":"3"`} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("injected answer missing %q:\n%s", want, data)
		}
	}
}

func TestRunAllowsOtherTools(t *testing.T) {
	captured := filepath.Join(t.TempDir(), "response.json")
	agent := writeAgent(t, `
echo '{"type":"control_request","request_id":"req-9","request":{"subtype":"can_use_tool","tool_name":"Bash","input":{}}}'
read -r line
printf '%s' "$line" > `+captured+`
echo '`+resultLine+`'
`)
	c := NewClient(Config{CLIPath: agent, Timeout: 10 * time.Second})

	_, err := c.Run(context.Background(), "p", func(q Question) string {
		t.Fatal("handler must not fire for other tools")
		return ""
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, _ := os.ReadFile(captured)
	if !strings.Contains(string(data), `"behavior":"allow"`) || strings.Contains(string(data), "updatedInput") {
		t.Fatalf("expected plain allow response, got:\n%s", data)
	}
}

func TestRunLargeOutputDoesNotDeadlock(t *testing.T) {
	// Both streams well past pipe buffer size; the run must still finish.
	agent := writeAgent(t, `
pad=$(head -c 2000 /dev/zero | tr '\0' 'x')
i=0
while [ $i -lt 100 ]; do
  printf '{"type":"assistant","pad":"%s"}\n' "$pad"
  i=$((i+1))
done
head -c 200000 /dev/zero | tr '\0' 'e' >&2
echo '`+resultLine+`'
`)
	c := NewClient(Config{CLIPath: agent, Timeout: 30 * time.Second})

	outcome, err := c.Run(context.Background(), "p", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Result != "done" {
		t.Fatalf("result = %q", outcome.Result)
	}
}

func TestRunMissingBinary(t *testing.T) {
	c := NewClient(Config{CLIPath: filepath.Join(t.TempDir(), "nope"), Timeout: time.Second})
	_, err := c.Run(context.Background(), "p", nil)
	te, ok := AsError(err)
	if !ok || te.Kind != KindExecutableNotFound {
		t.Fatalf("expected executable_not_found, got %v", err)
	}
}

func TestRunNonZeroExit(t *testing.T) {
	agent := writeAgent(t, "echo 'rate limit exceeded' >&2\nexit 3\n")
	c := NewClient(Config{CLIPath: agent, Timeout: 10 * time.Second})

	_, err := c.Run(context.Background(), "p", nil)
	te, ok := AsError(err)
	if !ok || te.Kind != KindProcessFailure {
		t.Fatalf("expected process_failure, got %v", err)
	}
	if te.ExitCode != 3 {
		t.Fatalf("exit code = %d, want 3", te.ExitCode)
	}
	if !strings.Contains(te.Stderr, "rate limit exceeded") {
		t.Fatalf("stderr tail missing: %q", te.Stderr)
	}
}

func TestRunNoTerminalResult(t *testing.T) {
	agent := writeAgent(t, `echo '{"type":"system","subtype":"init"}'`+"\n")
	c := NewClient(Config{CLIPath: agent, Timeout: 10 * time.Second})

	_, err := c.Run(context.Background(), "p", nil)
	te, ok := AsError(err)
	if !ok || te.Kind != KindProcessFailure {
		t.Fatalf("expected process_failure, got %v", err)
	}
	if !strings.Contains(te.Message, "terminal result") {
		t.Fatalf("unexpected message %q", te.Message)
	}
}

func TestRunMalformedOutput(t *testing.T) {
	agent := writeAgent(t, "echo 'this is not json'\nsleep 60\n")
	c := NewClient(Config{CLIPath: agent, Timeout: 30 * time.Second, GracePeriod: 100 * time.Millisecond})

	_, err := c.Run(context.Background(), "p", nil)
	te, ok := AsError(err)
	if !ok || te.Kind != KindMalformedOutput {
		t.Fatalf("expected malformed_output, got %v", err)
	}
	if !strings.Contains(te.Message, "this is not json") {
		t.Fatalf("offending line missing from %q", te.Message)
	}
}

func TestRunTimeout(t *testing.T) {
	agent := writeAgent(t, "sleep 60\n")
	c := NewClient(Config{
		CLIPath:     agent,
		Timeout:     200 * time.Millisecond,
		GracePeriod: 100 * time.Millisecond,
	})

	start := time.Now()
	_, err := c.Run(context.Background(), "p", nil)
	te, ok := AsError(err)
	if !ok || te.Kind != KindTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
	if time.Since(start) > 10*time.Second {
		t.Fatal("timed-out subprocess was not reaped promptly")
	}
}

func TestRunCallerCancellation(t *testing.T) {
	agent := writeAgent(t, "sleep 60\n")
	c := NewClient(Config{CLIPath: agent, Timeout: time.Minute, GracePeriod: 100 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	_, err := c.Run(ctx, "p", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled to propagate, got %v", err)
	}
}

func TestBuildArgs(t *testing.T) {
	cfg := Config{
		SystemPromptAppend: "no questions",
		SettingSources:     []string{"project"},
		ResumeSessionID:    "sess-7",
		AllowedTools:       []string{"Bash", "Read"},
	}
	args := strings.Join(buildArgs(cfg, "/gsd:plan-phase 2"), " ")
	for _, want := range []string{
		"-p /gsd:plan-phase 2",
		"--output-format stream-json",
		"--input-format stream-json",
		"--permission-mode bypassPermissions",
		"--append-system-prompt no questions",
		"--setting-sources project",
		"--resume sess-7",
		"--allowed-tools Bash,Read",
	} {
		if !strings.Contains(args, want) {
			t.Errorf("args missing %q: %s", want, args)
		}
	}
}
