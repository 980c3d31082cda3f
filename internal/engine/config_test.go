package engine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeAnswersFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "answers.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write answers file: %v", err)
	}
	return path
}

func TestLoadFileConfig(t *testing.T) {
	path := writeAnswersFile(t, `
operations:
  plan-phase:
    timeout: 15m
    answers:
      approve: "yes-custom"
  execute-phase:
    timeout: 1800
`)
	cfg, err := LoadFileConfig(path)
	if err != nil {
		t.Fatalf("LoadFileConfig: %v", err)
	}
	plan := cfg.Operations[OpPlanPhase]
	if plan.Timeout.Std() != 15*time.Minute {
		t.Fatalf("timeout = %s, want 15m", plan.Timeout.Std())
	}
	if plan.Answers["approve"] != "yes-custom" {
		t.Fatalf("answers = %v", plan.Answers)
	}
	if cfg.Operations[OpExecutePhase].Timeout.Std() != 1800*time.Second {
		t.Fatalf("bare seconds not parsed: %s", cfg.Operations[OpExecutePhase].Timeout.Std())
	}
}

func TestLoadFileConfigUnknownOperation(t *testing.T) {
	path := writeAnswersFile(t, "operations:\n  deploy:\n    answers:\n      go: \"Yes\"\n")
	_, err := LoadFileConfig(path)
	if err == nil || !strings.Contains(err.Error(), "unknown operation") {
		t.Fatalf("expected unknown-operation error, got %v", err)
	}
}

func TestLoadFileConfigMissingFile(t *testing.T) {
	if _, err := LoadFileConfig(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Fatal("expected read error")
	}
}

func TestNilFileConfigOperation(t *testing.T) {
	var cfg *FileConfig
	op := cfg.operation(OpPlanPhase)
	if op.Timeout != 0 || op.Answers != nil {
		t.Fatalf("nil config should give a zero operation, got %+v", op)
	}
}
