package openclawpack

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGetStatus(t *testing.T) {
	dir := t.TempDir()
	planning := filepath.Join(dir, ".planning")
	if err := os.MkdirAll(planning, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	files := map[string]string{
		"STATE.md":   "## Current Position\n\nPhase: 1 of 2 (Setup)\nPlan: 0 of 1\n",
		"PROJECT.md": "# Demo\n\n## What This Is\n\nA demo.\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(planning, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	result := GetStatus(dir)
	if !result.Success {
		t.Fatalf("GetStatus failed: %v", result.Errors)
	}
	if result.Usage == nil {
		t.Fatal("local operation must carry a usage block")
	}
}

func TestGetStatusUnmanagedDir(t *testing.T) {
	result := GetStatus(t.TempDir())
	if result.Success {
		t.Fatal("expected failure for unmanaged directory")
	}
	if !strings.Contains(result.Errors[0], "GSD-managed") {
		t.Fatalf("errors = %v", result.Errors)
	}
}

func TestCreateProjectRequiresIdea(t *testing.T) {
	result := CreateProject(context.Background(), "", Options{})
	if result.Success || !strings.Contains(result.Errors[0], "idea") {
		t.Fatalf("result = %+v", result)
	}
}

func TestPlanPhaseValidatesPhase(t *testing.T) {
	result := PlanPhase(context.Background(), 0, Options{})
	if result.Success || !strings.Contains(result.Errors[0], "phase number") {
		t.Fatalf("result = %+v", result)
	}
}
