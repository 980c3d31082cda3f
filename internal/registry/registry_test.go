package registry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const minimalState = `## Current Position

Phase: 1 of 2 (Setup)
Plan: 0 of 2
`

const minimalProject = `# Sample

## What This Is

A sample project.
`

func makeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	planning := filepath.Join(dir, ".planning")
	if err := os.MkdirAll(planning, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeState(t, dir, minimalState)
	if err := os.WriteFile(filepath.Join(planning, "PROJECT.md"), []byte(minimalProject), 0o644); err != nil {
		t.Fatalf("write PROJECT.md: %v", err)
	}
	return dir
}

func writeState(t *testing.T, projectDir, content string) {
	t.Helper()
	path := filepath.Join(projectDir, ".planning", "STATE.md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write STATE.md: %v", err)
	}
}

func tempRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := Load(filepath.Join(t.TempDir(), "projects.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return reg
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	reg := tempRegistry(t)
	if len(reg.Entries) != 0 {
		t.Fatalf("expected empty registry, got %d entries", len(reg.Entries))
	}
}

func TestAddCapturesState(t *testing.T) {
	reg := tempRegistry(t)
	dir := makeProject(t)

	entry, err := reg.Add("sample", dir)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if entry.LastKnownState == nil || entry.LastKnownState.CurrentPhase != 1 {
		t.Fatalf("snapshot not captured: %+v", entry.LastKnownState)
	}
	if entry.RegisteredAt.IsZero() {
		t.Fatal("RegisteredAt not set")
	}
}

func TestAddRejectsNonProject(t *testing.T) {
	reg := tempRegistry(t)
	if _, err := reg.Add("bad", t.TempDir()); err == nil {
		t.Fatal("expected error for directory without .planning/")
	}
}

func TestAddRejectsDuplicates(t *testing.T) {
	reg := tempRegistry(t)
	dir := makeProject(t)
	if _, err := reg.Add("sample", dir); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := reg.Add("sample", makeProject(t)); err == nil {
		t.Fatal("expected duplicate-name error")
	}
	if _, err := reg.Add("other", dir); err == nil {
		t.Fatal("expected duplicate-path error")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "projects.json")
	reg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	dir := makeProject(t)
	if _, err := reg.Add("sample", dir); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := reg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(reloaded.Entries) != 1 || reloaded.Entries[0].Name != "sample" {
		t.Fatalf("round trip lost data: %+v", reloaded.Entries)
	}
}

func TestRemove(t *testing.T) {
	reg := tempRegistry(t)
	if _, err := reg.Add("sample", makeProject(t)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := reg.Remove("sample"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := reg.Remove("sample"); err == nil {
		t.Fatal("expected error removing unknown project")
	}
}

func TestListSorted(t *testing.T) {
	reg := tempRegistry(t)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if _, err := reg.Add(name, makeProject(t)); err != nil {
			t.Fatalf("Add %s: %v", name, err)
		}
	}
	entries := reg.List()
	if entries[0].Name != "alpha" || entries[1].Name != "mid" || entries[2].Name != "zeta" {
		t.Fatalf("not sorted: %v", entries)
	}
}

func TestSyncDetectsChange(t *testing.T) {
	reg := tempRegistry(t)
	dir := makeProject(t)
	if _, err := reg.Add("sample", dir); err != nil {
		t.Fatalf("Add: %v", err)
	}

	results, err := reg.Sync()
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if results[0].Changed {
		t.Fatal("unchanged project reported as changed")
	}

	writeState(t, dir, "## Current Position\n\nPhase: 2 of 2 (Ship)\nPlan: 1 of 2\n")
	results, err = reg.Sync()
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !results[0].Changed {
		t.Fatal("state change not detected")
	}
	if !strings.Contains(results[0].Diff, "+") || !strings.Contains(results[0].Diff, "Ship") {
		t.Fatalf("diff does not show the new state:\n%s", results[0].Diff)
	}
	if reg.Entries[0].LastKnownState.CurrentPhase != 2 {
		t.Fatal("snapshot not refreshed after sync")
	}
}

func TestSyncReportsMissingDir(t *testing.T) {
	reg := tempRegistry(t)
	dir := makeProject(t)
	if _, err := reg.Add("sample", dir); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("remove project: %v", err)
	}

	results, err := reg.Sync()
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !results[0].Missing {
		t.Fatal("missing directory not reported")
	}
	if len(reg.Entries) != 1 {
		t.Fatal("missing project must stay registered")
	}
}
