// Package registry tracks GSD-managed projects in a per-user JSON file so
// status and workflow commands can be addressed by project name instead of
// path.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"openclawpack/internal/state"
)

const registryFileName = "projects.json"

// Entry is one registered project.
type Entry struct {
	Name           string         `json:"name"`
	Path           string         `json:"path"`
	RegisteredAt   time.Time      `json:"registered_at"`
	LastKnownState *state.Summary `json:"last_known_state,omitempty"`
}

// Registry is the on-disk collection of registered projects. It is not safe
// for concurrent use; callers load, mutate, and save within one command.
type Registry struct {
	path    string
	Entries []Entry `json:"projects"`
}

// DefaultPath returns the per-user registry file location, honoring the
// platform's data-directory conventions.
func DefaultPath() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("locate user data dir: %w", err)
		}
		switch runtime.GOOS {
		case "darwin":
			base = filepath.Join(home, "Library", "Application Support")
		case "windows":
			if local := os.Getenv("LOCALAPPDATA"); local != "" {
				base = local
			} else {
				base = filepath.Join(home, "AppData", "Local")
			}
		default:
			base = filepath.Join(home, ".local", "share")
		}
	}
	return filepath.Join(base, "openclawpack", registryFileName), nil
}

// Load reads the registry at path, returning an empty registry if the file
// does not exist yet.
func Load(path string) (*Registry, error) {
	r := &Registry{path: path}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	r.path = path
	return r, nil
}

// Save writes the registry atomically: temp file in the same directory,
// fsync, then rename over the old file.
func (r *Registry) Save() error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".projects-*.json")
	if err != nil {
		return fmt.Errorf("create temp registry: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write registry: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close registry: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace registry: %w", err)
	}
	return nil
}

// Add registers a project directory under the given name. The directory must
// contain a .planning/ directory; the current project summary is captured as
// the initial known state.
func (r *Registry) Add(name, dir string) (*Entry, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve project dir: %w", err)
	}
	summary, err := state.ProjectSummary(abs)
	if err != nil {
		return nil, err
	}
	for _, e := range r.Entries {
		if e.Name == name {
			return nil, fmt.Errorf("project %q is already registered (at %s)", name, e.Path)
		}
		if e.Path == abs {
			return nil, fmt.Errorf("path %s is already registered as %q", abs, e.Name)
		}
	}
	entry := Entry{
		Name:           name,
		Path:           abs,
		RegisteredAt:   time.Now().UTC(),
		LastKnownState: summary,
	}
	r.Entries = append(r.Entries, entry)
	return &entry, nil
}

// Remove unregisters a project by name. The project directory itself is
// never touched.
func (r *Registry) Remove(name string) error {
	for i, e := range r.Entries {
		if e.Name == name {
			r.Entries = append(r.Entries[:i], r.Entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("project %q is not registered", name)
}

// Get returns the entry with the given name, or nil.
func (r *Registry) Get(name string) *Entry {
	for i := range r.Entries {
		if r.Entries[i].Name == name {
			return &r.Entries[i]
		}
	}
	return nil
}

// List returns the entries sorted by name.
func (r *Registry) List() []Entry {
	out := make([]Entry, len(r.Entries))
	copy(out, r.Entries)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SyncResult reports what changed for one project during a Sync pass.
type SyncResult struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Missing bool   `json:"missing,omitempty"`
	Changed bool   `json:"changed"`
	Diff    string `json:"diff,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Sync re-reads every registered project and refreshes its stored state
// snapshot. Projects whose directories have disappeared are reported, not
// removed. The returned diff shows how each project's summary moved since
// the last sync.
func (r *Registry) Sync() ([]SyncResult, error) {
	results := make([]SyncResult, 0, len(r.Entries))
	for i := range r.Entries {
		e := &r.Entries[i]
		res := SyncResult{Name: e.Name, Path: e.Path}
		if _, err := os.Stat(e.Path); err != nil {
			res.Missing = true
			res.Error = fmt.Sprintf("project directory missing: %s", e.Path)
			results = append(results, res)
			continue
		}
		summary, err := state.ProjectSummary(e.Path)
		if err != nil {
			res.Error = err.Error()
			results = append(results, res)
			continue
		}
		diffText, err := summaryDiff(e.Name, e.LastKnownState, summary)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(diffText) != "" {
			res.Changed = true
			res.Diff = diffText
		}
		e.LastKnownState = summary
		results = append(results, res)
	}
	return results, nil
}

func summaryDiff(name string, before, after *state.Summary) (string, error) {
	oldJSON := summaryJSON(before)
	newJSON := summaryJSON(after)
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldJSON),
		B:        difflib.SplitLines(newJSON),
		FromFile: name + " (recorded)",
		ToFile:   name + " (current)",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("diff %s: %w", name, err)
	}
	return text, nil
}

func summaryJSON(s *state.Summary) string {
	if s == nil {
		return ""
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return ""
	}
	return string(data) + "\n"
}
