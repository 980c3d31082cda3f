package state

import (
	"fmt"
	"os"
	"path/filepath"
)

// PlanningDirName is the directory GSD maintains inside a managed project.
const PlanningDirName = ".planning"

// ReadProject parses all .planning/ files under projectDir into a Planning
// record. STATE.md and PROJECT.md are required; config.json, ROADMAP.md,
// and REQUIREMENTS.md are optional.
func ReadProject(projectDir string) (*Planning, error) {
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("resolve project dir: %w", err)
	}
	planningDir := filepath.Join(abs, PlanningDirName)
	info, err := os.Stat(planningDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("no %s/ directory found at %s (is this a GSD-managed project?)", PlanningDirName, abs)
	}

	cfg := DefaultProjectConfig()
	if data, err := os.ReadFile(filepath.Join(planningDir, "config.json")); err == nil {
		cfg, err = ParseConfigJSON(data)
		if err != nil {
			return nil, err
		}
	}

	stateData, err := os.ReadFile(filepath.Join(planningDir, "STATE.md"))
	if err != nil {
		return nil, fmt.Errorf("required file STATE.md not found in %s", planningDir)
	}
	projectData, err := os.ReadFile(filepath.Join(planningDir, "PROJECT.md"))
	if err != nil {
		return nil, fmt.Errorf("required file PROJECT.md not found in %s", planningDir)
	}

	planning := &Planning{
		Config:  cfg,
		State:   ParseStateMD(string(stateData)),
		Project: ParseProjectMD(string(projectData)),
	}

	if data, err := os.ReadFile(filepath.Join(planningDir, "ROADMAP.md")); err == nil {
		planning.Roadmap = ParseRoadmapMD(string(data))
	}
	if data, err := os.ReadFile(filepath.Join(planningDir, "REQUIREMENTS.md")); err == nil {
		planning.Requirements = ParseRequirementsMD(string(data))
	}
	return planning, nil
}

// ProjectSummary reads a project and condenses it into the status view.
func ProjectSummary(projectDir string) (*Summary, error) {
	planning, err := ReadProject(projectDir)
	if err != nil {
		return nil, err
	}
	complete := 0
	for _, r := range planning.Requirements {
		if r.Completed {
			complete++
		}
	}
	return &Summary{
		CurrentPhase:         planning.State.CurrentPhase,
		CurrentPhaseName:     planning.State.CurrentPhaseName,
		ProgressPercent:      planning.State.ProgressPercent(),
		Blockers:             planning.State.Blockers,
		RequirementsComplete: complete,
		RequirementsTotal:    len(planning.Requirements),
	}, nil
}
