// Package state reads .planning/ project directories into typed records.
package state

// ProjectConfig is the configuration from .planning/config.json. Unknown
// fields are ignored; absent fields keep these defaults.
type ProjectConfig struct {
	Mode            string `json:"mode"`
	Depth           string `json:"depth"`
	Parallelization bool   `json:"parallelization"`
	CommitDocs      bool   `json:"commit_docs"`
	ModelProfile    string `json:"model_profile"`
}

// DefaultProjectConfig returns the config used when config.json is absent.
func DefaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Mode:            "yolo",
		Depth:           "standard",
		Parallelization: true,
		CommitDocs:      true,
		ModelProfile:    "quality",
	}
}

// PhaseInfo describes a single phase from ROADMAP.md.
type PhaseInfo struct {
	Number        int      `json:"number"`
	Name          string   `json:"name"`
	Goal          string   `json:"goal,omitempty"`
	Requirements  []string `json:"requirements"`
	PlansComplete int      `json:"plans_complete"`
	PlansTotal    int      `json:"plans_total"`
	Status        string   `json:"status"`
	CompletedDate string   `json:"completed_date,omitempty"`
}

// RequirementInfo is a single requirement from REQUIREMENTS.md.
type RequirementInfo struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Phase       int    `json:"phase,omitempty"`
	Completed   bool   `json:"completed"`
}

// ProjectState is the parsed state from STATE.md.
type ProjectState struct {
	CurrentPhase     int      `json:"current_phase"`
	CurrentPhaseName string   `json:"current_phase_name"`
	PlansComplete    int      `json:"plans_complete"`
	PlansTotal       int      `json:"plans_total"`
	LastActivity     string   `json:"last_activity,omitempty"`
	Blockers         []string `json:"blockers"`
	Decisions        []string `json:"decisions"`
}

// ProgressPercent is the share of plans complete in the current phase.
func (s ProjectState) ProgressPercent() float64 {
	if s.PlansTotal > 0 {
		return float64(s.PlansComplete) / float64(s.PlansTotal) * 100
	}
	return 0
}

// ProjectInfo is the parsed project description from PROJECT.md.
type ProjectInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	CoreValue   string   `json:"core_value,omitempty"`
	Constraints []string `json:"constraints"`
}

// RoadmapInfo is the parsed roadmap from ROADMAP.md.
type RoadmapInfo struct {
	Phases   []PhaseInfo `json:"phases"`
	Overview string      `json:"overview,omitempty"`
}

// Planning is the complete parsed state of a .planning/ directory.
type Planning struct {
	Config       ProjectConfig     `json:"config"`
	State        ProjectState      `json:"state"`
	Project      ProjectInfo       `json:"project"`
	Roadmap      RoadmapInfo       `json:"roadmap"`
	Requirements []RequirementInfo `json:"requirements"`
}

// CurrentPhaseInfo returns the roadmap entry for the current phase, or nil.
func (p *Planning) CurrentPhaseInfo() *PhaseInfo {
	for i := range p.Roadmap.Phases {
		if p.Roadmap.Phases[i].Number == p.State.CurrentPhase {
			return &p.Roadmap.Phases[i]
		}
	}
	return nil
}

// OverallProgress is the share of plans complete across all phases.
func (p *Planning) OverallProgress() float64 {
	var total, complete int
	for _, phase := range p.Roadmap.Phases {
		total += phase.PlansTotal
		complete += phase.PlansComplete
	}
	if total > 0 {
		return float64(complete) / float64(total) * 100
	}
	return 0
}

// Summary is the condensed project view the status operation returns.
type Summary struct {
	CurrentPhase         int      `json:"current_phase"`
	CurrentPhaseName     string   `json:"current_phase_name"`
	ProgressPercent      float64  `json:"progress_percent"`
	Blockers             []string `json:"blockers"`
	RequirementsComplete int      `json:"requirements_complete"`
	RequirementsTotal    int      `json:"requirements_total"`
}
