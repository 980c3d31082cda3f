package engine

import "time"

// Operation names accepted by Engine.Run.
const (
	OpNewProject   = "new-project"
	OpPlanPhase    = "plan-phase"
	OpExecutePhase = "execute-phase"
)

// opSpec is the built-in profile for one workflow operation: the skill
// command it maps to, its timeout, and the default answer map for the
// questions that skill is known to ask. Answer keys are substring patterns
// matched case-insensitively against question text.
type opSpec struct {
	command  string
	timeout  time.Duration
	defaults map[string]string
}

var opSpecs = map[string]opSpec{
	OpNewProject: {
		command: "gsd:new-project",
		timeout: 900 * time.Second,
		defaults: map[string]string{
			"depth":           "3",
			"parallelization": "Yes",
			"git":             "Yes",
			"research":        "Standard",
			"plan check":      "Yes",
			"verif":           "Yes",
			"model":           "quality",
		},
	},
	// Most plan-phase work happens in subagents which run autonomously
	// without raising questions. Only top-level confirmations need answers.
	OpPlanPhase: {
		command: "gsd:plan-phase",
		timeout: 600 * time.Second,
		defaults: map[string]string{
			"context": "Skip",
			"confirm": "Yes",
			"approve": "Yes",
			"proceed": "Yes",
		},
	},
	// Execute-phase runs subagents in waves, so it gets the longest budget.
	// The skill's --auto mode approves its own checkpoints; these answers
	// cover the prompts that bypass auto mode.
	OpExecutePhase: {
		command: "gsd:execute-phase",
		timeout: 1200 * time.Second,
		defaults: map[string]string{
			"approve":    "approved",
			"approved":   "approved",
			"checkpoint": "approved",
			"continue":   "Yes",
			"proceed":    "Yes",
			"select":     "option-a",
		},
	},
}

// Operations lists the workflow operation names in a fixed order.
func Operations() []string {
	return []string{OpNewProject, OpPlanPhase, OpExecutePhase}
}
