// Package openclawpack drives GSD project workflows through the Claude Code
// CLI without a human in the loop. It spawns the agent, intercepts its
// structured questions, answers them from configurable answer maps, and
// returns a uniform result envelope for every operation.
//
// This file is the library facade; the same operations are exposed by the
// openclawpack command.
package openclawpack

import (
	"context"
	"time"

	"openclawpack/internal/engine"
	"openclawpack/internal/events"
	"openclawpack/internal/registry"
	"openclawpack/internal/schema"
)

// Result is the uniform envelope returned by every operation.
type Result = schema.Result

// Options configures library calls. The zero value works: current directory,
// default timeouts, no event bus.
type Options struct {
	// ProjectDir is the working directory for agent subprocesses.
	ProjectDir string
	// CLIPath overrides the agent binary.
	CLIPath string
	// Timeout overrides the operation's default timeout when positive.
	Timeout time.Duration
	// AnswerOverrides are merged over the operation's default answer map.
	AnswerOverrides map[string]string
	// ResumeSessionID continues a previous agent session.
	ResumeSessionID string
	// Bus, when non-nil, receives lifecycle events for the operation.
	Bus *events.Bus
}

func (o Options) engine() *engine.Engine {
	return engine.New(engine.Options{
		ProjectDir: o.ProjectDir,
		CLIPath:    o.CLIPath,
		Bus:        o.Bus,
	})
}

// CreateProject creates a new GSD project from an idea. The idea is plain
// text or a path to a file whose contents become the idea.
func CreateProject(ctx context.Context, idea string, opts Options) Result {
	result, _ := opts.engine().Run(ctx, engine.RunRequest{
		Operation: engine.OpNewProject,
		Idea:      idea,
		Timeout:   opts.Timeout,
		Answers:   opts.AnswerOverrides,
		Resume:    opts.ResumeSessionID,
	})
	return result
}

// PlanPhase plans the given phase non-interactively.
func PlanPhase(ctx context.Context, phase int, opts Options) Result {
	result, _ := opts.engine().Run(ctx, engine.RunRequest{
		Operation: engine.OpPlanPhase,
		Phase:     phase,
		Timeout:   opts.Timeout,
		Answers:   opts.AnswerOverrides,
		Resume:    opts.ResumeSessionID,
	})
	return result
}

// ExecutePhase executes the given phase non-interactively.
func ExecutePhase(ctx context.Context, phase int, opts Options) Result {
	result, _ := opts.engine().Run(ctx, engine.RunRequest{
		Operation: engine.OpExecutePhase,
		Phase:     phase,
		Timeout:   opts.Timeout,
		Answers:   opts.AnswerOverrides,
		Resume:    opts.ResumeSessionID,
	})
	return result
}

// GetStatus reads the project state from .planning/ without spawning the
// agent.
func GetStatus(projectDir string) Result {
	return engine.New(engine.Options{ProjectDir: projectDir}).Status(projectDir)
}

// AddProject registers a project directory in the per-user registry.
func AddProject(name, dir string) Result {
	start := time.Now()
	reg, err := defaultRegistry()
	if err != nil {
		return schema.Error(err.Error(), msSince(start))
	}
	entry, err := reg.Add(name, dir)
	if err != nil {
		return schema.Error(err.Error(), msSince(start))
	}
	if err := reg.Save(); err != nil {
		return schema.Error(err.Error(), msSince(start))
	}
	return schema.OK(entry, "", schema.ZeroUsage(), msSince(start))
}

// ListProjects returns the registered projects sorted by name.
func ListProjects() Result {
	start := time.Now()
	reg, err := defaultRegistry()
	if err != nil {
		return schema.Error(err.Error(), msSince(start))
	}
	return schema.OK(reg.List(), "", schema.ZeroUsage(), msSince(start))
}

// RemoveProject unregisters a project by name. The project directory itself
// is never touched.
func RemoveProject(name string) Result {
	start := time.Now()
	reg, err := defaultRegistry()
	if err != nil {
		return schema.Error(err.Error(), msSince(start))
	}
	if err := reg.Remove(name); err != nil {
		return schema.Error(err.Error(), msSince(start))
	}
	if err := reg.Save(); err != nil {
		return schema.Error(err.Error(), msSince(start))
	}
	return schema.OK("removed "+name, "", schema.ZeroUsage(), msSince(start))
}

func defaultRegistry() (*registry.Registry, error) {
	path, err := registry.DefaultPath()
	if err != nil {
		return nil, err
	}
	return registry.Load(path)
}

func msSince(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
