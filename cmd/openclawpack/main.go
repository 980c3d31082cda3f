package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"openclawpack/internal/audit"
	"openclawpack/internal/engine"
	"openclawpack/internal/events"
	"openclawpack/internal/notify"
	"openclawpack/internal/registry"
	"openclawpack/internal/schema"
)

const (
	appName = "openclawpack"
	version = "0.1.0"
)

// errCommandFailed signals a failure already reported through the printed
// envelope; main exits 1 without printing anything further.
var errCommandFailed = errors.New("command failed")

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s: non-interactive GSD workflow orchestration\n\n", appName)
		fmt.Fprintf(os.Stderr, "Usage:\n  %s [command] [flags]\n\n", appName)
		fmt.Fprintln(os.Stderr, "Commands:")
		fmt.Fprintln(os.Stderr, "  new       Create a GSD project from an idea")
		fmt.Fprintln(os.Stderr, "  plan      Plan a phase non-interactively")
		fmt.Fprintln(os.Stderr, "  execute   Execute a phase non-interactively")
		fmt.Fprintln(os.Stderr, "  status    Show project status from .planning/")
		fmt.Fprintln(os.Stderr, "  projects  Manage the project registry")
		fmt.Fprintln(os.Stderr, "  version   Print the version")
		fmt.Fprintln(os.Stderr, "  help      Show this help")
	}

	args := os.Args[1:]
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		flag.Usage()
		return
	}

	var err error
	switch args[0] {
	case "new":
		err = runNew(args[1:])
	case "plan":
		err = runPhase(engine.OpPlanPhase, "plan", args[1:])
	case "execute":
		err = runPhase(engine.OpExecutePhase, "execute", args[1:])
	case "status":
		err = runStatus(args[1:])
	case "projects":
		err = runProjects(args[1:])
	case "version":
		fmt.Fprintf(os.Stdout, "%s %s\n", appName, version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		flag.Usage()
		os.Exit(1)
	}
	if err != nil {
		if !errors.Is(err, errCommandFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// answerFlag collects repeatable --answer key=value pairs.
type answerFlag map[string]string

func (a answerFlag) String() string {
	pairs := make([]string, 0, len(a))
	for k, v := range a {
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, ",")
}

func (a answerFlag) Set(value string) error {
	key, val, ok := strings.Cut(value, "=")
	if !ok || strings.TrimSpace(key) == "" {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	a[strings.TrimSpace(key)] = val
	return nil
}

// workflowFlags are the flags shared by the agent-spawning commands.
type workflowFlags struct {
	dir         string
	cli         string
	timeout     time.Duration
	answers     answerFlag
	answersFile string
	resume      string
	auditDB     string
	verbose     bool
	quiet       bool
	text        bool
	doNotify    bool
}

func registerWorkflowFlags(fs *flag.FlagSet) *workflowFlags {
	wf := &workflowFlags{answers: answerFlag{}}
	fs.StringVar(&wf.dir, "dir", "", "Project directory (default: current directory)")
	fs.StringVar(&wf.cli, "cli", "", "Path to the agent CLI binary (default: claude on PATH)")
	fs.DurationVar(&wf.timeout, "timeout", 0, "Timeout override (e.g. 15m)")
	fs.Var(wf.answers, "answer", "Answer override as key=value (repeatable)")
	fs.StringVar(&wf.answersFile, "answers-file", "", "YAML file with per-operation answers and timeouts")
	fs.StringVar(&wf.resume, "resume", "", "Resume a previous agent session by ID")
	fs.StringVar(&wf.auditDB, "audit-db", "", "Path to audit SQLite DB (default: audit/events.db)")
	fs.BoolVar(&wf.verbose, "verbose", false, "Stream raw agent output to stderr")
	fs.BoolVar(&wf.quiet, "quiet", false, "Suppress progress output, print only the result")
	fs.BoolVar(&wf.text, "text", false, "Print a human-readable summary instead of JSON")
	fs.BoolVar(&wf.doNotify, "notify", false, "Send a desktop notification on completion")
	return wf
}

func (wf *workflowFlags) buildEngine() (*engine.Engine, *events.Bus, error) {
	var fileCfg *engine.FileConfig
	if wf.answersFile != "" {
		cfg, err := engine.LoadFileConfig(wf.answersFile)
		if err != nil {
			return nil, nil, err
		}
		fileCfg = cfg
	}

	bus := events.NewBus()
	if !wf.quiet {
		bus.Subscribe(func(evt events.Event) {
			fmt.Fprintf(os.Stderr, "[%s] %s: %s\n", evt.Type, evt.Operation, evt.Message)
		})
	}
	if wf.doNotify {
		n := &notify.Notifier{Enabled: true}
		n.Watch(bus)
	}

	opts := engine.Options{
		ProjectDir: wf.dir,
		CLIPath:    wf.cli,
		Answers:    fileCfg,
		Bus:        bus,
		Audit:      audit.NewLogger(wf.auditDB),
	}
	if wf.verbose {
		opts.Verbose = os.Stderr
	}
	return engine.New(opts), bus, nil
}

// emit prints the envelope and converts a failed run into a non-zero exit.
func emit(result schema.Result, asText bool) error {
	if asText {
		fmt.Fprint(os.Stdout, result.Text())
	} else {
		out, err := result.JSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, out)
	}
	if !result.Success {
		return errCommandFailed
	}
	return nil
}

func runNew(args []string) error {
	fs := flag.NewFlagSet("new", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	wf := registerWorkflowFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%s new: project idea (text or file path) is required", appName)
	}
	idea := strings.Join(fs.Args(), " ")

	eng, _, err := wf.buildEngine()
	if err != nil {
		return err
	}
	result, _ := eng.Run(context.Background(), engine.RunRequest{
		Operation: engine.OpNewProject,
		Idea:      idea,
		Timeout:   wf.timeout,
		Answers:   wf.answers,
		Resume:    wf.resume,
	})
	return emit(result, wf.text)
}

func runPhase(operation, name string, args []string) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	wf := registerWorkflowFlags(fs)
	phase := fs.Int("phase", 0, "Phase number (may also be given as a positional argument)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *phase == 0 && fs.NArg() > 0 {
		if _, err := fmt.Sscanf(fs.Arg(0), "%d", phase); err != nil {
			return fmt.Errorf("%s %s: invalid phase number %q", appName, name, fs.Arg(0))
		}
	}
	if *phase < 1 {
		return fmt.Errorf("%s %s: phase number is required", appName, name)
	}

	eng, _, err := wf.buildEngine()
	if err != nil {
		return err
	}
	result, _ := eng.Run(context.Background(), engine.RunRequest{
		Operation: operation,
		Phase:     *phase,
		Timeout:   wf.timeout,
		Answers:   wf.answers,
		Resume:    wf.resume,
	})
	return emit(result, wf.text)
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	dir := fs.String("dir", "", "Project directory (default: current directory)")
	regPath := fs.String("registry", "", "Registry file override")
	asText := fs.Bool("text", false, "Print a human-readable summary instead of JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// A positional argument names a registered project instead of a path.
	target := *dir
	if fs.NArg() > 0 {
		reg, err := openRegistry(*regPath)
		if err != nil {
			return err
		}
		entry := reg.Get(fs.Arg(0))
		if entry == nil {
			return fmt.Errorf("project %q is not registered", fs.Arg(0))
		}
		target = entry.Path
	}

	eng := engine.New(engine.Options{ProjectDir: target})
	return emit(eng.Status(target), *asText)
}

func runProjects(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		return fmt.Errorf("%s projects: missing subcommand (add, list, remove, sync)", appName)
	}
	switch args[0] {
	case "add":
		return runProjectsAdd(args[1:])
	case "list":
		return runProjectsList(args[1:])
	case "remove":
		return runProjectsRemove(args[1:])
	case "sync":
		return runProjectsSync(args[1:])
	default:
		return fmt.Errorf("%s projects: unknown subcommand %q", appName, args[0])
	}
}

func openRegistry(path string) (*registry.Registry, error) {
	if path == "" {
		var err error
		path, err = registry.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	return registry.Load(path)
}

func runProjectsAdd(args []string) error {
	fs := flag.NewFlagSet("projects add", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	dir := fs.String("dir", ".", "Project directory to register")
	regPath := fs.String("registry", "", "Registry file override")
	asText := fs.Bool("text", false, "Print a human-readable summary instead of JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%s projects add: project name is required", appName)
	}

	start := time.Now()
	reg, err := openRegistry(*regPath)
	if err != nil {
		return err
	}
	entry, err := reg.Add(fs.Arg(0), *dir)
	if err != nil {
		return emit(schema.Error(err.Error(), time.Since(start).Milliseconds()), *asText)
	}
	if err := reg.Save(); err != nil {
		return emit(schema.Error(err.Error(), time.Since(start).Milliseconds()), *asText)
	}
	return emit(schema.OK(entry, "", schema.ZeroUsage(), time.Since(start).Milliseconds()), *asText)
}

func runProjectsList(args []string) error {
	fs := flag.NewFlagSet("projects list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	regPath := fs.String("registry", "", "Registry file override")
	asText := fs.Bool("text", false, "Print a human-readable summary instead of JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	start := time.Now()
	reg, err := openRegistry(*regPath)
	if err != nil {
		return err
	}
	return emit(schema.OK(reg.List(), "", schema.ZeroUsage(), time.Since(start).Milliseconds()), *asText)
}

func runProjectsRemove(args []string) error {
	fs := flag.NewFlagSet("projects remove", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	regPath := fs.String("registry", "", "Registry file override")
	asText := fs.Bool("text", false, "Print a human-readable summary instead of JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%s projects remove: project name is required", appName)
	}

	start := time.Now()
	reg, err := openRegistry(*regPath)
	if err != nil {
		return err
	}
	name := fs.Arg(0)
	if err := reg.Remove(name); err != nil {
		return emit(schema.Error(err.Error(), time.Since(start).Milliseconds()), *asText)
	}
	if err := reg.Save(); err != nil {
		return emit(schema.Error(err.Error(), time.Since(start).Milliseconds()), *asText)
	}
	return emit(schema.OK(fmt.Sprintf("removed %s", name), "", schema.ZeroUsage(), time.Since(start).Milliseconds()), *asText)
}

func runProjectsSync(args []string) error {
	fs := flag.NewFlagSet("projects sync", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	regPath := fs.String("registry", "", "Registry file override")
	asText := fs.Bool("text", false, "Print a human-readable summary instead of JSON")
	showDiffs := fs.Bool("diff", false, "Print per-project state diffs to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}

	start := time.Now()
	reg, err := openRegistry(*regPath)
	if err != nil {
		return err
	}
	results, err := reg.Sync()
	if err != nil {
		return emit(schema.Error(err.Error(), time.Since(start).Milliseconds()), *asText)
	}
	if err := reg.Save(); err != nil {
		return emit(schema.Error(err.Error(), time.Since(start).Milliseconds()), *asText)
	}
	if *showDiffs {
		for _, res := range results {
			if res.Diff != "" {
				fmt.Fprint(os.Stderr, res.Diff)
			}
		}
	}
	return emit(schema.OK(results, "", schema.ZeroUsage(), time.Since(start).Milliseconds()), *asText)
}
