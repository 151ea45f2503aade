// Package hook runs one controller invocation: read the event, resolve the
// effective configuration, evaluate completion, decide, commit and answer
// the host with a JSON document and an exit code.
package hook

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/LISSConsulting/LISSTech.RalphGate/internal/claude"
	"github.com/LISSConsulting/LISSTech.RalphGate/internal/completion"
	"github.com/LISSConsulting/LISSTech.RalphGate/internal/config"
	"github.com/LISSConsulting/LISSTech.RalphGate/internal/git"
	"github.com/LISSConsulting/LISSTech.RalphGate/internal/guidance"
	"github.com/LISSConsulting/LISSTech.RalphGate/internal/logging"
	"github.com/LISSConsulting/LISSTech.RalphGate/internal/loop"
	"github.com/LISSConsulting/LISSTech.RalphGate/internal/notify"
	"github.com/LISSConsulting/LISSTech.RalphGate/internal/probe"
	"github.com/LISSConsulting/LISSTech.RalphGate/internal/state"
)

// ModifiedFilesFunc lists the files changed in dir.
type ModifiedFilesFunc func(ctx context.Context, dir string) ([]string, error)

// Options wires an invocation to its environment. Zero values select the
// process defaults.
type Options struct {
	Stdin  io.Reader
	Stdout io.Writer
	Getenv func(string) string

	// ProjectDir, when set, is the project directory regardless of
	// CLAUDE_PROJECT_DIR and the event's cwd.
	ProjectDir string
	// Dir is the project directory used when neither CLAUDE_PROJECT_DIR
	// nor the event's cwd names one.
	Dir string
	// Hook is the hooks.<name> table that applies; defaults to "stop".
	Hook string

	Exec          probe.Executor
	ModifiedFiles ModifiedFilesFunc
	Now           func() time.Time
}

func (o *Options) defaults() {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Getenv == nil {
		o.Getenv = os.Getenv
	}
	if o.Dir == "" {
		o.Dir, _ = os.Getwd()
	}
	if o.Hook == "" {
		o.Hook = config.DefaultHook
	}
	if o.Exec == nil {
		o.Exec = probe.OSExecutor{}
	}
	if o.ModifiedFiles == nil {
		o.ModifiedFiles = func(ctx context.Context, dir string) ([]string, error) {
			return git.NewRunner(dir).ModifiedFiles(ctx)
		}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Run executes one invocation and returns the process exit code: 1 asks
// the host for another iteration, 0 means no further iteration. Run never
// panics and always writes exactly one JSON document to Stdout.
func Run(ctx context.Context, opts Options) (code int) {
	opts.defaults()
	log := logging.Component("hook")
	written := false
	respond := func(out claude.HookOutput) {
		if written {
			return
		}
		written = true
		if err := claude.WriteOutput(opts.Stdout, out); err != nil {
			log.Error().Err(err).Msg("write hook output")
		}
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Msg("controller panicked")
			respond(claude.NewOutput("", fmt.Sprintf("Ralph Loop: ERROR - internal error (%v); no further iteration requested", r)))
			code = 0
		}
	}()

	// Always drain stdin so the host never blocks on the pipe.
	in, inErr := claude.ParseHookInput(opts.Stdin)

	env := config.ReadEnv(opts.Getenv)
	if env.Disabled {
		respond(claude.HookOutput{})
		return 0
	}

	projectDir := firstNonEmpty(opts.ProjectDir, env.ProjectDir, in.Cwd, opts.Dir)
	loaded := config.LoadLenient(projectDir, env.ConfigPath)
	eff := config.Resolve(loaded, env, projectDir, opts.Hook)

	// The log file is opened only when there is something to record, so
	// idle invocations leave the project tree untouched.
	closeLog := func() error { return nil }
	defer func() { closeLog() }()
	opened := false
	openLog := func() {
		if opened {
			return
		}
		opened = true
		closeLog = initLogging(eff)
		log = logging.Component("hook")
	}

	if inErr != nil || len(loaded.Warnings) > 0 {
		openLog()
	}
	if inErr != nil {
		log.Warn().Err(inErr).Msg("ignoring hook input")
	}
	for _, w := range loaded.Warnings {
		log.Warn().Str("config", loaded.Path).Msg(w)
	}

	if eff.Disabled {
		log.Info().Str("reason", eff.DisabledReason).Msg("controller disabled")
		respond(claude.HookOutput{})
		return 0
	}

	store := state.NewStore(projectDir, eff.MaxIterations)
	store.Now = opts.Now
	s, loadErr := store.Load(eff.Activation)
	if loadErr != nil {
		openLog()
		log.Warn().Err(loadErr).Str("path", store.Path()).Msg("state file ignored")
	}
	if !s.Active {
		respond(claude.HookOutput{})
		return 0
	}

	openLog()
	log.Debug().
		Str("project_dir", projectDir).
		Str("config", eff.ConfigPath).
		Str("session_id", in.SessionID).
		Int("iteration", s.Iteration).
		Msg("hook invoked")

	st := Evaluate(ctx, eff, opts.Exec)

	if files, err := opts.ModifiedFiles(ctx, projectDir); err != nil {
		log.Debug().Err(err).Msg("modified files unavailable")
	} else {
		s.FilesModified = files
	}

	engine := &loop.Engine{Store: store, Log: logging.Component("loop")}
	d, stepErr := engine.Step(s, st)
	text := guidance.Format(d.Next, st, d.Action)
	exit := d.Action.ExitCode()
	if stepErr != nil {
		// Without a committed state the cap cannot be enforced; stop asking
		// for iterations.
		text += "\nLoop state could not be saved; no further iteration requested."
		exit = 0
	}

	if d.Action.Terminal() {
		sendNotification(ctx, eff, d, st)
	}

	respond(claude.NewOutput(in.HookEventName, text))
	return exit
}

// Evaluate runs the completion evaluator for eff, or returns an unchecked
// status when completion checking is disabled for the hook.
func Evaluate(ctx context.Context, eff config.Effective, exec probe.Executor) completion.Status {
	if !eff.CheckCompletion {
		return completion.Unchecked()
	}
	opts := probe.Options{
		Exec:      exec,
		Dir:       eff.ProjectDir,
		Toolchain: config.DetectToolchain(eff.ProjectDir),
		Config:    eff.Config.Probes,
	}
	e := completion.New(eff.Config.Loop.Completion, opts, logging.Component("completion"))
	return e.Evaluate(ctx)
}

func initLogging(eff config.Effective) func() error {
	file := eff.Config.Logging.File
	if file != "" && !filepath.IsAbs(file) {
		file = filepath.Join(eff.ProjectDir, file)
	}
	closeFn, err := logging.Init(logging.Config{
		Level:  eff.LogLevel,
		Format: eff.Config.Logging.Format,
		File:   file,
	})
	if err != nil {
		// Logging is best effort; the decision must still be made.
		closeFn, _ = logging.Init(logging.Config{Level: "disabled"})
	}
	return closeFn
}

func sendNotification(ctx context.Context, eff config.Effective, d loop.Decision, st completion.Status) {
	nc := eff.Config.Notifications
	n := notify.New(nc.URL, config.DetectProjectName(eff.ProjectDir), nc.OnComplete, nc.OnStop)
	if !n.Wants(d.Action) {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, notify.Timeout)
	defer cancel()

	log := logging.Component("notify")
	if _, err := n.Notify(ctx, d.Action, guidance.Summary(d.Next, st, d.Action)); err != nil {
		log.Warn().Err(err).Msg("notification failed")
		return
	}
	log.Debug().Str("action", string(d.Action)).Msg("notification sent")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
