package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/LISSConsulting/LISSTech.RalphGate/internal/config"
	"github.com/LISSConsulting/LISSTech.RalphGate/internal/git"
	"github.com/LISSConsulting/LISSTech.RalphGate/internal/guidance"
	"github.com/LISSConsulting/LISSTech.RalphGate/internal/hook"
	"github.com/LISSConsulting/LISSTech.RalphGate/internal/logging"
	"github.com/LISSConsulting/LISSTech.RalphGate/internal/loop"
	"github.com/LISSConsulting/LISSTech.RalphGate/internal/probe"
	"github.com/LISSConsulting/LISSTech.RalphGate/internal/state"
	"github.com/LISSConsulting/LISSTech.RalphGate/internal/tui"
)

// gitTimeout bounds the git lookups made by `status`.
const gitTimeout = 3 * time.Second

func hookCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hook",
		Short: "Run the completion controller for one stop event (reads stdin, writes JSON)",
		Long: `Run the completion controller for one stop event.

Reads the hook event from stdin and writes a single JSON document to stdout.
Exits 1 to request another iteration and 0 otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			// --dir wins over $CLAUDE_PROJECT_DIR and the event's cwd, as it
			// does for every other command.
			dir, _ := cmd.Flags().GetString("dir")
			code := hook.Run(ctx, hook.Options{
				Stdin:      cmd.InOrStdin(),
				Stdout:     cmd.OutOrStdout(),
				ProjectDir: dir,
			})
			if code != 0 {
				return &exitError{code: code}
			}
			return nil
		},
	}
}

func startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Activate a completion loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			maxIter, _ := cmd.Flags().GetInt("max")
			eff, err := effective(cmd)
			if err != nil {
				return err
			}
			if maxIter <= 0 {
				maxIter = eff.MaxIterations
			}
			return startLoop(cmd.OutOrStdout(), state.NewStore(eff.ProjectDir, eff.MaxIterations), maxIter)
		},
	}
	cmd.Flags().Int("max", 0, "override max iterations (0 = use config)")
	return cmd
}

func startLoop(w io.Writer, store *state.Store, maxIter int) error {
	prev, err := store.Read()
	if err != nil {
		log := logging.Component("cli")
		log.Warn().Err(err).Msg("replacing unreadable state file")
	}
	if prev.Active {
		fmt.Fprintf(w, "Replacing active loop %s at iteration %d/%d\n", prev.LoopID, prev.Iteration, prev.MaxIterations)
	}
	s, err := store.Start(maxIter)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Started loop %s (max %d iterations)\n", s.LoopID, s.MaxIterations)
	return nil
}

func cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the active loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := projectDir(cmd)
			if err != nil {
				return err
			}
			return cancelLoop(cmd.OutOrStdout(), state.NewStore(dir, 0))
		},
	}
}

func cancelLoop(w io.Writer, store *state.Store) error {
	prev, readErr := store.Read()
	if err := store.Clear(); err != nil {
		return err
	}
	if readErr == nil && prev.Active {
		fmt.Fprintf(w, "Cancelled loop %s at iteration %d/%d\n", prev.LoopID, prev.Iteration, prev.MaxIterations)
		return nil
	}
	fmt.Fprintln(w, "No active loop.")
	return nil
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the persisted loop state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := projectDir(cmd)
			if err != nil {
				return err
			}
			props, err := statusProps(cmd.Context(), dir)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderStatus(props))
			return nil
		},
	}
}

// statusProps reads the state and the git context of dir. Git failures
// leave the branch and commit empty.
func statusProps(ctx context.Context, dir string) (tui.StatusProps, error) {
	s, err := state.NewStore(dir, 0).Read()
	if err != nil {
		return tui.StatusProps{}, err
	}
	props := tui.StatusProps{
		ProjectName: config.DetectProjectName(dir),
		Dir:         dir,
		State:       s,
		Now:         time.Now(),
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()
	g := git.NewRunner(dir)
	if branch, err := g.CurrentBranch(ctx); err == nil {
		props.Branch = branch
	}
	if commit, err := g.LastCommit(ctx); err == nil {
		props.LastCommit = commit
	}
	return props, nil
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run the completion probes once and print the guidance (state is not modified)",
		Long: `Run the completion probes once and print the guidance.

The loop state is read but never written. Exits 1 when a required condition
is unmet, which makes check usable as a CI gate.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			eff, err := effective(cmd)
			if err != nil {
				return err
			}
			return runCheck(ctx, cmd.OutOrStdout(), eff, probe.OSExecutor{})
		},
	}
}

func runCheck(ctx context.Context, w io.Writer, eff config.Effective, exec probe.Executor) error {
	s, err := state.NewStore(eff.ProjectDir, eff.MaxIterations).Read()
	if err != nil {
		log := logging.Component("cli")
		log.Warn().Err(err).Msg("state file ignored")
		s = state.LoopState{}
	}
	if !s.Active {
		// Preview the first decision of a loop that would start now.
		s = state.LoopState{Active: true, MaxIterations: eff.MaxIterations}
	}

	st := hook.Evaluate(ctx, eff, exec)
	d, err := loop.Decide(s, st)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, guidance.Format(d.Next, st, d.Action))

	if !st.AllConditionsMet {
		return &exitError{code: 1}
	}
	return nil
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Live view of the loop state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fd := os.Stdout.Fd()
			if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
				return errors.New("watch needs an interactive terminal; use 'ralphgate status' instead")
			}
			dir, err := projectDir(cmd)
			if err != nil {
				return err
			}
			return watchLoop(dir)
		},
	}
}

func watchLoop(dir string) error {
	ctx, cancel := signalContext()
	defer cancel()

	store := state.NewStore(dir, 0)
	w, err := tui.NewWatcher(store.Path(), logging.Component("watch"))
	if err != nil {
		return fmt.Errorf("watch %s: %w", store.Path(), err)
	}
	defer w.Close()
	go w.Run(ctx)

	props, err := statusProps(ctx, dir)
	if err != nil {
		// The model re-reads the state itself and shows the error.
		props = tui.StatusProps{ProjectName: config.DetectProjectName(dir), Dir: dir}
	}
	m := tui.New(store, w.Changes(), props)
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create ralph.toml in the project directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := projectDir(cmd)
			if err != nil {
				return err
			}
			path, err := config.InitFile(dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
			return nil
		},
	}
}

// projectDir resolves --dir, then $CLAUDE_PROJECT_DIR, then the working
// directory.
func projectDir(cmd *cobra.Command) (string, error) {
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		return dir, nil
	}
	if dir := os.Getenv(config.EnvProjectDir); dir != "" {
		return dir, nil
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return dir, nil
}

// effective resolves the configuration the hook would use in the project
// directory, logging recovered config problems.
func effective(cmd *cobra.Command) (config.Effective, error) {
	dir, err := projectDir(cmd)
	if err != nil {
		return config.Effective{}, err
	}
	env := config.ReadEnv(os.Getenv)
	loaded := config.LoadLenient(dir, env.ConfigPath)
	log := logging.Component("cli")
	for _, w := range loaded.Warnings {
		log.Warn().Str("config", loaded.Path).Msg(w)
	}
	return config.Resolve(loaded, env, dir, config.DefaultHook), nil
}
