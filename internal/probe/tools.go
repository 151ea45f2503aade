package probe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/LISSConsulting/LISSTech.RalphGate/internal/config"
)

// Built-in probe deadlines, used when the configuration leaves them at 0.
const (
	DefaultLintTimeout     = 30 * time.Second
	DefaultTestTimeout     = 120 * time.Second
	DefaultCoverageTimeout = 180 * time.Second
)

// shellNotFound is the exit status sh and cmd use for an unknown command.
const shellNotFound = 127

// Options carries what every probe needs to locate and run its tool.
type Options struct {
	Exec      Executor
	Dir       string
	Toolchain config.Toolchain
	Config    config.ProbesConfig
}

// NewOptions detects the toolchain of dir and returns Options using the
// real OS executor.
func NewOptions(dir string, cfg config.ProbesConfig) Options {
	return Options{
		Exec:      OSExecutor{},
		Dir:       dir,
		Toolchain: config.DetectToolchain(dir),
		Config:    cfg,
	}
}

// tool is one way of running a probe's backing tool.
type tool struct {
	name    string // display name
	require string // executable or path that must exist; empty = none
	cmd     Command
	shell   bool // user command run through the shell
}

// available reports whether t's executable is present.
func (o Options) available(t tool) bool {
	if t.require == "" {
		return true
	}
	if strings.ContainsRune(t.require, filepath.Separator) {
		_, err := os.Stat(t.require)
		return err == nil
	}
	_, err := o.Exec.LookPath(t.require)
	return err == nil
}

func (o Options) shellTool(line string) tool {
	return tool{name: line, cmd: ShellCommand(line, o.Dir), shell: true}
}

func (o Options) command(name string, args ...string) Command {
	return Command{Name: name, Args: args, Dir: o.Dir}
}

// run executes t under ctx. missing is true when the tool turned out not to
// exist (a shell reporting "command not found" included).
func (o Options) run(ctx context.Context, t tool) (out Output, missing bool, err error) {
	out, err = o.Exec.Run(ctx, t.cmd)
	if err != nil {
		return out, isMissing(err), err
	}
	if t.shell && out.ExitCode == shellNotFound {
		return out, true, nil
	}
	return out, false, nil
}

func isMissing(err error) bool {
	return errors.Is(err, ErrToolMissing)
}
