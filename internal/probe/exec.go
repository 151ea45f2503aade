package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"sync"
	"time"
)

var (
	// ErrToolMissing means the command's executable could not be found.
	ErrToolMissing = errors.New("probe: tool not found")
	// ErrTimeout means the command was killed at its deadline.
	ErrTimeout = errors.New("probe: timed out")
)

// killGrace is how long Wait keeps reading output after the process group
// has been killed.
const killGrace = 2 * time.Second

// Command is one external tool invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
}

// String renders the command for logs and diagnostics.
func (c Command) String() string {
	s := c.Name
	for _, a := range c.Args {
		s += " " + a
	}
	return s
}

// Output holds what a finished command produced.
type Output struct {
	Stdout   string
	Stderr   string
	Combined string // stdout and stderr interleaved in arrival order
	ExitCode int
	Duration time.Duration
}

// Executor runs external commands. A non-zero exit is not an error: it is
// reported through Output.ExitCode. Run returns ErrToolMissing when the
// executable cannot be found and ErrTimeout when ctx's deadline expires.
type Executor interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, cmd Command) (Output, error)
}

// OSExecutor runs commands as child processes. On expiry the whole process
// group is killed so test binaries spawned by the tool die with it.
type OSExecutor struct{}

// LookPath wraps exec.LookPath.
func (OSExecutor) LookPath(file string) (string, error) {
	path, err := exec.LookPath(file)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrToolMissing, file)
	}
	return path, nil
}

// Run executes cmd and waits for it to exit or for ctx to end.
func (OSExecutor) Run(ctx context.Context, c Command) (Output, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.WaitDelay = killGrace
	setProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	combined := &lockedBuffer{}
	cmd.Stdout = &teeWriter{own: &stdout, shared: combined}
	cmd.Stderr = &teeWriter{own: &stderr, shared: combined}

	start := time.Now()
	err := cmd.Run()
	out := Output{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Combined: combined.String(),
		Duration: time.Since(start),
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return out, fmt.Errorf("%w: %s after %s", ErrTimeout, c.Name, out.Duration.Round(time.Millisecond))
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// Command ran but returned non-zero exit code.
			out.ExitCode = exitErr.ExitCode()
			return out, nil
		}
		if errors.Is(err, exec.ErrNotFound) {
			return out, fmt.Errorf("%w: %s", ErrToolMissing, c.Name)
		}
		return out, fmt.Errorf("probe: run %s: %w", c.Name, err)
	}
	return out, nil
}

// ShellCommand wraps a user-supplied command line. On Windows, the command
// is run via cmd /C; on Unix, via sh -c.
func ShellCommand(line, dir string) Command {
	if runtime.GOOS == "windows" {
		return Command{Name: "cmd", Args: []string{"/C", line}, Dir: dir}
	}
	return Command{Name: "sh", Args: []string{"-c", line}, Dir: dir}
}

// lockedBuffer is a bytes.Buffer safe for the concurrent stdout/stderr
// copiers started by os/exec.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type teeWriter struct {
	own    *bytes.Buffer
	shared *lockedBuffer
}

func (w *teeWriter) Write(p []byte) (int, error) {
	w.own.Write(p)
	return w.shared.Write(p)
}
