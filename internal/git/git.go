// Package git reads repository state for the loop record: which files the
// agent touched and where the working tree stands.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ralphDir holds the controller's state and log files.
const ralphDir = ".ralph"

// Runner executes git commands in a working directory.
type Runner struct {
	Dir string // working directory for git commands
}

// NewRunner creates a Runner for the given directory.
func NewRunner(dir string) *Runner {
	return &Runner{Dir: dir}
}

// CurrentBranch returns the name of the current git branch.
func (r *Runner) CurrentBranch(ctx context.Context) (string, error) {
	out, err := r.run(ctx, "branch", "--show-current")
	if err != nil {
		return "", fmt.Errorf("git current branch: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// LastCommit returns the short SHA and message of the most recent commit.
func (r *Runner) LastCommit(ctx context.Context) (string, error) {
	out, err := r.run(ctx, "log", "-1", "--format=%h %s")
	if err != nil {
		return "", fmt.Errorf("git last commit: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// ModifiedFiles returns the paths with staged, unstaged or untracked
// changes, relative to the repository root, in git's order. Renames and
// copies report the new path. The controller's own .ralph directory under
// Dir is left out.
func (r *Runner) ModifiedFiles(ctx context.Context) ([]string, error) {
	out, err := r.run(ctx, "status", "--porcelain", "-z", "--untracked-files=all",
		"--", ":/", ":(exclude)"+ralphDir)
	if err != nil {
		return nil, fmt.Errorf("git status: %w", err)
	}
	return parsePorcelainZ(out), nil
}

// parsePorcelainZ parses `git status --porcelain -z`. Each entry is
// "XY path"; rename and copy entries are followed by the source path as a
// separate NUL-terminated field.
func parsePorcelainZ(out string) []string {
	files := []string{}
	fields := strings.Split(out, "\x00")
	for i := 0; i < len(fields); i++ {
		entry := fields[i]
		if len(entry) < 4 {
			continue
		}
		status, path := entry[:2], entry[3:]
		files = append(files, path)
		if status[0] == 'R' || status[0] == 'C' {
			i++ // skip source path
		}
	}
	return files
}

// run executes a git command and returns its stdout.
func (r *Runner) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg == "" {
			errMsg = strings.TrimSpace(stdout.String())
		}
		return "", fmt.Errorf("%s: %w", errMsg, err)
	}
	return stdout.String(), nil
}
