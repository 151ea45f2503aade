package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initTestRepo creates a temporary git repo with one commit and returns
// its path. It configures local user.name and user.email so commits work.
func initTestRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()

	cmds := [][]string{
		{"git", "init"},
		{"git", "config", "user.email", "test@test.com"},
		{"git", "config", "user.name", "Test"},
		{"git", "checkout", "-b", "main"},
	}
	for _, args := range cmds {
		gitCmd(t, dir, args...)
	}

	// Create a file and make an initial commit
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# test\n"), 0644))
	gitCmd(t, dir, "git", "add", ".")
	gitCmd(t, dir, "git", "commit", "-m", "initial commit")

	return dir
}

func gitCmd(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "%v: %s", args, out)
}

func TestCurrentBranch(t *testing.T) {
	dir := initTestRepo(t)
	r := NewRunner(dir)

	branch, err := r.CurrentBranch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "main", branch)
}

func TestLastCommit(t *testing.T) {
	dir := initTestRepo(t)
	r := NewRunner(dir)

	last, err := r.LastCommit(context.Background())
	require.NoError(t, err)
	assert.Contains(t, last, "initial commit")
}

func TestModifiedFiles(t *testing.T) {
	dir := initTestRepo(t)
	r := NewRunner(dir)
	ctx := context.Background()

	t.Run("clean repo", func(t *testing.T) {
		files, err := r.ModifiedFiles(ctx)
		require.NoError(t, err)
		assert.Empty(t, files)
	})

	t.Run("dirty repo", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# changed\n"), 0644))
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "pkg"), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "pkg", "new file.go"), []byte("package pkg\n"), 0644))

		files, err := r.ModifiedFiles(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"README.md", "pkg/new file.go"}, files)
	})
}

func TestModifiedFiles_SkipsRalphDir(t *testing.T) {
	dir := initTestRepo(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".ralph"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".ralph", "ralphgate.log"), []byte("{}\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".ralph", "loop-state.json"), []byte("{}\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0644))

	files, err := NewRunner(dir).ModifiedFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go"}, files)
}

func TestModifiedFiles_FromSubdirectory(t *testing.T) {
	dir := initTestRepo(t)
	sub := filepath.Join(dir, "app")
	require.NoError(t, os.MkdirAll(filepath.Join(sub, ".ralph"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, ".ralph", "ralphgate.log"), []byte("{}\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "app.go"), []byte("package app\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# changed\n"), 0644))

	files, err := NewRunner(sub).ModifiedFiles(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"README.md", "app/app.go"}, files)
}

func TestModifiedFiles_NotARepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	r := NewRunner(t.TempDir())
	_, err := r.ModifiedFiles(context.Background())
	assert.Error(t, err)
}

func TestParsePorcelainZ(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", []string{}},
		{"modified and untracked", " M main.go\x00?? notes.txt\x00", []string{"main.go", "notes.txt"}},
		{"rename reports new path", "R  new.go\x00old.go\x00A  added.go\x00", []string{"new.go", "added.go"}},
		{"spaces kept", "?? dir/a b.go\x00", []string{"dir/a b.go"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parsePorcelainZ(tt.in))
		})
	}
}

func TestNewRunner(t *testing.T) {
	r := NewRunner("/tmp/test")
	assert.Equal(t, "/tmp/test", r.Dir)
}
