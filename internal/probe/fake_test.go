package probe

import (
	"context"
	"strings"
	"sync"

	"github.com/LISSConsulting/LISSTech.RalphGate/internal/config"
)

// fakeExec is an Executor that answers from canned responses keyed by the
// command's name and first argument, e.g. "go vet" or "sh -c".
type fakeExec struct {
	mu        sync.Mutex
	installed map[string]bool
	responses map[string]fakeResponse
	calls     []Command
}

type fakeResponse struct {
	out Output
	err error
}

func newFakeExec(installed ...string) *fakeExec {
	f := &fakeExec{installed: map[string]bool{}, responses: map[string]fakeResponse{}}
	for _, name := range installed {
		f.installed[name] = true
	}
	return f
}

func (f *fakeExec) on(key string, out Output, err error) *fakeExec {
	f.responses[key] = fakeResponse{out: out, err: err}
	return f
}

func (f *fakeExec) LookPath(file string) (string, error) {
	if f.installed[file] {
		return "/usr/bin/" + file, nil
	}
	return "", ErrToolMissing
}

func (f *fakeExec) Run(_ context.Context, c Command) (Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	key := c.Name
	if len(c.Args) > 0 {
		key += " " + c.Args[0]
	}
	r, ok := f.responses[key]
	if !ok {
		return Output{}, ErrToolMissing
	}
	return r.out, r.err
}

func (f *fakeExec) ran() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		out = append(out, c.String())
	}
	return out
}

func (f *fakeExec) ranPrefix(prefix string) bool {
	for _, c := range f.ran() {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

func opts(f *fakeExec, tc config.Toolchain, dir string) Options {
	return Options{Exec: f, Dir: dir, Toolchain: tc}
}
