package probe

import (
	"context"
	"errors"
	"time"

	"github.com/LISSConsulting/LISSTech.RalphGate/internal/config"
)

// pytestNoTests is pytest's exit status when no tests were collected.
const pytestNoTests = 5

// TestProbe runs the project's test suite.
//
// Fallback policy: no detectable test framework passes ("no framework
// detected"); a run that times out or cannot be started fails, since a
// hung suite most likely means real trouble.
type TestProbe struct {
	Options
	Timeout time.Duration
}

// NewTests returns the test probe for o.
func NewTests(o Options) *TestProbe {
	return &TestProbe{
		Options: o,
		Timeout: config.Timeout(o.Config.TestTimeoutSeconds, DefaultTestTimeout),
	}
}

// Kind implements Probe.
func (p *TestProbe) Kind() Kind { return KindTests }

// Run implements Probe.
func (p *TestProbe) Run(ctx context.Context) Result {
	start := time.Now()
	res := p.run(ctx)
	res.Kind = KindTests
	res.Coverage = CoverageUnmeasured
	res.Duration = time.Since(start)
	return res
}

func (p *TestProbe) run(ctx context.Context) Result {
	t, ok := p.tool()
	if !ok || !p.available(t) {
		return Result{Outcome: OutcomeToolAbsent, Passed: true, Detail: "no framework detected"}
	}

	ctx, cancel := withTimeout(ctx, p.Timeout)
	defer cancel()

	out, missing, err := p.Options.run(ctx, t)
	switch {
	case missing:
		return Result{Outcome: OutcomeToolAbsent, Passed: true, Detail: "no framework detected"}
	case errors.Is(err, ErrTimeout):
		return Result{
			Outcome: OutcomeTimedOut,
			Tool:    t.name,
			Detail:  detailf("%s timed out after %s", t.name, p.Timeout),
		}
	case err != nil:
		return Result{
			Outcome: OutcomeCrashed,
			Tool:    t.name,
			Detail:  detailf("%s could not run: %v", t.name, err),
		}
	}

	res := Result{Outcome: OutcomeMeasured, Tool: t.name}
	switch {
	case out.ExitCode == 0:
		res.Passed = true
		res.Detail = truncate(lastLine(out.Combined), maxDetail)
	case p.Toolchain == config.ToolchainPython && p.Config.TestCommand == "" && out.ExitCode == pytestNoTests:
		res.Passed = true
		res.Detail = "no tests collected"
	default:
		res.Detail = truncate(testFailureDetail(out), maxDetail)
	}
	return res
}

// tool returns the test command for the project, if one can be derived.
func (p *TestProbe) tool() (tool, bool) {
	if p.Config.TestCommand != "" {
		return p.shellTool(p.Config.TestCommand), true
	}

	switch p.Toolchain {
	case config.ToolchainGo:
		return tool{name: "go test", require: "go", cmd: p.command("go", "test", "./...")}, true
	case config.ToolchainPython:
		return tool{name: "pytest", require: "pytest", cmd: p.command("pytest", "-q")}, true
	case config.ToolchainNode:
		if config.NodeTestScript(p.Dir) == "" {
			return tool{}, false
		}
		return tool{name: "npm test", require: "npm", cmd: p.command("npm", "test", "--silent")}, true
	case config.ToolchainRust:
		return tool{name: "cargo test", require: "cargo", cmd: p.command("cargo", "test", "--quiet")}, true
	}
	return tool{}, false
}
