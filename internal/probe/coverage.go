package probe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/LISSConsulting/LISSTech.RalphGate/internal/config"
)

// pytestUsageError is pytest's exit status for bad arguments, which is what
// --cov produces when pytest-cov is not installed.
const pytestUsageError = 4

// CoverageProbe measures test coverage as a percentage.
//
// Fallback policy: a missing coverage tool reports CoverageUnmeasured,
// which never blocks completion; a run that times out or crashes reports
// 0% so the coverage condition fails.
type CoverageProbe struct {
	Options
	Timeout time.Duration
}

// NewCoverage returns the coverage probe for o.
func NewCoverage(o Options) *CoverageProbe {
	return &CoverageProbe{
		Options: o,
		Timeout: config.Timeout(o.Config.CoverageTimeoutSeconds, DefaultCoverageTimeout),
	}
}

// Kind implements Probe.
func (p *CoverageProbe) Kind() Kind { return KindCoverage }

// Run implements Probe.
func (p *CoverageProbe) Run(ctx context.Context) Result {
	start := time.Now()
	res := p.run(ctx)
	res.Kind = KindCoverage
	res.Duration = time.Since(start)
	return res
}

func unmeasured(detail string) Result {
	return Result{Outcome: OutcomeToolAbsent, Passed: true, Coverage: CoverageUnmeasured, Detail: detail}
}

func (p *CoverageProbe) run(ctx context.Context) Result {
	ctx, cancel := withTimeout(ctx, p.Timeout)
	defer cancel()

	if p.Config.CoverageCommand == "" && p.Toolchain == config.ToolchainGo {
		return p.runGo(ctx)
	}

	t, parse, ok := p.tool()
	if !ok || !p.available(t) {
		return unmeasured("coverage not measured: no coverage tool detected")
	}

	out, missing, err := p.Options.run(ctx, t)
	if res, done := p.failure(t.name, missing, err); done {
		return res
	}
	if p.Toolchain == config.ToolchainPython && p.Config.CoverageCommand == "" && out.ExitCode == pytestUsageError {
		return unmeasured("coverage not measured: pytest-cov not installed")
	}
	return p.measure(t.name, out, parse)
}

// runGo writes a cover profile with go test and totals it with go tool cover.
func (p *CoverageProbe) runGo(ctx context.Context) Result {
	if _, err := p.Exec.LookPath("go"); err != nil {
		return unmeasured("coverage not measured: go not installed")
	}

	tmp, err := os.MkdirTemp("", "ralphgate-cover-*")
	if err != nil {
		return p.crashed("go test -cover", err)
	}
	defer os.RemoveAll(tmp)
	profile := filepath.Join(tmp, "cover.out")

	test := tool{name: "go test -cover", cmd: p.command("go", "test", "-coverprofile="+profile, "./...")}
	_, missing, err := p.Options.run(ctx, test)
	if res, done := p.failure(test.name, missing, err); done {
		return res
	}

	cover := tool{name: "go tool cover", cmd: p.command("go", "tool", "cover", "-func="+profile)}
	out, missing, err := p.Options.run(ctx, cover)
	if res, done := p.failure(cover.name, missing, err); done {
		return res
	}
	return p.measure(cover.name, out, parseGoCoverFunc)
}

// failure maps a run error onto the coverage fallback policy. done is false
// when the run succeeded and its output should be parsed.
func (p *CoverageProbe) failure(name string, missing bool, err error) (Result, bool) {
	switch {
	case missing:
		return unmeasured("coverage not measured: " + name + " not found"), true
	case errors.Is(err, ErrTimeout):
		return Result{
			Outcome:  OutcomeTimedOut,
			Tool:     name,
			Coverage: 0,
			Detail:   detailf("%s timed out after %s", name, p.Timeout),
		}, true
	case err != nil:
		return p.crashed(name, err), true
	}
	return Result{}, false
}

func (p *CoverageProbe) crashed(name string, err error) Result {
	return Result{
		Outcome:  OutcomeCrashed,
		Tool:     name,
		Coverage: 0,
		Detail:   detailf("%s failed: %v", name, err),
	}
}

// measure parses out. A run that exits cleanly without a figure is
// unmeasured; a failing run without one is a crash.
func (p *CoverageProbe) measure(name string, out Output, parse coverParser) Result {
	pct, ok := parse(out)
	if ok {
		return Result{
			Outcome:  OutcomeMeasured,
			Tool:     name,
			Passed:   true,
			Coverage: pct,
			Detail:   fmt.Sprintf("%.1f%% covered", pct),
		}
	}
	if out.ExitCode == 0 {
		return unmeasured("coverage not measured: no figure in " + name + " output")
	}
	return p.crashed(name, fmt.Errorf("exit status %d: %s", out.ExitCode, testFailureDetail(out)))
}

// tool returns the coverage command for non-Go projects.
func (p *CoverageProbe) tool() (tool, coverParser, bool) {
	if p.Config.CoverageCommand != "" {
		return p.shellTool(p.Config.CoverageCommand), parseLastPercent, true
	}

	switch p.Toolchain {
	case config.ToolchainPython:
		return tool{
			name:    "pytest --cov",
			require: "pytest",
			cmd:     p.command("pytest", "-q", "--cov", "--cov-report", "term"),
		}, parsePytestCov, true
	case config.ToolchainRust:
		return tool{
			name:    "cargo llvm-cov",
			require: "cargo-llvm-cov",
			cmd:     p.command("cargo", "llvm-cov", "--summary-only"),
		}, parseLLVMCov, true
	}
	return tool{}, nil, false
}
