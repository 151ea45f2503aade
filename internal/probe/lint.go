package probe

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/LISSConsulting/LISSTech.RalphGate/internal/config"
)

// LintProbe counts static-analysis errors and warnings.
//
// Fallback policy: a missing linter and a linter that times out or crashes
// both report zero findings. An absent or broken linter says nothing about
// the code, so it never blocks completion.
type LintProbe struct {
	Options
	Timeout time.Duration
}

// NewLint returns the lint probe for o.
func NewLint(o Options) *LintProbe {
	return &LintProbe{
		Options: o,
		Timeout: config.Timeout(o.Config.LintTimeoutSeconds, DefaultLintTimeout),
	}
}

// Kind implements Probe.
func (p *LintProbe) Kind() Kind { return KindLint }

// Run implements Probe.
func (p *LintProbe) Run(ctx context.Context) Result {
	start := time.Now()
	res := p.run(ctx)
	res.Kind = KindLint
	res.Coverage = CoverageUnmeasured
	res.Duration = time.Since(start)
	return res
}

type lintTool struct {
	tool
	parse lintParser
}

func (p *LintProbe) run(ctx context.Context) Result {
	ctx, cancel := withTimeout(ctx, p.Timeout)
	defer cancel()

	var lastErr error
	var lastTool string
	for _, t := range p.tools() {
		if !p.available(t.tool) {
			continue
		}
		out, missing, err := p.Options.run(ctx, t.tool)
		switch {
		case missing:
			continue
		case errors.Is(err, ErrTimeout):
			return Result{
				Outcome: OutcomeTimedOut,
				Tool:    t.name,
				Passed:  true,
				Detail:  detailf("%s timed out after %s; findings not counted", t.name, p.Timeout),
			}
		case err != nil:
			lastErr, lastTool = err, t.name
			continue
		}

		rep, perr := t.parse(out)
		if perr != nil {
			// Try the next linter, e.g. go vet after an incompatible golangci-lint.
			lastErr, lastTool = perr, t.name
			continue
		}
		return Result{
			Outcome:  OutcomeMeasured,
			Tool:     t.name,
			Errors:   rep.errors,
			Warnings: rep.warnings,
			Passed:   rep.errors == 0,
			Detail:   truncate(rep.first, maxDetail),
		}
	}

	if lastErr != nil {
		return Result{
			Outcome: OutcomeCrashed,
			Tool:    lastTool,
			Passed:  true,
			Detail:  detailf("%s failed: %v; findings not counted", lastTool, lastErr),
		}
	}
	return Result{Outcome: OutcomeToolAbsent, Passed: true, Detail: "no linter detected"}
}

// tools lists the linters to try, in order of preference.
func (p *LintProbe) tools() []lintTool {
	if p.Config.LintCommand != "" {
		return []lintTool{{tool: p.shellTool(p.Config.LintCommand), parse: parseGenericLint}}
	}

	switch p.Toolchain {
	case config.ToolchainGo:
		return []lintTool{
			{
				tool: tool{
					name:    "golangci-lint",
					require: "golangci-lint",
					cmd:     p.command("golangci-lint", "run", "--out-format", "json", "./..."),
				},
				parse: parseGolangci,
			},
			{
				tool:  tool{name: "go vet", require: "go", cmd: p.command("go", "vet", "./...")},
				parse: parseGoVet,
			},
		}
	case config.ToolchainPython:
		return []lintTool{{
			tool:  tool{name: "ruff", require: "ruff", cmd: p.command("ruff", "check", "--output-format", "json", ".")},
			parse: parseRuff,
		}}
	case config.ToolchainNode:
		eslint := filepath.Join(p.Dir, "node_modules", ".bin", "eslint")
		return []lintTool{{
			tool:  tool{name: "eslint", require: eslint, cmd: p.command(eslint, "-f", "json", ".")},
			parse: parseESLint,
		}}
	case config.ToolchainRust:
		return []lintTool{{
			tool: tool{
				name:    "cargo clippy",
				require: "cargo",
				cmd:     p.command("cargo", "clippy", "--quiet", "--message-format", "json"),
			},
			parse: parseClippy,
		}}
	}
	return nil
}
