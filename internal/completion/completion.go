// Package completion aggregates probe results into a single completion
// status under the configured set of required conditions.
package completion

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/LISSConsulting/LISSTech.RalphGate/internal/config"
	"github.com/LISSConsulting/LISSTech.RalphGate/internal/probe"
)

// Status is the outcome of one evaluation. It is rebuilt on every
// invocation and never persisted.
type Status struct {
	// Checked is false when evaluation was skipped (hooks.*.check_completion
	// disabled); every condition is then unknown and AllConditionsMet false.
	Checked bool

	ZeroErrors       bool
	ZeroWarnings     bool
	TestsPass        bool
	CoverageMet      bool
	AllConditionsMet bool

	// Details holds the raw probe results of enabled conditions only.
	Details map[probe.Kind]probe.Result
	// CoverageThreshold is the configured threshold, 0 when disabled.
	CoverageThreshold int
}

// Unchecked is the status used when completion checking is turned off.
func Unchecked() Status {
	return Status{Details: map[probe.Kind]probe.Result{}}
}

// Result returns the detail recorded for kind.
func (s Status) Result(kind probe.Kind) (probe.Result, bool) {
	r, ok := s.Details[kind]
	return r, ok
}

// LintCounts returns the error and warning counts when the linter actually
// measured them.
func (s Status) LintCounts() (errs, warns int, ok bool) {
	r, found := s.Details[probe.KindLint]
	if !found || !r.Measured() {
		return 0, 0, false
	}
	return r.Errors, r.Warnings, true
}

// Evaluator runs the probes that the enabled conditions require.
type Evaluator struct {
	Conditions config.CompletionConfig
	Lint       probe.Probe
	Tests      probe.Probe
	Coverage   probe.Probe
	Log        zerolog.Logger
}

// New returns an Evaluator backed by the built-in probes for opts.
func New(cond config.CompletionConfig, opts probe.Options, log zerolog.Logger) *Evaluator {
	return &Evaluator{
		Conditions: cond,
		Lint:       probe.NewLint(opts),
		Tests:      probe.NewTests(opts),
		Coverage:   probe.NewCoverage(opts),
		Log:        log,
	}
}

// required lists the probes the enabled conditions need.
func (e *Evaluator) required() []probe.Probe {
	var ps []probe.Probe
	c := e.Conditions
	if (c.ZeroErrors || c.ZeroWarnings) && e.Lint != nil {
		ps = append(ps, e.Lint)
	}
	if c.TestsPass && e.Tests != nil {
		ps = append(ps, e.Tests)
	}
	if c.CoverageThreshold > 0 && e.Coverage != nil {
		ps = append(ps, e.Coverage)
	}
	return ps
}

// Evaluate runs the required probes concurrently and waits for all of them
// before aggregating. A failing probe never aborts the others.
func (e *Evaluator) Evaluate(ctx context.Context) Status {
	probes := e.required()
	results := make(map[probe.Kind]probe.Result, len(probes))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range probes {
		g.Go(func() error {
			res := e.runProbe(gctx, p)
			mu.Lock()
			results[p.Kind()] = res
			mu.Unlock()
			// Probe failures are folded into the result; never cancel siblings.
			return nil
		})
	}
	_ = g.Wait()

	return e.aggregate(results)
}

func (e *Evaluator) runProbe(ctx context.Context, p probe.Probe) (res probe.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = crashed(p.Kind(), fmt.Sprintf("probe panicked: %v", r))
			e.Log.Error().Str("probe", string(p.Kind())).Interface("panic", r).Msg("probe panicked")
		}
	}()

	res = p.Run(ctx)
	e.Log.Info().
		Str("probe", string(res.Kind)).
		Str("tool", res.Tool).
		Str("outcome", string(res.Outcome)).
		Dur("duration", res.Duration).
		Int("errors", res.Errors).
		Int("warnings", res.Warnings).
		Bool("passed", res.Passed).
		Float64("coverage", res.Coverage).
		Msg("probe finished")
	return res
}

// crashed is the fallback for a probe that panicked, following the same
// policy as a tool crash: permissive for lint, failing for tests and
// coverage.
func crashed(kind probe.Kind, detail string) probe.Result {
	res := probe.Result{Kind: kind, Outcome: probe.OutcomeCrashed, Detail: detail, Coverage: probe.CoverageUnmeasured}
	switch kind {
	case probe.KindLint:
		res.Passed = true
	case probe.KindCoverage:
		res.Coverage = 0
	}
	return res
}

func (e *Evaluator) aggregate(results map[probe.Kind]probe.Result) Status {
	c := e.Conditions
	s := Status{
		Checked:      true,
		ZeroErrors:   true,
		ZeroWarnings: true,
		TestsPass:    true,
		CoverageMet:  true,
		Details:      map[probe.Kind]probe.Result{},
	}
	all := true

	if lint, ok := results[probe.KindLint]; ok {
		s.Details[probe.KindLint] = lint
		if c.ZeroErrors {
			s.ZeroErrors = lint.Errors == 0
			all = all && s.ZeroErrors
		}
		if c.ZeroWarnings {
			s.ZeroWarnings = lint.Warnings == 0
			all = all && s.ZeroWarnings
		}
	}
	if tests, ok := results[probe.KindTests]; ok {
		s.Details[probe.KindTests] = tests
		s.TestsPass = tests.Passed
		all = all && s.TestsPass
	}
	if cov, ok := results[probe.KindCoverage]; ok {
		s.Details[probe.KindCoverage] = cov
		s.CoverageThreshold = c.CoverageThreshold
		s.CoverageMet = CoverageMet(cov.Coverage, c.CoverageThreshold)
		all = all && s.CoverageMet
	}

	s.AllConditionsMet = all
	return s
}

// CoverageMet compares a measured percentage against threshold. The
// unmeasured sentinel always meets it.
func CoverageMet(actual float64, threshold int) bool {
	if actual == probe.CoverageUnmeasured {
		return true
	}
	return actual >= float64(threshold)
}
