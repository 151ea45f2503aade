package completion

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LISSConsulting/LISSTech.RalphGate/internal/config"
	"github.com/LISSConsulting/LISSTech.RalphGate/internal/probe"
)

type stubProbe struct {
	kind  probe.Kind
	res   probe.Result
	delay time.Duration
	panic bool
	calls atomic.Int32
}

func (s *stubProbe) Kind() probe.Kind { return s.kind }

func (s *stubProbe) Run(ctx context.Context) probe.Result {
	s.calls.Add(1)
	if s.panic {
		panic("boom")
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
		}
	}
	r := s.res
	r.Kind = s.kind
	return r
}

func lint(errs, warns int) *stubProbe {
	return &stubProbe{kind: probe.KindLint, res: probe.Result{
		Outcome: probe.OutcomeMeasured, Errors: errs, Warnings: warns, Passed: errs == 0, Coverage: probe.CoverageUnmeasured,
	}}
}

func tests(passed bool) *stubProbe {
	return &stubProbe{kind: probe.KindTests, res: probe.Result{
		Outcome: probe.OutcomeMeasured, Passed: passed, Coverage: probe.CoverageUnmeasured,
	}}
}

func coverage(pct float64) *stubProbe {
	outcome := probe.OutcomeMeasured
	if pct == probe.CoverageUnmeasured {
		outcome = probe.OutcomeToolAbsent
	}
	return &stubProbe{kind: probe.KindCoverage, res: probe.Result{Outcome: outcome, Passed: true, Coverage: pct}}
}

func evaluator(cond config.CompletionConfig, l, t, c *stubProbe) *Evaluator {
	return &Evaluator{Conditions: cond, Lint: l, Tests: t, Coverage: c, Log: zerolog.Nop()}
}

func defaults() config.CompletionConfig {
	return config.Defaults().Loop.Completion
}

func TestEvaluate_AllMet(t *testing.T) {
	e := evaluator(defaults(), lint(0, 4), tests(true), coverage(90))
	s := e.Evaluate(context.Background())

	assert.True(t, s.Checked)
	assert.True(t, s.ZeroErrors)
	assert.True(t, s.ZeroWarnings, "warnings are not required by default")
	assert.True(t, s.TestsPass)
	assert.True(t, s.CoverageMet)
	assert.True(t, s.AllConditionsMet)
	assert.Len(t, s.Details, 3)
	assert.Equal(t, 85, s.CoverageThreshold)

	errs, warns, ok := s.LintCounts()
	require.True(t, ok)
	assert.Equal(t, 0, errs)
	assert.Equal(t, 4, warns)
}

func TestEvaluate_Failures(t *testing.T) {
	cases := []struct {
		name       string
		cond       func(*config.CompletionConfig)
		lp, tp, cp *stubProbe
		check      func(*testing.T, Status)
	}{
		{
			name:  "errors",
			lp:    lint(3, 0),
			tp:    tests(true),
			cp:    coverage(90),
			check: func(t *testing.T, s Status) {
				assert.False(t, s.ZeroErrors)
				assert.False(t, s.AllConditionsMet)
			},
		},
		{
			name:  "warnings when required",
			cond:  func(c *config.CompletionConfig) { c.ZeroWarnings = true },
			lp:    lint(0, 2),
			tp:    tests(true),
			cp:    coverage(90),
			check: func(t *testing.T, s Status) {
				assert.True(t, s.ZeroErrors)
				assert.False(t, s.ZeroWarnings)
				assert.False(t, s.AllConditionsMet)
			},
		},
		{
			name:  "tests",
			lp:    lint(0, 0),
			tp:    tests(false),
			cp:    coverage(90),
			check: func(t *testing.T, s Status) {
				assert.False(t, s.TestsPass)
				assert.False(t, s.AllConditionsMet)
			},
		},
		{
			name:  "coverage below threshold",
			lp:    lint(0, 0),
			tp:    tests(true),
			cp:    coverage(84.9),
			check: func(t *testing.T, s Status) {
				assert.False(t, s.CoverageMet)
				assert.False(t, s.AllConditionsMet)
			},
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			cond := defaults()
			if tt.cond != nil {
				tt.cond(&cond)
			}
			tt.check(t, evaluator(cond, tt.lp, tt.tp, tt.cp).Evaluate(context.Background()))
		})
	}
}

func TestEvaluate_DisabledConditionsAreVacuous(t *testing.T) {
	cond := config.CompletionConfig{ZeroErrors: false, ZeroWarnings: false, TestsPass: false, CoverageThreshold: 0}
	l, tp, c := lint(9, 9), tests(false), coverage(1)

	s := evaluator(cond, l, tp, c).Evaluate(context.Background())

	assert.True(t, s.ZeroErrors)
	assert.True(t, s.ZeroWarnings)
	assert.True(t, s.TestsPass)
	assert.True(t, s.CoverageMet)
	assert.True(t, s.AllConditionsMet)
	assert.Empty(t, s.Details)
	assert.Zero(t, l.calls.Load())
	assert.Zero(t, tp.calls.Load())
	assert.Zero(t, c.calls.Load())
}

func TestEvaluate_DisabledConditionNeverChangesDecision(t *testing.T) {
	// Warnings are not required; lint still runs for errors.
	for _, warns := range []int{0, 1, 50} {
		s := evaluator(defaults(), lint(0, warns), tests(true), coverage(99)).Evaluate(context.Background())
		assert.True(t, s.AllConditionsMet, "warnings=%d", warns)
	}

	// Tests are not required.
	cond := defaults()
	cond.TestsPass = false
	for _, passed := range []bool{true, false} {
		tp := tests(passed)
		s := evaluator(cond, lint(0, 0), tp, coverage(99)).Evaluate(context.Background())
		assert.True(t, s.AllConditionsMet)
		assert.Zero(t, tp.calls.Load())
		_, ok := s.Result(probe.KindTests)
		assert.False(t, ok)
	}
}

func TestEvaluate_WarningsOnlyRunsLint(t *testing.T) {
	cond := config.CompletionConfig{ZeroWarnings: true}
	l := lint(5, 0)
	s := evaluator(cond, l, tests(false), coverage(0)).Evaluate(context.Background())

	assert.Equal(t, int32(1), l.calls.Load())
	assert.True(t, s.ZeroErrors, "errors are not required")
	assert.True(t, s.AllConditionsMet)
}

func TestEvaluate_UnmeasuredCoverageIsMet(t *testing.T) {
	for _, threshold := range []int{1, 50, 100} {
		cond := defaults()
		cond.CoverageThreshold = threshold
		s := evaluator(cond, lint(0, 0), tests(true), coverage(probe.CoverageUnmeasured)).Evaluate(context.Background())
		assert.True(t, s.CoverageMet, "threshold=%d", threshold)
		assert.True(t, s.AllConditionsMet)
	}
}

func TestEvaluate_RunsProbesConcurrently(t *testing.T) {
	l, tp, c := lint(0, 0), tests(true), coverage(90)
	for _, p := range []*stubProbe{l, tp, c} {
		p.delay = 150 * time.Millisecond
	}

	start := time.Now()
	s := evaluator(defaults(), l, tp, c).Evaluate(context.Background())

	assert.Less(t, time.Since(start), 400*time.Millisecond)
	assert.Len(t, s.Details, 3, "all results are collected before returning")
}

func TestEvaluate_PanickingProbe(t *testing.T) {
	tp := tests(true)
	tp.panic = true
	s := evaluator(defaults(), lint(0, 0), tp, coverage(90)).Evaluate(context.Background())

	res, ok := s.Result(probe.KindTests)
	require.True(t, ok)
	assert.Equal(t, probe.OutcomeCrashed, res.Outcome)
	assert.False(t, s.TestsPass)
	assert.False(t, s.AllConditionsMet)
	assert.True(t, s.ZeroErrors, "siblings still report")
}

func TestLintCounts_Unmeasured(t *testing.T) {
	l := lint(0, 0)
	l.res.Outcome = probe.OutcomeToolAbsent
	s := evaluator(defaults(), l, tests(true), coverage(90)).Evaluate(context.Background())
	_, _, ok := s.LintCounts()
	assert.False(t, ok)

	_, _, ok = Unchecked().LintCounts()
	assert.False(t, ok)
	assert.False(t, Unchecked().AllConditionsMet)
}

func TestCoverageMet(t *testing.T) {
	assert.True(t, CoverageMet(85, 85))
	assert.False(t, CoverageMet(84.99, 85))
	assert.True(t, CoverageMet(probe.CoverageUnmeasured, 100))
	assert.True(t, CoverageMet(0, 0))
}

func TestNew(t *testing.T) {
	e := New(defaults(), probe.Options{}, zerolog.Nop())
	assert.Equal(t, probe.KindLint, e.Lint.Kind())
	assert.Equal(t, probe.KindTests, e.Tests.Kind())
	assert.Equal(t, probe.KindCoverage, e.Coverage.Kind())
}
