package guidance

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/LISSConsulting/LISSTech.RalphGate/internal/completion"
	"github.com/LISSConsulting/LISSTech.RalphGate/internal/loop"
	"github.com/LISSConsulting/LISSTech.RalphGate/internal/probe"
	"github.com/LISSConsulting/LISSTech.RalphGate/internal/state"
)

func measured(errs, warns int, testsPass bool, cov float64) completion.Status {
	return completion.Status{
		Checked:           true,
		ZeroErrors:        errs == 0,
		ZeroWarnings:      true,
		TestsPass:         testsPass,
		CoverageMet:       completion.CoverageMet(cov, 85),
		CoverageThreshold: 85,
		Details: map[probe.Kind]probe.Result{
			probe.KindLint:     {Kind: probe.KindLint, Outcome: probe.OutcomeMeasured, Errors: errs, Warnings: warns},
			probe.KindTests:    {Kind: probe.KindTests, Outcome: probe.OutcomeMeasured, Passed: testsPass, Detail: "--- FAIL: TestAdd (0.00s)"},
			probe.KindCoverage: {Kind: probe.KindCoverage, Outcome: probe.OutcomeMeasured, Coverage: cov},
		},
	}
}

func TestFormat_Continue(t *testing.T) {
	s := state.LoopState{Active: true, Iteration: 3, MaxIterations: 10}
	st := measured(3, 0, true, 90)

	got := Format(s, st, loop.ActionContinue)

	assert.Equal(t,
		"Ralph Loop: CONTINUE - Issues remain | Iteration: 3/10 | Errors: 3 | Warnings: 0 | Tests: PASS | Coverage: 90.0% | Status: CONTINUE\n"+
			"Next actions: Fix 3 error(s)",
		got)
}

func TestFormat_CompleteHasNoNextActions(t *testing.T) {
	s := state.LoopState{Iteration: 2, MaxIterations: 10, CompletionReason: state.ReasonAllConditionsMet}
	st := measured(0, 0, true, 92.3)
	st.AllConditionsMet = true

	got := Format(s, st, loop.ActionComplete)

	assert.Equal(t, "Ralph Loop: COMPLETE - All conditions satisfied | Iteration: 2/10 | Errors: 0 | Warnings: 0 | Tests: PASS | Coverage: 92.3% | Status: COMPLETE", got)
}

func TestFormat_Stopped(t *testing.T) {
	s := state.LoopState{Iteration: 9, MaxIterations: 10, CompletionReason: state.ReasonMaxIterations}
	got := Format(s, measured(1, 0, false, 40), loop.ActionStopped)

	assert.True(t, strings.HasPrefix(got, "Ralph Loop: STOPPED - Max iterations (10) reached | Iteration: 9/10"))
	assert.NotContains(t, got, "Status:")
	assert.NotContains(t, got, "Next actions")
}

func TestNextActions_Order(t *testing.T) {
	st := measured(2, 5, false, 61.5)
	st.ZeroWarnings = false // zero_warnings enabled and violated

	assert.Equal(t, []string{
		"Fix 2 error(s)",
		"Address 5 warning(s)",
		"Fix failing tests (--- FAIL: TestAdd (0.00s))",
		"Increase coverage from 61.5% to threshold 85%",
	}, NextActions(st))
}

func TestNextActions_WarningsOnlyWhenRequired(t *testing.T) {
	st := measured(0, 7, true, 90)
	assert.Empty(t, NextActions(st))
}

func TestNextActions_UnmeasuredCoverage(t *testing.T) {
	st := measured(0, 0, true, probe.CoverageUnmeasured)
	assert.Empty(t, NextActions(st))
	assert.NotContains(t, Summary(state.LoopState{Active: true, MaxIterations: 5}, st, loop.ActionContinue), "Coverage")
}

func TestNextActions_Unchecked(t *testing.T) {
	next := NextActions(completion.Unchecked())
	assert.Len(t, next, 1)
	assert.Contains(t, next[0], "completion checks are disabled")
}

func TestSummary_OmitsUnmeasuredFields(t *testing.T) {
	st := completion.Status{
		Checked:     true,
		ZeroErrors:  true,
		TestsPass:   true,
		CoverageMet: true,
		Details: map[probe.Kind]probe.Result{
			probe.KindLint:  {Kind: probe.KindLint, Outcome: probe.OutcomeToolAbsent},
			probe.KindTests: {Kind: probe.KindTests, Outcome: probe.OutcomeToolAbsent, Passed: true, Detail: "no framework detected"},
		},
		AllConditionsMet: true,
	}
	got := Summary(state.LoopState{Iteration: 1, MaxIterations: 10}, st, loop.ActionComplete)
	assert.Equal(t, "Ralph Loop: COMPLETE - All conditions satisfied | Iteration: 1/10 | Status: COMPLETE", got)
}

func TestSummary_TimedOutTestsShowFail(t *testing.T) {
	st := completion.Status{
		Checked:     true,
		ZeroErrors:  true,
		CoverageMet: true,
		Details: map[probe.Kind]probe.Result{
			probe.KindTests: {Kind: probe.KindTests, Outcome: probe.OutcomeTimedOut, Detail: "go test timed out after 2m0s"},
		},
	}
	s := state.LoopState{Active: true, Iteration: 4, MaxIterations: 10}
	got := Format(s, st, loop.ActionContinue)
	assert.Contains(t, got, "Tests: FAIL")
	assert.Contains(t, got, "Next actions: Fix failing tests (go test timed out after 2m0s)")
}

func TestFormat_TimedOutCoverageIsNotAPercentage(t *testing.T) {
	st := measured(0, 0, true, 0)
	st.CoverageMet = false
	st.Details[probe.KindCoverage] = probe.Result{
		Kind:     probe.KindCoverage,
		Outcome:  probe.OutcomeTimedOut,
		Coverage: 0,
		Detail:   "go test -coverprofile timed out after 2m0s",
	}
	s := state.LoopState{Active: true, Iteration: 4, MaxIterations: 10}

	got := Format(s, st, loop.ActionContinue)

	assert.NotContains(t, got, "Coverage: 0.0%")
	assert.NotContains(t, got, "Increase coverage")
	assert.Equal(t, []string{"Coverage check failed (go test -coverprofile timed out after 2m0s)"}, NextActions(st))
}

func TestNextActions_CrashedCoverage(t *testing.T) {
	st := measured(0, 0, true, 0)
	st.CoverageMet = false
	st.Details[probe.KindCoverage] = probe.Result{Kind: probe.KindCoverage, Outcome: probe.OutcomeCrashed}

	assert.Equal(t, []string{"Coverage check failed"}, NextActions(st))
	assert.NotContains(t, Summary(state.LoopState{Active: true, MaxIterations: 5}, st, loop.ActionContinue), "Coverage")
}

func TestLabel_Noop(t *testing.T) {
	assert.Equal(t, "Ralph Loop: IDLE - No active loop", Summary(state.LoopState{}, completion.Status{}, loop.ActionNoop))
}
