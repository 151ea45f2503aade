// Package guidance renders a loop decision as the text the agent and the
// operator read: a one-line summary plus, when the loop continues, the
// remaining work in fixed priority order.
package guidance

import (
	"fmt"
	"strings"

	"github.com/LISSConsulting/LISSTech.RalphGate/internal/completion"
	"github.com/LISSConsulting/LISSTech.RalphGate/internal/loop"
	"github.com/LISSConsulting/LISSTech.RalphGate/internal/probe"
	"github.com/LISSConsulting/LISSTech.RalphGate/internal/state"
)

const sep = " | "

// Label is the human-readable form of an action.
func Label(a loop.Action, s state.LoopState) string {
	switch a {
	case loop.ActionComplete:
		return "COMPLETE - All conditions satisfied"
	case loop.ActionStopped:
		return fmt.Sprintf("STOPPED - Max iterations (%d) reached", s.MaxIterations)
	case loop.ActionContinue:
		return "CONTINUE - Issues remain"
	}
	return "IDLE - No active loop"
}

// Format returns the summary line followed, for CONTINUE, by a
// "Next actions:" line.
func Format(s state.LoopState, st completion.Status, a loop.Action) string {
	out := Summary(s, st, a)
	if a != loop.ActionContinue {
		return out
	}
	if next := NextActions(st); len(next) > 0 {
		out += "\nNext actions: " + strings.Join(next, ", ")
	}
	return out
}

// Summary renders the status line. Probe fields appear only when the probe
// actually measured something.
func Summary(s state.LoopState, st completion.Status, a loop.Action) string {
	parts := []string{"Ralph Loop: " + Label(a, s)}
	if a != loop.ActionNoop {
		parts = append(parts, fmt.Sprintf("Iteration: %d/%d", s.Iteration, s.MaxIterations))
	}

	if errs, warns, ok := st.LintCounts(); ok {
		parts = append(parts, fmt.Sprintf("Errors: %d", errs), fmt.Sprintf("Warnings: %d", warns))
	}
	if r, ok := st.Result(probe.KindTests); ok && r.Outcome != probe.OutcomeToolAbsent {
		parts = append(parts, "Tests: "+passFail(st.TestsPass))
	}
	if r, ok := st.Result(probe.KindCoverage); ok && r.Measured() && r.Coverage >= 0 {
		parts = append(parts, fmt.Sprintf("Coverage: %.1f%%", r.Coverage))
	}

	switch {
	case st.AllConditionsMet:
		parts = append(parts, "Status: COMPLETE")
	case a == loop.ActionContinue:
		parts = append(parts, "Status: CONTINUE")
	}
	return strings.Join(parts, sep)
}

// NextActions lists what remains unsatisfied: errors, then warnings, then
// tests, then coverage.
func NextActions(st completion.Status) []string {
	if !st.Checked {
		return []string{"Keep working (completion checks are disabled; the loop ends at its iteration cap)"}
	}

	var next []string
	lint, hasLint := st.Result(probe.KindLint)
	if hasLint && !st.ZeroErrors && lint.Errors > 0 {
		next = append(next, fmt.Sprintf("Fix %d error(s)", lint.Errors))
	}
	if hasLint && !st.ZeroWarnings && lint.Warnings > 0 {
		next = append(next, fmt.Sprintf("Address %d warning(s)", lint.Warnings))
	}
	if !st.TestsPass {
		msg := "Fix failing tests"
		if r, ok := st.Result(probe.KindTests); ok && r.Detail != "" {
			msg += " (" + r.Detail + ")"
		}
		next = append(next, msg)
	}
	if r, ok := st.Result(probe.KindCoverage); ok && !st.CoverageMet {
		switch {
		case r.Measured() && r.Coverage >= 0:
			next = append(next, fmt.Sprintf("Increase coverage from %.1f%% to threshold %d%%", r.Coverage, st.CoverageThreshold))
		case r.Outcome == probe.OutcomeTimedOut || r.Outcome == probe.OutcomeCrashed:
			msg := "Coverage check failed"
			if r.Detail != "" {
				msg += " (" + r.Detail + ")"
			}
			next = append(next, msg)
		}
	}
	return next
}

func passFail(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}
