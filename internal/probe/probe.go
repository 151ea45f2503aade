// Package probe runs the external checks (linter, test runner, coverage
// tool) that gate loop completion and normalizes what they report.
//
// Every probe degrades instead of failing: a missing tool yields a
// permissive result so absent tooling never blocks progress, while a
// timeout or crash yields a conservative one for tests and coverage.
package probe

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Kind names a probe.
type Kind string

const (
	KindLint     Kind = "lint"
	KindTests    Kind = "tests"
	KindCoverage Kind = "coverage"
)

// Outcome says how a probe's numbers were obtained.
type Outcome string

const (
	OutcomeMeasured   Outcome = "measured"    // the tool ran and its report was parsed
	OutcomeToolAbsent Outcome = "tool_absent" // permissive default substituted
	OutcomeTimedOut   Outcome = "timed_out"   // abandoned at the deadline
	OutcomeCrashed    Outcome = "crashed"     // could not run or report was unreadable
)

// CoverageUnmeasured is the sentinel coverage value for "not measured".
const CoverageUnmeasured = -1.0

// maxDetail bounds the diagnostic string shown to the operator.
const maxDetail = 200

// Result is the normalized report of one probe run.
type Result struct {
	Kind     Kind
	Outcome  Outcome
	Tool     string // tool that produced the numbers, e.g. "go vet"
	Errors   int
	Warnings int
	Passed   bool
	Coverage float64 // percent in [0,100], or CoverageUnmeasured
	Detail   string  // short diagnostic, at most maxDetail bytes
	Duration time.Duration
}

// Measured reports whether the tool actually produced the numbers.
func (r Result) Measured() bool {
	return r.Outcome == OutcomeMeasured
}

// Probe is one external check. Run never returns an error: failures are
// folded into the Result according to the probe's fallback policy.
type Probe interface {
	Kind() Kind
	Run(ctx context.Context) Result
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	cut := n - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func detailf(format string, args ...any) string {
	return truncate(fmt.Sprintf(format, args...), maxDetail)
}

// withTimeout bounds ctx by d when d is positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
