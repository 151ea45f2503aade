// Package state persists the Ralph loop state to .ralph/loop-state.json.
// The file is owned by the completion controller; nothing else writes it.
package state

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Completion reasons recorded when a loop ends.
const (
	ReasonAllConditionsMet = "All conditions met"
	ReasonMaxIterations    = "Max iterations reached"
)

// LoopState is the persisted record of one retry loop.
//
// Active implies Iteration < MaxIterations before the next probe run.
// CompletionReason is set exactly when the controller deactivates the loop;
// a never-started state has Active=false and an empty CompletionReason.
type LoopState struct {
	Active        bool `json:"active"`
	Iteration     int  `json:"iteration"`
	MaxIterations int  `json:"max_iterations"`

	// LastErrorCount and LastWarningCount are refreshed only when the lint
	// probe measured. Any other lint outcome keeps the counts of the last
	// measured iteration.
	LastErrorCount   int      `json:"last_error_count"`
	LastWarningCount int      `json:"last_warning_count"`
	FilesModified    []string `json:"files_modified"`

	StartTime        time.Time `json:"start_time"`
	CompletionReason string    `json:"completion_reason,omitempty"`
	LoopID           string    `json:"loop_id,omitempty"`
}

var (
	errNotActive      = errors.New("state: loop is not active")
	errBadMax         = errors.New("state: max_iterations must be > 0")
	errNegative       = errors.New("state: counts must be >= 0")
	errReasonOnActive = errors.New("state: completion_reason set on an active loop")
	errIterationAtCap = errors.New("state: active loop at or past max_iterations")
	errEmptyReason    = errors.New("state: completion reason must not be empty")
)

// NewActive returns a freshly activated loop at iteration 0.
func NewActive(maxIterations int, now time.Time) (LoopState, error) {
	if maxIterations <= 0 {
		return LoopState{}, errBadMax
	}
	return LoopState{
		Active:        true,
		MaxIterations: maxIterations,
		StartTime:     now.UTC().Round(0),
		LoopID:        uuid.NewString(),
	}, nil
}

// NeverStarted reports whether s is the zero "no loop" state, as opposed
// to a loop the controller ended.
func (s LoopState) NeverStarted() bool {
	return !s.Active && s.CompletionReason == ""
}

// Advance returns s with the iteration counter incremented. It refuses to
// move an active loop onto its cap; the caller must End it instead.
func (s LoopState) Advance() (LoopState, error) {
	if !s.Active {
		return s, errNotActive
	}
	if s.Iteration+1 >= s.MaxIterations {
		return s, errIterationAtCap
	}
	s.Iteration++
	return s, nil
}

// End deactivates s and records why.
func (s LoopState) End(reason string) (LoopState, error) {
	if !s.Active {
		return s, errNotActive
	}
	if reason == "" {
		return s, errEmptyReason
	}
	s.Active = false
	s.CompletionReason = reason
	return s, nil
}

// WithMeasurements records the latest lint counts. Negative counts are
// clamped to zero.
func (s LoopState) WithMeasurements(errs, warnings int) LoopState {
	s.LastErrorCount = max(errs, 0)
	s.LastWarningCount = max(warnings, 0)
	return s
}

// Validate checks the invariants an active persisted state must hold.
func (s LoopState) Validate() error {
	if s.Iteration < 0 || s.LastErrorCount < 0 || s.LastWarningCount < 0 {
		return errNegative
	}
	if !s.Active {
		return nil
	}
	if s.MaxIterations <= 0 {
		return errBadMax
	}
	if s.CompletionReason != "" {
		return errReasonOnActive
	}
	return nil
}
