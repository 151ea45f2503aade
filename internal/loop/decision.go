// Package loop decides, after each unit of agent work, whether the Ralph
// loop continues, completes, or stops at its iteration cap.
package loop

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/LISSConsulting/LISSTech.RalphGate/internal/completion"
	"github.com/LISSConsulting/LISSTech.RalphGate/internal/state"
)

// Action is the outcome of one decision.
type Action string

const (
	ActionNoop     Action = "NOOP"     // loop inactive, nothing to do
	ActionComplete Action = "COMPLETE" // every required condition holds
	ActionContinue Action = "CONTINUE" // conditions unmet, iterate again
	ActionStopped  Action = "STOPPED"  // conditions unmet at the iteration cap
)

// ExitCode is the process exit status the host reads as the control
// signal: 1 asks for another iteration, 0 means no further iteration.
func (a Action) ExitCode() int {
	if a == ActionContinue {
		return 1
	}
	return 0
}

// Terminal reports whether a ends the loop.
func (a Action) Terminal() bool {
	return a == ActionComplete || a == ActionStopped
}

// Decision pairs an action with the state before and after it.
type Decision struct {
	Action Action
	Prev   state.LoopState
	Next   state.LoopState
}

// Decide applies the termination policy to s given the latest completion
// status. It has no side effects.
//
// The cap is checked before continuing: a loop at iteration i of max M
// stops when i+1 would reach M, so a loop that never converges ends with
// STOPPED rather than looking like a pass.
func Decide(s state.LoopState, st completion.Status) (Decision, error) {
	d := Decision{Action: ActionNoop, Prev: s, Next: s}
	if !s.Active {
		return d, nil
	}

	next := s
	if errs, warns, ok := st.LintCounts(); ok {
		next = next.WithMeasurements(errs, warns)
	}

	var err error
	switch {
	case st.AllConditionsMet:
		d.Action = ActionComplete
		next, err = next.End(state.ReasonAllConditionsMet)
	case next.Iteration+1 >= next.MaxIterations:
		d.Action = ActionStopped
		next, err = next.End(state.ReasonMaxIterations)
	default:
		d.Action = ActionContinue
		next, err = next.Advance()
	}
	if err != nil {
		return Decision{Action: ActionNoop, Prev: s, Next: s}, fmt.Errorf("loop: decide: %w", err)
	}
	d.Next = next
	return d, nil
}

// Store is the persistence the engine commits decisions to.
// *state.Store satisfies this interface.
type Store interface {
	Save(state.LoopState) error
	Clear() error
}

// Engine decides and commits: CONTINUE persists the advanced state,
// COMPLETE and STOPPED clear it.
type Engine struct {
	Store Store
	Log   zerolog.Logger
}

// Step decides the next action for s and commits it to the store. On a
// commit failure the decision is still returned alongside the error.
func (e *Engine) Step(s state.LoopState, st completion.Status) (Decision, error) {
	d, err := Decide(s, st)
	if err != nil {
		return d, err
	}

	switch {
	case d.Action == ActionContinue:
		err = e.Store.Save(d.Next)
	case d.Action.Terminal():
		err = e.Store.Clear()
	}

	var ev *zerolog.Event
	if err != nil {
		ev = e.Log.Error().Err(err)
	} else {
		ev = e.Log.Info()
	}
	ev.Str("action", string(d.Action)).
		Str("loop_id", d.Next.LoopID).
		Int("iteration", d.Next.Iteration).
		Int("max_iterations", d.Next.MaxIterations).
		Str("reason", d.Next.CompletionReason).
		Msg("loop decision")

	if err != nil {
		return d, fmt.Errorf("loop: commit %s: %w", d.Action, err)
	}
	return d, nil
}
