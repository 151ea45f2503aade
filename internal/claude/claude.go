// Package claude defines the documents exchanged with the Claude Code hook
// runner: the event JSON delivered on stdin and the decision JSON written to
// stdout.
package claude

// StopEvent is the hook event name the controller answers.
const StopEvent = "Stop"

// HookOutput is the decision document written to stdout. A zero HookOutput
// encodes as {} and tells the host nothing beyond the exit code.
type HookOutput struct {
	HookSpecificOutput *HookSpecificOutput `json:"hookSpecificOutput,omitempty"`
}

// HookSpecificOutput carries the status and guidance text shown to the agent.
type HookSpecificOutput struct {
	HookEventName     string `json:"hookEventName"`
	AdditionalContext string `json:"additionalContext"`
}

// NewOutput returns the output document for event carrying text.
func NewOutput(event, text string) HookOutput {
	if event == "" {
		event = StopEvent
	}
	return HookOutput{HookSpecificOutput: &HookSpecificOutput{
		HookEventName:     event,
		AdditionalContext: text,
	}}
}

// Text returns the additional context, or "" for an empty document.
func (o HookOutput) Text() string {
	if o.HookSpecificOutput == nil {
		return ""
	}
	return o.HookSpecificOutput.AdditionalContext
}
