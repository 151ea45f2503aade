package claude

// HookInput is the event object the host sends on stdin. Every field is
// optional; the controller only uses Cwd to locate the project.
type HookInput struct {
	SessionID      string `json:"session_id"`
	TranscriptPath string `json:"transcript_path"`
	Cwd            string `json:"cwd"`
	HookEventName  string `json:"hook_event_name"`
	// StopHookActive is true when the host is already continuing because
	// of an earlier stop hook decision.
	StopHookActive bool `json:"stop_hook_active"`
}
