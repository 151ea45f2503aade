package claude

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// maxInput bounds how much of stdin is read. Anything beyond it is drained
// and discarded so the host never blocks on a full pipe.
const maxInput = 1024 * 1024

// ParseHookInput consumes r to EOF and decodes the event. An empty body
// yields a zero HookInput and no error. A malformed body also yields a zero
// HookInput; the error describes it for logging.
func ParseHookInput(r io.Reader) (HookInput, error) {
	var in HookInput
	if r == nil {
		return in, nil
	}

	data, err := io.ReadAll(io.LimitReader(r, maxInput))
	if err != nil {
		return in, fmt.Errorf("claude: read hook input: %w", err)
	}
	_, _ = io.Copy(io.Discard, r)

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return in, nil
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return HookInput{}, fmt.Errorf("claude: parse hook input: %w", err)
	}
	return in, nil
}

// WriteOutput encodes out as a single JSON line.
func WriteOutput(w io.Writer, out HookOutput) error {
	if err := json.NewEncoder(w).Encode(out); err != nil {
		return fmt.Errorf("claude: write hook output: %w", err)
	}
	return nil
}
