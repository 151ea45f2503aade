//go:build windows

package probe

import "os/exec"

// setProcessGroup keeps the os/exec default of killing the process on
// cancellation; Windows has no process groups to signal.
func setProcessGroup(cmd *exec.Cmd) {}
