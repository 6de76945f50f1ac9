//go:build !linux

package fanout

import "os/exec"

func setProcAttr(cmd *exec.Cmd) {}

// allowedCPUs is unknown here; the launcher falls back to 0..NumCPU-1.
func allowedCPUs() []int { return nil }

// pinToCore is a no-op where the platform has no affinity syscall.
func pinToCore(pid, cpu int) error {
	return nil
}
