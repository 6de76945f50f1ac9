//go:build linux

package fanout

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcAttr puts each child in its own process group, so a terminal
// Ctrl-C reaches only the launcher, which forwards it once. The kernel
// terminates children when the launcher dies.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true, Pdeathsig: syscall.SIGTERM}
}

// allowedCPUs returns the CPU ids in the launcher's affinity mask in
// ascending order. Under a cpuset or taskset the ids need not start at 0
// or be contiguous.
func allowedCPUs() []int {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return nil
	}
	ids := make([]int, 0, set.Count())
	for cpu := 0; len(ids) < cap(ids); cpu++ {
		if set.IsSet(cpu) {
			ids = append(ids, cpu)
		}
	}
	return ids
}

// pinToCore sets the CPU affinity of pid to a single logical CPU.
func pinToCore(pid, cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(pid, &set)
}
