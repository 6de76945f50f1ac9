//go:build linux

package fanout

import (
	"context"
	"os/exec"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestSetProcAttr_OwnProcessGroup(t *testing.T) {
	cmd := exec.Command("locust")
	setProcAttr(cmd)

	require.NotNil(t, cmd.SysProcAttr)
	assert.True(t, cmd.SysProcAttr.Setpgid, "children must not share the terminal's foreground group")
	assert.Equal(t, syscall.SIGTERM, cmd.SysProcAttr.Pdeathsig)
}

func TestExecStarter_ChildLeadsItsOwnGroup(t *testing.T) {
	bin, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}
	s := &ExecStarter{Binary: bin}

	p, err := s.Start(context.Background(), Worker(0), []string{"30"})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = p.Signal(syscall.SIGKILL)
		_ = p.Wait()
	})

	pgid, err := unix.Getpgid(p.Pid())
	require.NoError(t, err)
	assert.Equal(t, p.Pid(), pgid)
	assert.NotEqual(t, unix.Getpgrp(), pgid)

	require.NoError(t, p.Signal(syscall.SIGTERM))
	assert.Error(t, p.Wait(), "terminated by the forwarded signal")
}

func TestAllowedCPUs_MatchesAffinityMask(t *testing.T) {
	var set unix.CPUSet
	require.NoError(t, unix.SchedGetaffinity(0, &set))

	ids := allowedCPUs()
	require.Len(t, ids, set.Count())
	for i, id := range ids {
		assert.True(t, set.IsSet(id), "cpu %d not in mask", id)
		if i > 0 {
			assert.Greater(t, id, ids[i-1])
		}
	}
}
