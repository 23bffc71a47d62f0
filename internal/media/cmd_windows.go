//go:build windows

package media

import (
	"context"
	"os/exec"
	"syscall"
)

// newCommand builds an *exec.Cmd in a new process group on Windows via
// CREATE_NEW_PROCESS_GROUP, the nearest equivalent of Setpgid available
// for killGroup to target (spec §4.1/§9).
func newCommand(ctx context.Context, name string, arg ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, arg...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: 0x00000200, // CREATE_NEW_PROCESS_GROUP
	}
	return cmd
}

// killGroup terminates the process; Windows has no SIGKILL, Process.Kill
// maps to TerminateProcess which is itself uncatchable.
func killGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
