//go:build !windows

package media

import (
	"context"
	"os/exec"
	"syscall"
)

// newCommand builds an *exec.Cmd placed in its own process group, so
// Cancel can kill the whole subprocess tree (ffmpeg spawns no children of
// its own, but rclone and ffprobe wrappers on some platforms do) without
// orphaning descendants (spec §4.1/§9).
func newCommand(ctx context.Context, name string, arg ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, arg...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return cmd
}

// killGroup sends an uncatchable signal to the whole process group led by
// cmd, per spec §4.1 ("cancel() that terminates the process group with an
// uncatchable signal").
func killGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		return cmd.Process.Kill()
	}
	return syscall.Kill(-pgid, syscall.SIGKILL)
}
