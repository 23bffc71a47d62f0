// Package media wraps the external probe/mux tool (ffmpeg/ffprobe) and
// the external upload tool (rclone) as opaque commands (spec §4.1, C1).
// Every spawned child runs in its own process group so Cancel can kill
// the whole tree preemptively, on top of whatever cooperative
// cancellation the caller's context provides.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sync"
)

// Cmd wraps a running external process with preemptive cancellation.
// The detect/upload worker that owns a task registers the *Cmd it is
// currently waiting on so an operator-initiated cancel can kill it
// immediately rather than waiting for the next cooperative checkpoint.
type Cmd struct {
	mu  sync.Mutex
	cmd *exec.Cmd
}

// Cancel kills the process group of the in-flight command, if any. Safe
// to call even if the command already exited or never started.
func (c *Cmd) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd == nil {
		return
	}
	_ = killGroup(c.cmd)
}

// run executes name with args to completion, capturing stdout/stderr,
// and registers the in-flight *exec.Cmd on c so Cancel can kill it.
func (c *Cmd) run(ctx context.Context, name string, args ...string) (stdout, stderr string, err error) {
	cmd := newCommand(ctx, name, args...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	c.mu.Lock()
	c.cmd = cmd
	c.mu.Unlock()

	runErr := cmd.Run()

	c.mu.Lock()
	c.cmd = nil
	c.mu.Unlock()

	if runErr != nil {
		return outBuf.String(), errBuf.String(), fmt.Errorf("%s %v: %w: %s", name, args, runErr, errBuf.String())
	}
	return outBuf.String(), errBuf.String(), nil
}
