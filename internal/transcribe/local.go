package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"golang.org/x/sync/semaphore"
)

// LocalProvider runs inference inside a pre-existing, already-running
// Docker container (spec §4.2/§9), generalizing the teacher's
// DemucsManager.execInContainerWithProgress convention of exec'ing into
// a container rather than managing its lifecycle. A process-wide
// capacity-1 semaphore enforces the single-holder local-inference lock.
type LocalProvider struct {
	ContainerName string
	lock          *semaphore.Weighted
}

// NewLocalProvider returns a LocalProvider bound to a named container.
// The semaphore is process-wide by construction: callers must share one
// LocalProvider instance across all concurrent detect workers.
func NewLocalProvider(containerName string) *LocalProvider {
	return &LocalProvider{
		ContainerName: containerName,
		lock:          semaphore.NewWeighted(1),
	}
}

// Transcribe acquires the single-holder lock, execs the local model
// against wavPath inside the container, and releases the lock and the
// native allocator's RSS before returning (spec §4.2: "release on every
// use").
func (p *LocalProvider) Transcribe(ctx context.Context, wavPath string) (string, error) {
	if err := p.lock.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("acquire local-model lock: %w", err)
	}
	defer p.lock.Release(1)
	defer debug.FreeOSMemory()

	return p.execTranscribe(ctx, wavPath)
}

func (p *LocalProvider) execTranscribe(ctx context.Context, wavPath string) (string, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return "", fmt.Errorf("docker client: %w", err)
	}
	defer cli.Close()

	containerInput := "/data/" + filepath.Base(wavPath)
	if err := copyIntoContainer(ctx, cli, p.ContainerName, wavPath, containerInput); err != nil {
		return "", fmt.Errorf("copy segment into container: %w", err)
	}

	execConfig := container.ExecOptions{
		Cmd:          []string{"transcribe", containerInput},
		AttachStdout: true,
		AttachStderr: true,
	}
	execID, err := cli.ContainerExecCreate(ctx, p.ContainerName, execConfig)
	if err != nil {
		return "", fmt.Errorf("create exec: %w", err)
	}

	resp, err := cli.ContainerExecAttach(ctx, execID.ID, container.ExecStartOptions{})
	if err != nil {
		return "", fmt.Errorf("attach exec: %w", err)
	}
	defer resp.Close()

	var output bytes.Buffer
	if _, err := output.ReadFrom(resp.Reader); err != nil {
		return "", fmt.Errorf("read exec output: %w", err)
	}

	inspect, err := cli.ContainerExecInspect(ctx, execID.ID)
	if err != nil {
		return "", fmt.Errorf("inspect exec: %w", err)
	}
	if inspect.ExitCode != 0 {
		return "", fmt.Errorf("local model exited with code %d: %s", inspect.ExitCode, output.String())
	}
	return output.String(), nil
}

func copyIntoContainer(ctx context.Context, cli *client.Client, containerName, localPath, containerPath string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	tarBuf, err := tarSingleFile(filepath.Base(containerPath), data)
	if err != nil {
		return err
	}
	return cli.CopyToContainer(ctx, containerName, filepath.Dir(containerPath), tarBuf, container.CopyToContainerOptions{})
}
