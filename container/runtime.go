package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	archive "github.com/moby/go-archive"

	"github.com/everydev1618/dockwright/guard"
)

const (
	// LabelManagedBy marks images and containers created by the harness.
	LabelManagedBy = "dockwright.managed-by"

	managedByValue = "dockwright"
)

// ErrDaemonUnavailable is returned when the container runtime does not answer.
var ErrDaemonUnavailable = errors.New("daemon unavailable")

// Runtime is the container engine the harness drives. Build and Run report a
// non-zero ExitCode for failures of the build or of the program; the error
// return is reserved for failures to talk to the engine at all.
type Runtime interface {
	Ping(ctx context.Context) error
	Build(ctx context.Context, spec BuildSpec) (*ExecResult, error)
	Run(ctx context.Context, spec RunSpec) (*ExecResult, error)
	RemoveImage(ctx context.Context, tag string) error
}

// ExecResult holds the outcome of a build or run.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// BuildSpec describes one image build.
type BuildSpec struct {
	// ContextDir is sent to the engine as the build context.
	ContextDir string
	// Dockerfile is the Dockerfile path relative to ContextDir.
	Dockerfile string
	Tag        string
}

// RunSpec describes one container run. Args are passed as the container
// command, the same way trailing arguments to `docker run IMAGE ARGS...` are.
type RunSpec struct {
	Image  string
	Args   []string
	Limits Limits
}

// Limits are the resource constraints applied to every sandbox run.
type Limits struct {
	MemoryBytes int64
	NanoCPUs    int64
	PidsLimit   int64
	NetworkMode string
}

// DefaultLimits returns 512 MiB of memory, one CPU, 100 processes and no network.
func DefaultLimits() Limits {
	return Limits{
		MemoryBytes: 512 * 1024 * 1024,
		NanoCPUs:    1_000_000_000,
		PidsLimit:   100,
		NetworkMode: "none",
	}
}

// HostConfig translates the limits into the engine's host configuration.
func (l Limits) HostConfig() *container.HostConfig {
	pids := l.PidsLimit
	return &container.HostConfig{
		NetworkMode: container.NetworkMode(l.NetworkMode),
		Resources: container.Resources{
			Memory:    l.MemoryBytes,
			NanoCPUs:  l.NanoCPUs,
			PidsLimit: &pids,
		},
	}
}

// Args renders the limits as `docker run` flags, for logs and error reports.
func (l Limits) Args() []string {
	return []string{
		fmt.Sprintf("--memory=%dm", l.MemoryBytes/(1024*1024)),
		fmt.Sprintf("--cpus=%.1f", float64(l.NanoCPUs)/1e9),
		"--network=" + l.NetworkMode,
		fmt.Sprintf("--pids-limit=%d", l.PidsLimit),
	}
}

// RunCommand renders spec as the equivalent docker CLI invocation. Arguments
// are sanitized and single-quoted, so the line can be pasted into a shell to
// reproduce a run.
func RunCommand(spec RunSpec) string {
	parts := append([]string{"docker", "run", "--rm"}, spec.Limits.Args()...)
	parts = append(parts, spec.Image)
	for _, arg := range spec.Args {
		parts = append(parts, "'"+guard.SanitizeForSandbox(arg)+"'")
	}
	return strings.Join(parts, " ")
}

// runConfig builds the create-time configuration for a sandbox run.
func runConfig(spec RunSpec) (*container.Config, *container.HostConfig) {
	cfg := &container.Config{
		Image:           spec.Image,
		Cmd:             spec.Args,
		AttachStdout:    true,
		AttachStderr:    true,
		NetworkDisabled: spec.Limits.NetworkMode == "none",
		Labels: map[string]string{
			LabelManagedBy: managedByValue,
		},
	}
	return cfg, spec.Limits.HostConfig()
}

// DockerRuntime implements Runtime on the Docker Engine API.
type DockerRuntime struct {
	client *client.Client
}

// NewDockerRuntime connects to the first Docker daemon that answers, trying
// the environment settings first and then the usual socket locations.
func NewDockerRuntime() (*DockerRuntime, error) {
	cli, err := createDockerClient()
	if err != nil {
		return nil, err
	}
	return &DockerRuntime{client: cli}, nil
}

// createDockerClient creates a Docker client, trying multiple socket locations
// for compatibility with Docker Desktop on macOS.
func createDockerClient() (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := cli.Ping(ctx); err == nil {
			return cli, nil
		}
		cli.Close()
	}

	socketPaths := []string{
		"unix://" + os.Getenv("HOME") + "/.docker/run/docker.sock", // Docker Desktop macOS
		"unix:///var/run/docker.sock",                              // Linux default
		"unix://" + os.Getenv("HOME") + "/.colima/docker.sock",     // Colima
	}

	for _, socketPath := range socketPaths {
		cli, err := client.NewClientWithOpts(
			client.WithHost(socketPath),
			client.WithAPIVersionNegotiation(),
		)
		if err != nil {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err = cli.Ping(ctx)
		cancel()

		if err == nil {
			return cli, nil
		}
		cli.Close()
	}

	return nil, fmt.Errorf("could not connect to Docker daemon: %w", ErrDaemonUnavailable)
}

// Ping checks that the daemon answers.
func (d *DockerRuntime) Ping(ctx context.Context) error {
	if _, err := d.client.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}
	return nil
}

// Build tars ContextDir and builds it. The build log stream is rendered into
// Stdout; a build error in the stream yields ExitCode 1 with the error text in
// Stderr.
func (d *DockerRuntime) Build(ctx context.Context, spec BuildSpec) (*ExecResult, error) {
	buildCtx, err := archive.TarWithOptions(spec.ContextDir, &archive.TarOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to archive build context: %w", err)
	}
	defer buildCtx.Close()

	resp, err := d.client.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:        []string{spec.Tag},
		Dockerfile:  spec.Dockerfile,
		Remove:      true,
		ForceRemove: true,
		Labels: map[string]string{
			LabelManagedBy: managedByValue,
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// The daemon rejected the request itself (bad Dockerfile syntax and
		// similar); report it as a failed build.
		return &ExecResult{ExitCode: 1, Stderr: err.Error()}, nil
	}
	defer resp.Body.Close()

	var out bytes.Buffer
	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, &out, 0, false, nil); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &ExecResult{ExitCode: 1, Stdout: out.String(), Stderr: err.Error()}, nil
	}

	return &ExecResult{ExitCode: 0, Stdout: out.String()}, nil
}

// Run creates the container with the spec's limits, starts it, waits for it to
// exit and collects its demultiplexed output. The container is always removed.
func (d *DockerRuntime) Run(ctx context.Context, spec RunSpec) (*ExecResult, error) {
	cfg, hostCfg := runConfig(spec)

	created, err := d.client.ContainerCreate(ctx, cfg, hostCfg, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}
	defer func() {
		rmCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = d.client.ContainerRemove(rmCtx, created.ID, container.RemoveOptions{Force: true})
	}()

	if err := d.client.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	statusCh, errCh := d.client.ContainerWait(ctx, created.ID, container.WaitConditionNotRunning)
	var exitCode int
	select {
	case err := <-errCh:
		if err != nil {
			return nil, fmt.Errorf("failed to wait for container: %w", err)
		}
	case status := <-statusCh:
		exitCode = int(status.StatusCode)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	logs, err := d.client.ContainerLogs(ctx, created.ID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read container logs: %w", err)
	}
	defer logs.Close()

	var stdout, stderr strings.Builder
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logs); err != nil {
		return nil, fmt.Errorf("failed to read output: %w", err)
	}

	return &ExecResult{
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}

// RemoveImage force-removes the image with the given tag.
func (d *DockerRuntime) RemoveImage(ctx context.Context, tag string) error {
	_, err := d.client.ImageRemove(ctx, tag, image.RemoveOptions{Force: true, PruneChildren: true})
	return err
}

// Close closes the Docker client.
func (d *DockerRuntime) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}
