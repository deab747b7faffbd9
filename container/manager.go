package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultDaemonTimeout  = 5 * time.Second
	DefaultBuildTimeout   = 120 * time.Second
	DefaultRunTimeout     = 30 * time.Second
	DefaultCleanupTimeout = 10 * time.Second

	imagePrefix = "test-"
)

// DaemonUnavailableLog is the build log of a verdict produced when the
// runtime did not answer the daemon check.
const DaemonUnavailableLog = "daemon unavailable"

// Manager runs the check-build-run-compare-cleanup pipeline for candidate
// Dockerfiles. It holds no per-test state, so one Manager may serve many
// concurrent tests; each test builds under its own random image tag.
type Manager struct {
	runtime Runtime
	limits  Limits

	daemonTimeout  time.Duration
	buildTimeout   time.Duration
	runTimeout     time.Duration
	cleanupTimeout time.Duration

	hook func(*Verdict, time.Duration)
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLimits overrides DefaultLimits.
func WithLimits(l Limits) ManagerOption {
	return func(m *Manager) {
		m.limits = l
	}
}

// WithTimeouts overrides the stage timeouts. Zero values keep the defaults.
func WithTimeouts(daemon, build, run, cleanup time.Duration) ManagerOption {
	return func(m *Manager) {
		if daemon > 0 {
			m.daemonTimeout = daemon
		}
		if build > 0 {
			m.buildTimeout = build
		}
		if run > 0 {
			m.runTimeout = run
		}
		if cleanup > 0 {
			m.cleanupTimeout = cleanup
		}
	}
}

// WithVerdictHook registers a function called with every verdict and the
// time the test took.
func WithVerdictHook(fn func(*Verdict, time.Duration)) ManagerOption {
	return func(m *Manager) {
		m.hook = fn
	}
}

// NewManager creates a Manager on top of rt. A nil runtime is allowed and
// behaves like a daemon that never answers.
func NewManager(rt Runtime, opts ...ManagerOption) *Manager {
	m := &Manager{
		runtime:        rt,
		limits:         DefaultLimits(),
		daemonTimeout:  DefaultDaemonTimeout,
		buildTimeout:   DefaultBuildTimeout,
		runTimeout:     DefaultRunTimeout,
		cleanupTimeout: DefaultCleanupTimeout,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Limits returns the resource limits applied to every run.
func (m *Manager) Limits() Limits {
	return m.limits
}

// IsAvailable reports whether the runtime answers within the daemon timeout.
func (m *Manager) IsAvailable(ctx context.Context) bool {
	return m.checkDaemon(ctx) == nil
}

func (m *Manager) checkDaemon(ctx context.Context) error {
	if m.runtime == nil {
		return ErrDaemonUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, m.daemonTimeout)
	defer cancel()
	return m.runtime.Ping(ctx)
}

// TestRequest is one sandbox test of a candidate Dockerfile.
type TestRequest struct {
	// DockerfilePath is the Dockerfile on disk. Its directory becomes the
	// build context and receives a copy of the script.
	DockerfilePath string
	ScriptPath     string
	// Input is passed to the container as a single argument.
	Input          string
	ExpectedOutput string
}

// Test builds the Dockerfile, runs the image with the example input under the
// manager's limits and compares the output with the expectation. Failures of
// the build, the run or the comparison are reported in the verdict, never as
// errors. Every stage is bounded by its own timeout.
func (m *Manager) Test(ctx context.Context, req TestRequest) *Verdict {
	start := time.Now()
	v := m.test(ctx, req)
	if m.hook != nil {
		m.hook(v, time.Since(start))
	}
	return v
}

func (m *Manager) test(ctx context.Context, req TestRequest) *Verdict {
	if err := m.checkDaemon(ctx); err != nil {
		return &Verdict{BuildErrors: DaemonUnavailableLog}
	}

	tag := imageTag()
	defer m.cleanup(ctx, tag)

	if log := m.build(ctx, req, tag); log != "" {
		return &Verdict{BuildErrors: log}
	}

	stdout, log := m.run(ctx, tag, req.Input)
	if log != "" {
		return &Verdict{RuntimeErrors: log}
	}

	if ok, diff := Compare(req.ExpectedOutput, stdout); !ok {
		return &Verdict{ActualOutput: stdout, OutputDiff: diff}
	}
	return &Verdict{Success: true}
}

// build returns an empty string on success, otherwise the build error log.
func (m *Manager) build(ctx context.Context, req TestRequest, tag string) string {
	contextDir := filepath.Dir(req.DockerfilePath)
	scriptName := filepath.Base(req.ScriptPath)
	if scriptName == filepath.Base(req.DockerfilePath) {
		return fmt.Sprintf("Error during Docker build: script %q would overwrite the Dockerfile in the build context", scriptName)
	}
	if err := copyFile(req.ScriptPath, filepath.Join(contextDir, scriptName)); err != nil {
		return fmt.Sprintf("Error during Docker build: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.buildTimeout)
	defer cancel()

	res, err := m.runtime.Build(ctx, BuildSpec{
		ContextDir: contextDir,
		Dockerfile: filepath.Base(req.DockerfilePath),
		Tag:        tag,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Sprintf("Docker build timed out after %d seconds", int(m.buildTimeout.Seconds()))
		}
		return fmt.Sprintf("Error during Docker build: %v", err)
	}
	if res.ExitCode != 0 {
		return fmt.Sprintf("Build failed with exit code %d\nSTDOUT:\n%s\nSTDERR:\n%s\n", res.ExitCode, res.Stdout, res.Stderr)
	}
	return ""
}

// run returns the container's stdout, or a non-empty runtime error log.
func (m *Manager) run(ctx context.Context, tag, input string) (string, string) {
	ctx, cancel := context.WithTimeout(ctx, m.runTimeout)
	defer cancel()

	spec := RunSpec{
		Image:  tag,
		Args:   []string{input},
		Limits: m.limits,
	}
	slog.Debug("running sandbox container", "command", RunCommand(spec))

	res, err := m.runtime.Run(ctx, spec)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Sprintf("Container execution timed out after %d seconds", int(m.runTimeout.Seconds()))
		}
		return "", fmt.Sprintf("Error running container: %v", err)
	}

	stdout := strings.TrimSpace(res.Stdout)
	stderr := strings.TrimSpace(res.Stderr)
	if res.ExitCode != 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "Container exited with code %d\n", res.ExitCode)
		if stderr != "" {
			fmt.Fprintf(&b, "STDERR:\n%s\n", stderr)
		}
		if stdout != "" {
			fmt.Fprintf(&b, "STDOUT:\n%s\n", stdout)
		}
		return "", b.String()
	}
	return stdout, ""
}

// cleanup removes the image. It runs even when the test context is done and
// only logs failures.
func (m *Manager) cleanup(ctx context.Context, tag string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cleanupTimeout)
	defer cancel()

	if err := m.runtime.RemoveImage(ctx, tag); err != nil {
		slog.Warn("image cleanup failed", "image", tag, "error", err)
	}
}

func imageTag() string {
	return imagePrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func copyFile(src, dst string) error {
	if filepath.Clean(src) == filepath.Clean(dst) {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("copy script: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("copy script: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("copy script: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy script: %w", err)
	}
	return out.Close()
}
