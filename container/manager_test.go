package container

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeRuntime records every call and answers from canned results.
type fakeRuntime struct {
	mu sync.Mutex

	pingErr  error
	build    *ExecResult
	buildErr error
	run      *ExecResult
	runErr   error
	// blockRun makes Run wait for its context to end.
	blockRun bool

	builds  []BuildSpec
	runs    []RunSpec
	removed []string
	// scriptSeen is true when the script was next to the Dockerfile at build time.
	scriptSeen bool
	scriptName string
}

func (f *fakeRuntime) Ping(ctx context.Context) error {
	return f.pingErr
}

func (f *fakeRuntime) Build(ctx context.Context, spec BuildSpec) (*ExecResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builds = append(f.builds, spec)
	if f.scriptName != "" {
		_, err := os.Stat(filepath.Join(spec.ContextDir, f.scriptName))
		f.scriptSeen = err == nil
	}
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	if f.build != nil {
		return f.build, nil
	}
	return &ExecResult{}, nil
}

func (f *fakeRuntime) Run(ctx context.Context, spec RunSpec) (*ExecResult, error) {
	f.mu.Lock()
	f.runs = append(f.runs, spec)
	f.mu.Unlock()
	if f.blockRun {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.runErr != nil {
		return nil, f.runErr
	}
	if f.run != nil {
		return f.run, nil
	}
	return &ExecResult{}, nil
}

func (f *fakeRuntime) RemoveImage(ctx context.Context, tag string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, tag)
	return errors.New("no such image")
}

func newRequest(t *testing.T) TestRequest {
	t.Helper()
	dir := t.TempDir()
	dockerfile := filepath.Join(dir, "Dockerfile")
	if err := os.WriteFile(dockerfile, []byte("FROM python:3.12-slim\n"), 0o644); err != nil {
		t.Fatalf("write Dockerfile: %v", err)
	}
	script := filepath.Join(t.TempDir(), "upper.py")
	if err := os.WriteFile(script, []byte("import sys\nprint(sys.argv[1].upper())\n"), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return TestRequest{
		DockerfilePath: dockerfile,
		ScriptPath:     script,
		Input:          "hi",
		ExpectedOutput: "HELLO",
	}
}

func TestManagerTestSuccess(t *testing.T) {
	rt := &fakeRuntime{
		run:        &ExecResult{Stdout: "HELLO\n"},
		scriptName: "upper.py",
	}
	mgr := NewManager(rt)

	v := mgr.Test(context.Background(), newRequest(t))

	if !v.Success {
		t.Fatalf("verdict = %+v, want success", v)
	}
	if v.BuildErrors != "" || v.RuntimeErrors != "" || v.ActualOutput != "" || v.OutputDiff != "" {
		t.Errorf("passing verdict carries detail: %+v", v)
	}
	if v.Stage() != StagePassed {
		t.Errorf("Stage() = %q, want %q", v.Stage(), StagePassed)
	}
	if !rt.scriptSeen {
		t.Error("script was not copied into the build context")
	}
	if len(rt.builds) != 1 || len(rt.runs) != 1 {
		t.Fatalf("builds=%d runs=%d, want 1 each", len(rt.builds), len(rt.runs))
	}
	if rt.builds[0].Dockerfile != "Dockerfile" {
		t.Errorf("Dockerfile = %q, want relative name", rt.builds[0].Dockerfile)
	}
	tag := rt.builds[0].Tag
	if !strings.HasPrefix(tag, "test-") || len(tag) != len("test-")+8 {
		t.Errorf("tag = %q, want test-<8 hex>", tag)
	}
	if rt.runs[0].Image != tag {
		t.Errorf("run image = %q, want %q", rt.runs[0].Image, tag)
	}
	if len(rt.runs[0].Args) != 1 || rt.runs[0].Args[0] != "hi" {
		t.Errorf("run args = %v, want [hi]", rt.runs[0].Args)
	}
	if len(rt.removed) != 1 || rt.removed[0] != tag {
		t.Errorf("removed = %v, want [%s]", rt.removed, tag)
	}
}

func TestManagerScriptNamedDockerfile(t *testing.T) {
	const candidate = "FROM python:3.12-slim\n"

	tests := []struct {
		name           string
		dockerfileName string
		wantBuild      bool
	}{
		{"distinct candidate name", "Dockerfile.dockwright", true},
		{"colliding candidate name", "Dockerfile", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dockerfile := filepath.Join(t.TempDir(), tt.dockerfileName)
			if err := os.WriteFile(dockerfile, []byte(candidate), 0o644); err != nil {
				t.Fatalf("write Dockerfile: %v", err)
			}
			script := filepath.Join(t.TempDir(), "Dockerfile")
			if err := os.WriteFile(script, []byte("#!/bin/sh\necho HELLO\n"), 0o644); err != nil {
				t.Fatalf("write script: %v", err)
			}

			rt := &fakeRuntime{run: &ExecResult{Stdout: "HELLO\n"}, scriptName: "Dockerfile"}
			v := NewManager(rt).Test(context.Background(), TestRequest{
				DockerfilePath: dockerfile,
				ScriptPath:     script,
				Input:          "hi",
				ExpectedOutput: "HELLO",
			})

			data, err := os.ReadFile(dockerfile)
			if err != nil || string(data) != candidate {
				t.Errorf("candidate Dockerfile = %q, %v; want it untouched", data, err)
			}

			if tt.wantBuild {
				if !v.Success || !rt.scriptSeen || len(rt.builds) != 1 || rt.builds[0].Dockerfile != tt.dockerfileName {
					t.Errorf("verdict = %+v, builds = %+v", v, rt.builds)
				}
				return
			}
			if v.Success || !strings.Contains(v.BuildErrors, "would overwrite the Dockerfile") {
				t.Errorf("verdict = %+v, want a build error", v)
			}
			if len(rt.builds) != 0 {
				t.Errorf("builds = %+v, want none", rt.builds)
			}
		})
	}
}

func TestManagerAppliesLimitsOnEveryRun(t *testing.T) {
	rt := &fakeRuntime{run: &ExecResult{Stdout: "HELLO"}}
	mgr := NewManager(rt)

	for i := 0; i < 3; i++ {
		mgr.Test(context.Background(), newRequest(t))
	}

	if len(rt.runs) != 3 {
		t.Fatalf("runs = %d, want 3", len(rt.runs))
	}
	for i, spec := range rt.runs {
		cfg, host := runConfig(spec)
		if host.Memory != 512*1024*1024 {
			t.Errorf("run %d: Memory = %d", i, host.Memory)
		}
		if host.NanoCPUs != 1_000_000_000 {
			t.Errorf("run %d: NanoCPUs = %d", i, host.NanoCPUs)
		}
		if host.PidsLimit == nil || *host.PidsLimit != 100 {
			t.Errorf("run %d: PidsLimit = %v", i, host.PidsLimit)
		}
		if host.NetworkMode != "none" || !cfg.NetworkDisabled {
			t.Errorf("run %d: network mode %q, disabled=%v", i, host.NetworkMode, cfg.NetworkDisabled)
		}
	}
}

func TestLimitsArgs(t *testing.T) {
	got := strings.Join(DefaultLimits().Args(), " ")
	want := "--memory=512m --cpus=1.0 --network=none --pids-limit=100"
	if got != want {
		t.Errorf("Args() = %q, want %q", got, want)
	}
}

func TestRunCommand(t *testing.T) {
	got := RunCommand(RunSpec{
		Image:  "test-abc12345",
		Args:   []string{"it's\x00 here"},
		Limits: DefaultLimits(),
	})
	want := `docker run --rm --memory=512m --cpus=1.0 --network=none --pids-limit=100 test-abc12345 'it'\''s here'`
	if got != want {
		t.Errorf("RunCommand() =\n%s\nwant\n%s", got, want)
	}
}

func TestManagerDaemonUnavailable(t *testing.T) {
	rt := &fakeRuntime{pingErr: ErrDaemonUnavailable}
	mgr := NewManager(rt)

	v := mgr.Test(context.Background(), newRequest(t))

	if v.Success || v.BuildErrors != DaemonUnavailableLog {
		t.Errorf("verdict = %+v, want daemon unavailable", v)
	}
	if len(rt.builds) != 0 || len(rt.removed) != 0 {
		t.Errorf("builds=%v removed=%v, want none", rt.builds, rt.removed)
	}
	if mgr.IsAvailable(context.Background()) {
		t.Error("IsAvailable() = true, want false")
	}
}

func TestManagerNilRuntime(t *testing.T) {
	mgr := NewManager(nil)
	if mgr.IsAvailable(context.Background()) {
		t.Error("IsAvailable() = true, want false")
	}
	v := mgr.Test(context.Background(), newRequest(t))
	if v.BuildErrors != DaemonUnavailableLog {
		t.Errorf("BuildErrors = %q", v.BuildErrors)
	}
}

func TestManagerBuildFailure(t *testing.T) {
	rt := &fakeRuntime{
		build: &ExecResult{ExitCode: 1, Stderr: "pull access denied for nosuchimage"},
	}
	mgr := NewManager(rt)

	v := mgr.Test(context.Background(), newRequest(t))

	if v.Success {
		t.Fatal("Success = true, want false")
	}
	if !strings.Contains(v.BuildErrors, "Build failed with exit code 1") || !strings.Contains(v.BuildErrors, "pull access denied") {
		t.Errorf("BuildErrors = %q", v.BuildErrors)
	}
	if v.RuntimeErrors != "" || v.ActualOutput != "" || v.OutputDiff != "" {
		t.Errorf("verdict carries more than the build log: %+v", v)
	}
	if v.Stage() != StageBuild {
		t.Errorf("Stage() = %q", v.Stage())
	}
	if len(rt.runs) != 0 {
		t.Error("container ran after a failed build")
	}
	if len(rt.removed) != 1 {
		t.Errorf("removed = %v, want cleanup attempt", rt.removed)
	}
}

func TestManagerCleanupFailureWarns(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	rt := &fakeRuntime{run: &ExecResult{Stdout: "HELLO\n"}}
	v := NewManager(rt).Test(context.Background(), newRequest(t))

	if !v.Success {
		t.Fatalf("verdict = %+v, cleanup failures must not fail the test", v)
	}
	out := logs.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "image cleanup failed") ||
		!strings.Contains(out, "image="+rt.removed[0]) {
		t.Errorf("log output = %q, want a warning naming the image", out)
	}
}

func TestManagerBuildEngineError(t *testing.T) {
	rt := &fakeRuntime{buildErr: errors.New("connection reset")}
	v := NewManager(rt).Test(context.Background(), newRequest(t))

	if !strings.Contains(v.BuildErrors, "connection reset") {
		t.Errorf("BuildErrors = %q", v.BuildErrors)
	}
}

func TestManagerRunFailure(t *testing.T) {
	rt := &fakeRuntime{
		run: &ExecResult{ExitCode: 2, Stdout: "partial", Stderr: "Traceback: boom"},
	}
	v := NewManager(rt).Test(context.Background(), newRequest(t))

	if v.Success || v.Stage() != StageRun {
		t.Fatalf("verdict = %+v, want run failure", v)
	}
	for _, want := range []string{"Container exited with code 2", "STDERR:\nTraceback: boom", "STDOUT:\npartial"} {
		if !strings.Contains(v.RuntimeErrors, want) {
			t.Errorf("RuntimeErrors = %q, missing %q", v.RuntimeErrors, want)
		}
	}
	if v.BuildErrors != "" || v.ActualOutput != "" || v.OutputDiff != "" {
		t.Errorf("verdict carries more than the run log: %+v", v)
	}
	if len(rt.removed) != 1 {
		t.Errorf("image not cleaned up after run failure")
	}
}

func TestManagerRunTimeout(t *testing.T) {
	rt := &fakeRuntime{blockRun: true}
	mgr := NewManager(rt, WithTimeouts(0, 0, 50*time.Millisecond, 0))

	v := mgr.Test(context.Background(), newRequest(t))

	if !strings.Contains(v.RuntimeErrors, "timed out") {
		t.Errorf("RuntimeErrors = %q, want timeout", v.RuntimeErrors)
	}
	if len(rt.removed) != 1 {
		t.Errorf("image not cleaned up after timeout")
	}
}

func TestManagerOutputMismatch(t *testing.T) {
	rt := &fakeRuntime{run: &ExecResult{Stdout: "fail\n"}}
	mgr := NewManager(rt)

	req := newRequest(t)
	req.ExpectedOutput = "ok"
	v := mgr.Test(context.Background(), req)

	if v.Success || v.Stage() != StageCompare {
		t.Fatalf("verdict = %+v, want compare failure", v)
	}
	if v.OutputDiff != "Expected:\nok\n\nActual:\nfail" {
		t.Errorf("OutputDiff = %q", v.OutputDiff)
	}
	if v.Detail() != v.OutputDiff {
		t.Errorf("Detail() = %q", v.Detail())
	}
	if v.BuildErrors != "" || v.RuntimeErrors != "" {
		t.Errorf("verdict = %+v", v)
	}
	if len(rt.removed) != 1 {
		t.Error("image not cleaned up after mismatch")
	}
}

func TestManagerVerdictHook(t *testing.T) {
	rt := &fakeRuntime{run: &ExecResult{Stdout: "HELLO"}}
	var got []*Verdict
	mgr := NewManager(rt, WithVerdictHook(func(v *Verdict, d time.Duration) {
		got = append(got, v)
	}))

	mgr.Test(context.Background(), newRequest(t))

	if len(got) != 1 || !got[0].Success {
		t.Errorf("hook saw %v", got)
	}
}

func TestManagerUniqueTags(t *testing.T) {
	rt := &fakeRuntime{run: &ExecResult{Stdout: "HELLO"}}
	mgr := NewManager(rt)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		req := newRequest(t)
		wg.Add(1)
		go func() {
			defer wg.Done()
			mgr.Test(context.Background(), req)
		}()
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, b := range rt.builds {
		if seen[b.Tag] {
			t.Fatalf("duplicate tag %q", b.Tag)
		}
		seen[b.Tag] = true
	}
}
