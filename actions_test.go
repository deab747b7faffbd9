package dockwright

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/everydev1618/dockwright/container"
	"github.com/everydev1618/dockwright/source"
	"github.com/everydev1618/dockwright/tools"
)

// fakeSandbox returns scripted verdicts and records what it was asked to test.
type fakeSandbox struct {
	mu        sync.Mutex
	available bool
	verdicts  []*container.Verdict
	requests  []container.TestRequest
	// dockerfiles holds the Dockerfile text seen at test time.
	dockerfiles []string
}

func (f *fakeSandbox) IsAvailable(ctx context.Context) bool { return f.available }

func (f *fakeSandbox) Test(ctx context.Context, req container.TestRequest) *container.Verdict {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, _ := os.ReadFile(req.DockerfilePath)
	f.dockerfiles = append(f.dockerfiles, string(data))
	f.requests = append(f.requests, req)

	if len(f.verdicts) == 0 {
		return &container.Verdict{Success: true}
	}
	v := f.verdicts[0]
	f.verdicts = f.verdicts[1:]
	return v
}

func TestBuildActionsRegistersCapabilities(t *testing.T) {
	desc := writeScript(t, "a.py", "print(1)\n")

	tests := []struct {
		name string
		caps CapabilitySet
		want []string
	}{
		{"none", ComputeCapabilities(false, false), []string{}},
		{"search", ComputeCapabilities(true, false), []string{ActionSearch}},
		{"test", ComputeCapabilities(false, true), []string{ActionTest}},
		{"both", ComputeCapabilities(true, true), []string{ActionSearch, ActionTest}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry, err := BuildActions(tt.caps, desc, &fakeSandbox{available: true})
			if err != nil {
				t.Fatalf("BuildActions() error = %v", err)
			}
			got := registry.Names()
			if len(got) == 0 {
				got = []string{}
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Names() = %v, want %v", got, tt.want)
			}
			if len(registry.Schema()) != len(tt.want) {
				t.Errorf("Schema() has %d entries, want %d", len(registry.Schema()), len(tt.want))
			}
		})
	}
}

func TestBuildActionsTestWithoutSandbox(t *testing.T) {
	desc := writeScript(t, "a.py", "print(1)\n")
	if _, err := BuildActions(ComputeCapabilities(false, true), desc, nil); err == nil {
		t.Error("expected error when the test action has no sandbox")
	}
}

func TestSearchAction(t *testing.T) {
	desc := writeScript(t, "app.py", "import os\nimport sys\n\ndef main():\n    pass\n", source.WithThreshold(8))
	registry, err := BuildActions(ComputeCapabilities(true, false), desc, nil)
	if err != nil {
		t.Fatalf("BuildActions() error = %v", err)
	}

	out, err := registry.Execute(context.Background(), ActionSearch, map[string]any{
		"pattern":       "^def main",
		"context_lines": float64(1),
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var matches []source.Match
	if err := json.Unmarshal([]byte(out), &matches); err != nil {
		t.Fatalf("decode matches: %v (%s)", err, out)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	m := matches[0]
	if m.LineNumber != 4 || m.Text != "def main():" {
		t.Errorf("match = %+v", m)
	}
	if !reflect.DeepEqual(m.ContextBefore, []string{""}) || !reflect.DeepEqual(m.ContextAfter, []string{"    pass"}) {
		t.Errorf("context = %q / %q", m.ContextBefore, m.ContextAfter)
	}
}

func TestSearchActionInvalidPattern(t *testing.T) {
	desc := writeScript(t, "app.py", "import os\n", source.WithThreshold(4))
	registry, _ := BuildActions(ComputeCapabilities(true, false), desc, nil)

	_, err := registry.Execute(context.Background(), ActionSearch, map[string]any{"pattern": "("})
	if !errors.Is(err, source.ErrInvalidPattern) {
		t.Errorf("error = %v, want ErrInvalidPattern", err)
	}
}

func TestTestAction(t *testing.T) {
	desc := writeScript(t, "echo.py", "print('HELLO')\n")
	sb := &fakeSandbox{
		available: true,
		verdicts:  []*container.Verdict{{BuildErrors: "Build failed with exit code 1"}},
	}
	st := &runState{}
	registry, err := buildActions(ComputeCapabilities(false, true), desc, sb, st)
	if err != nil {
		t.Fatalf("buildActions() error = %v", err)
	}

	out, err := registry.Execute(context.Background(), ActionTest, map[string]any{
		"dockerfile_content": "FROM python:3.12-slim",
		"example_input":      "hi",
		"example_output":     "HELLO",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var v container.Verdict
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decode verdict: %v", err)
	}
	if v.Success || v.BuildErrors == "" {
		t.Errorf("verdict = %+v", v)
	}
	if strings.Contains(out, "runtime_errors") {
		t.Errorf("empty fields should be omitted: %s", out)
	}

	req := sb.requests[0]
	if req.ScriptPath != desc.Path() || req.Input != "hi" || req.ExpectedOutput != "HELLO" {
		t.Errorf("request = %+v", req)
	}
	if filepath.Base(req.DockerfilePath) != CandidateDockerfile {
		t.Errorf("Dockerfile written as %q, want %q", filepath.Base(req.DockerfilePath), CandidateDockerfile)
	}
	if sb.dockerfiles[0] != "FROM python:3.12-slim" {
		t.Errorf("Dockerfile = %q", sb.dockerfiles[0])
	}
	if _, err := os.Stat(filepath.Dir(req.DockerfilePath)); !os.IsNotExist(err) {
		t.Error("test directory should be removed after the run")
	}

	last, n := st.verdict()
	if n != 1 || last == nil || last.BuildErrors == "" {
		t.Errorf("recorded verdict = %+v (%d tests)", last, n)
	}
}

func TestTestActionMissingParam(t *testing.T) {
	desc := writeScript(t, "echo.py", "print('HELLO')\n")
	sb := &fakeSandbox{available: true}
	registry, _ := BuildActions(ComputeCapabilities(false, true), desc, sb)

	_, err := registry.Execute(context.Background(), ActionTest, map[string]any{
		"dockerfile_content": "FROM alpine",
	})
	if !errors.Is(err, tools.ErrMissingParam) {
		t.Errorf("error = %v, want ErrMissingParam", err)
	}
	if len(sb.requests) != 0 {
		t.Error("sandbox should not run without all parameters")
	}
}
