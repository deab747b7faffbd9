package dockwright

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/everydev1618/dockwright/container"
	"github.com/everydev1618/dockwright/source"
	"github.com/everydev1618/dockwright/tools"
)

// CandidateDockerfile is the file name a drafted Dockerfile is tested under.
// It differs from "Dockerfile" so a script of that name can sit beside it.
const CandidateDockerfile = "Dockerfile.dockwright"

// Sandbox tests candidate Dockerfiles. *container.Manager implements it.
type Sandbox interface {
	IsAvailable(ctx context.Context) bool
	Test(ctx context.Context, req container.TestRequest) *container.Verdict
}

// runState records what the actions of one run observed.
type runState struct {
	mu          sync.Mutex
	lastVerdict *container.Verdict
	tests       int
}

func (s *runState) recordVerdict(v *container.Verdict) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastVerdict = v
	s.tests++
}

func (s *runState) verdict() (*container.Verdict, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastVerdict, s.tests
}

// BuildActions registers exactly the actions in caps, bound to the script
// described by desc. sb may be nil when caps excludes the test action.
func BuildActions(caps CapabilitySet, desc *source.Descriptor, sb Sandbox) (*tools.Tools, error) {
	return buildActions(caps, desc, sb, &runState{})
}

func buildActions(caps CapabilitySet, desc *source.Descriptor, sb Sandbox, st *runState) (*tools.Tools, error) {
	registry := tools.NewTools()

	if caps.Search() {
		err := registry.Register(ActionSearch, tools.ToolDef{
			Description: "Search for patterns in the script file without loading full content. Returns matching lines with surrounding context.",
			Fn: func(ctx context.Context, params map[string]any) (string, error) {
				return searchAction(desc, params)
			},
			Params: map[string]tools.ParamDef{
				"pattern":       {Type: "string", Description: "Regular expression to search for", Required: true},
				"context_lines": {Type: "integer", Description: "Lines of context before and after each match", Default: source.DefaultContextLines},
			},
		})
		if err != nil {
			return nil, err
		}
	}

	if caps.Test() {
		if sb == nil {
			return nil, fmt.Errorf("%s exposed without a sandbox", ActionTest)
		}
		err := registry.Register(ActionTest, tools.ToolDef{
			Description: "Test a generated Dockerfile by building it with the script and running it with the example input. Returns a verdict with build errors, runtime errors or an output diff.",
			Fn: func(ctx context.Context, params map[string]any) (string, error) {
				return testAction(ctx, sb, desc.Path(), params, st)
			},
			Params: map[string]tools.ParamDef{
				"dockerfile_content": {Type: "string", Description: "Complete Dockerfile text", Required: true},
				"example_input":      {Type: "string", Description: "Input passed to the container as a single argument", Required: true},
				"example_output":     {Type: "string", Description: "Output expected from the container", Required: true},
			},
		})
		if err != nil {
			return nil, err
		}
	}

	return registry, nil
}

func searchAction(desc *source.Descriptor, params map[string]any) (string, error) {
	pattern, err := tools.String(params, "pattern")
	if err != nil {
		return "", err
	}
	contextLines, err := tools.Int(params, "context_lines", source.DefaultContextLines)
	if err != nil {
		return "", err
	}

	matches, err := desc.Search(pattern, contextLines)
	if err != nil {
		return "", err
	}

	out, err := json.Marshal(matches)
	if err != nil {
		return "", fmt.Errorf("encode matches: %w", err)
	}
	return string(out), nil
}

// testAction writes the Dockerfile into a directory that lives only for this
// one sandbox run.
func testAction(ctx context.Context, sb Sandbox, scriptPath string, params map[string]any, st *runState) (string, error) {
	dockerfile, err := tools.String(params, "dockerfile_content")
	if err != nil {
		return "", err
	}
	input, err := tools.String(params, "example_input")
	if err != nil {
		return "", err
	}
	expected, err := tools.String(params, "example_output")
	if err != nil {
		return "", err
	}

	dir, err := os.MkdirTemp("", "dockwright-test-")
	if err != nil {
		return "", fmt.Errorf("create test directory: %w", err)
	}
	defer os.RemoveAll(dir)

	dockerfilePath := filepath.Join(dir, CandidateDockerfile)
	if err := os.WriteFile(dockerfilePath, []byte(dockerfile), 0o644); err != nil {
		return "", fmt.Errorf("write Dockerfile: %w", err)
	}

	v := sb.Test(ctx, container.TestRequest{
		DockerfilePath: dockerfilePath,
		ScriptPath:     scriptPath,
		Input:          input,
		ExpectedOutput: expected,
	})
	st.recordVerdict(v)

	out, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode verdict: %w", err)
	}
	return string(out), nil
}
