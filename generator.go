package dockwright

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/everydev1618/dockwright/container"
	"github.com/everydev1618/dockwright/llm"
	"github.com/everydev1618/dockwright/source"
	"github.com/everydev1618/dockwright/tools"
)

// DefaultMaxTurns bounds the number of model requests in one run.
const DefaultMaxTurns = 5

// NoValidationNote is attached to results of runs without a reachable sandbox.
const NoValidationNote = "Dockerfile generated successfully, but Docker client was not available for testing."

// Generator drives one model conversation per run: it exposes the run's
// actions, executes the ones the model invokes, and extracts the final
// Dockerfile. A Generator may serve concurrent runs.
type Generator struct {
	llm        llm.LLM
	sandbox    Sandbox
	maxTurns   int
	provider   string
	model      string
	middleware []tools.ToolMiddleware
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithSandbox enables the test action whenever the sandbox is reachable.
func WithSandbox(sb Sandbox) GeneratorOption {
	return func(g *Generator) {
		g.sandbox = sb
	}
}

// WithMaxTurns sets the turn ceiling. Values below 1 keep DefaultMaxTurns.
func WithMaxTurns(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.maxTurns = n
		}
	}
}

// WithProviderInfo records the provider and model names on results.
func WithProviderInfo(provider, model string) GeneratorOption {
	return func(g *Generator) {
		g.provider = provider
		g.model = model
	}
}

// WithToolMiddleware wraps every action execution.
func WithToolMiddleware(mw tools.ToolMiddleware) GeneratorOption {
	return func(g *Generator) {
		g.middleware = append(g.middleware, mw)
	}
}

// NewGenerator creates a Generator on top of the given model backend.
func NewGenerator(model llm.LLM, opts ...GeneratorOption) *Generator {
	g := &Generator{
		llm:      model,
		maxTurns: DefaultMaxTurns,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Request is one generation run.
type Request struct {
	Source *source.Descriptor
	// Example is the example usage text, embedded in the prompt verbatim.
	Example string
}

// Result is the outcome of one generation run.
type Result struct {
	RunID    string `json:"id"`
	Script   string `json:"script"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	Artifact      string `json:"artifact"`
	Succeeded     bool   `json:"succeeded"`
	FailureReason string `json:"failure_reason,omitempty"`
	Note          string `json:"note,omitempty"`
	// Validated is true when the last sandbox test of the run passed.
	Validated bool `json:"validated"`

	Capabilities []string           `json:"capabilities"`
	Turns        int                `json:"turns"`
	ToolCalls    []string           `json:"tool_calls,omitempty"`
	LastVerdict  *container.Verdict `json:"last_verdict,omitempty"`

	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	// Err is the failure cause, for errors.Is.
	Err error `json:"-"`
}

// Generate runs one generation attempt to completion. It never returns nil;
// failures are reported through Succeeded, FailureReason and Err.
func (g *Generator) Generate(ctx context.Context, req Request) *Result {
	res := &Result{
		RunID:     uuid.NewString()[:8],
		Script:    req.Source.Path(),
		Provider:  g.provider,
		Model:     g.model,
		StartedAt: time.Now(),
	}
	defer func() { res.CompletedAt = time.Now() }()
	ctx = context.WithValue(ctx, runIDKey{}, res.RunID)

	sandboxUp := g.sandbox != nil && g.sandbox.IsAvailable(ctx)
	caps := ComputeCapabilities(req.Source.IsLarge(), sandboxUp)
	res.Capabilities = caps.List()

	st := &runState{}
	registry, err := buildActions(caps, req.Source, g.sandbox, st)
	if err != nil {
		return res.fail(err, st)
	}
	for _, mw := range g.middleware {
		registry.Use(mw)
	}

	userPrompt, err := BuildUserPrompt(req.Source, req.Example, caps)
	if err != nil {
		return res.fail(err, st)
	}

	content, err := g.converse(ctx, registry, []llm.Message{
		{Role: llm.RoleSystem, Content: BuildSystemPrompt(caps)},
		{Role: llm.RoleUser, Content: userPrompt},
	}, res)
	if err != nil {
		return res.fail(err, st)
	}

	artifact, _ := ExtractArtifact(content)
	if artifact == "" {
		return res.fail(ErrEmptyArtifact, st)
	}

	res.Artifact = artifact
	res.Succeeded = true
	res.LastVerdict, _ = st.verdict()
	res.Validated = res.LastVerdict != nil && res.LastVerdict.Success
	if !sandboxUp {
		res.Note = NoValidationNote
	}
	return res
}

// converse runs the request/action loop and returns the final response text.
// Every request counts as a turn; a response that still invokes actions once
// the ceiling is reached ends the run with ErrMaxTurnsExceeded.
func (g *Generator) converse(ctx context.Context, registry *tools.Tools, messages []llm.Message, res *Result) (string, error) {
	schemas := registry.Schema()

	for res.Turns < g.maxTurns {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		resp, err := g.llm.Generate(ctx, messages, schemas)
		res.Turns++
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrProviderCallFailed, err)
		}

		res.InputTokens += resp.InputTokens
		res.OutputTokens += resp.OutputTokens
		res.CostUSD += resp.CostUSD

		if len(resp.ToolCalls) == 0 {
			return resp.Content, nil
		}

		assistant := llm.Message{
			Role:      llm.RoleAssistant,
			Content:   strings.TrimSpace(resp.Content),
			ToolCalls: resp.ToolCalls,
		}
		results := llm.Message{Role: llm.RoleUser}
		for _, tc := range resp.ToolCalls {
			res.ToolCalls = append(res.ToolCalls, tc.Name)

			out, err := registry.Execute(ctx, tc.Name, tc.Arguments)
			if err != nil {
				out = "Error: " + err.Error()
			}
			results.ToolResults = append(results.ToolResults, llm.ToolResult{
				ToolCallID: tc.ID,
				Name:       tc.Name,
				Content:    out,
			})
		}

		messages = append(messages, assistant, results)
	}

	return "", ErrMaxTurnsExceeded
}

// fail marks the result failed. The last verdict, if any, is attached so the
// caller can show what went wrong in the sandbox.
func (r *Result) fail(err error, st *runState) *Result {
	r.Succeeded = false
	r.Err = err
	r.LastVerdict, _ = st.verdict()

	reason := err.Error()
	if errors.Is(err, ErrMaxTurnsExceeded) || errors.Is(err, ErrEmptyArtifact) {
		reason = "could not produce a passing artifact: " + reason
		if v := r.LastVerdict; v != nil && !v.Success {
			reason += fmt.Sprintf(" (last %s failure: %s)", v.Stage(), firstLine(v.Detail()))
		}
	}
	r.FailureReason = reason
	return r
}

type runIDKey struct{}

// RunIDFromContext returns the ID of the run an action executes in, or "".
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
