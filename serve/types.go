package serve

import (
	"time"

	"github.com/everydev1618/dockwright"
	"github.com/everydev1618/dockwright/container"
)

// RunRecord is one recorded generation run.
type RunRecord struct {
	ID            string    `json:"id"`
	Script        string    `json:"script"`
	Provider      string    `json:"provider"`
	Model         string    `json:"model"`
	Succeeded     bool      `json:"succeeded"`
	Validated     bool      `json:"validated"`
	Artifact      string    `json:"artifact"`
	FailureReason string    `json:"failure_reason,omitempty"`
	Note          string    `json:"note,omitempty"`
	Turns         int       `json:"turns"`
	ToolCalls     []string  `json:"tool_calls"`
	InputTokens   int       `json:"input_tokens"`
	OutputTokens  int       `json:"output_tokens"`
	CostUSD       float64   `json:"cost_usd"`
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at"`
}

// RunFromResult converts a generation result to its stored form.
func RunFromResult(res *dockwright.Result) RunRecord {
	toolCalls := res.ToolCalls
	if toolCalls == nil {
		toolCalls = []string{}
	}
	return RunRecord{
		ID:            res.RunID,
		Script:        res.Script,
		Provider:      res.Provider,
		Model:         res.Model,
		Succeeded:     res.Succeeded,
		Validated:     res.Validated,
		Artifact:      res.Artifact,
		FailureReason: res.FailureReason,
		Note:          res.Note,
		Turns:         res.Turns,
		ToolCalls:     toolCalls,
		InputTokens:   res.InputTokens,
		OutputTokens:  res.OutputTokens,
		CostUSD:       res.CostUSD,
		StartedAt:     res.StartedAt,
		CompletedAt:   res.CompletedAt,
	}
}

// GenerateRequest is the body of POST /api/generate. Relative paths are
// resolved against the server's workspace.
type GenerateRequest struct {
	ScriptPath  string `json:"script_path"`
	ExamplePath string `json:"example_path"`
}

// GenerateResponse is a finished run with its advisory warnings and the last
// sandbox verdict.
type GenerateResponse struct {
	RunRecord
	Capabilities []string           `json:"capabilities"`
	Warnings     []string           `json:"warnings,omitempty"`
	LastVerdict  *container.Verdict `json:"last_verdict,omitempty"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// ErrorResponse is a JSON error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// BrokerEvent is a run lifecycle event pushed to SSE subscribers.
type BrokerEvent struct {
	Type      string    `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	Script    string    `json:"script,omitempty"`
	Tool      string    `json:"tool,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Event types.
const (
	EventRunStarted   = "run.started"
	EventToolExecuted = "tool.executed"
	EventRunCompleted = "run.completed"
	EventRunFailed    = "run.failed"
)
