// Package metrics provides Prometheus metrics for generation runs, sandbox
// verdicts, action executions and the HTTP API.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/everydev1618/dockwright"
	"github.com/everydev1618/dockwright/container"
	"github.com/everydev1618/dockwright/tools"
)

// SandboxBuckets covers sandbox stages from a cached build to a full build timeout.
var SandboxBuckets = []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 180}

// Generation outcomes.
const (
	OutcomeValidated   = "validated"
	OutcomeUnvalidated = "unvalidated"
	OutcomeFailed      = "failed"
)

var (
	// GenerationsTotal counts finished generation runs by provider and outcome.
	GenerationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dockwright_generations_total",
			Help: "Generation runs",
		},
		[]string{"provider", "outcome"},
	)

	// GenerationDuration records wall time of whole generation runs in seconds.
	GenerationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dockwright_generation_duration_seconds",
			Help:    "Generation run duration",
			Buckets: SandboxBuckets,
		},
		[]string{"provider"},
	)

	// GenerationTurns records how many model requests each run needed.
	GenerationTurns = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dockwright_generation_turns",
			Help:    "Model requests per generation run",
			Buckets: []float64{1, 2, 3, 4, 5, 8, 10},
		},
	)

	// VerdictsTotal counts sandbox verdicts by the stage they ended in.
	VerdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dockwright_sandbox_verdicts_total",
			Help: "Sandbox verdicts",
		},
		[]string{"stage"},
	)

	// SandboxDuration records sandbox test duration in seconds by final stage.
	SandboxDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dockwright_sandbox_duration_seconds",
			Help:    "Sandbox test duration",
			Buckets: SandboxBuckets,
		},
		[]string{"stage"},
	)

	// ToolExecutionsTotal counts action executions by name and outcome.
	ToolExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dockwright_tool_executions_total",
			Help: "Tool executions",
		},
		[]string{"tool_name", "status"},
	)

	// ProviderTokensTotal counts tokens processed by direction (input/output).
	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dockwright_provider_tokens_total",
			Help: "Token count",
		},
		[]string{"provider", "model", "direction"},
	)

	// RequestsTotal counts HTTP API requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dockwright_http_requests_total",
			Help: "HTTP requests",
		},
		[]string{"method", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		GenerationsTotal,
		GenerationDuration,
		GenerationTurns,
		VerdictsTotal,
		SandboxDuration,
		ToolExecutionsTotal,
		ProviderTokensTotal,
		RequestsTotal,
	)
}

// Outcome classifies a finished run.
func Outcome(res *dockwright.Result) string {
	switch {
	case !res.Succeeded:
		return OutcomeFailed
	case res.Validated:
		return OutcomeValidated
	default:
		return OutcomeUnvalidated
	}
}

// ObserveResult records a finished generation run.
func ObserveResult(res *dockwright.Result) {
	provider := res.Provider
	if provider == "" {
		provider = "unknown"
	}
	GenerationsTotal.WithLabelValues(provider, Outcome(res)).Inc()
	GenerationDuration.WithLabelValues(provider).Observe(res.CompletedAt.Sub(res.StartedAt).Seconds())
	GenerationTurns.Observe(float64(res.Turns))
	ProviderTokensTotal.WithLabelValues(provider, res.Model, "input").Add(float64(res.InputTokens))
	ProviderTokensTotal.WithLabelValues(provider, res.Model, "output").Add(float64(res.OutputTokens))
}

// ObserveVerdict records a sandbox verdict. Its signature matches
// container.WithVerdictHook.
func ObserveVerdict(v *container.Verdict, d time.Duration) {
	stage := v.Stage()
	VerdictsTotal.WithLabelValues(stage).Inc()
	SandboxDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ToolMiddleware counts action executions. Install it with tools.Tools.Use
// or dockwright.WithToolMiddleware.
func ToolMiddleware(name string, next tools.ToolFunc) tools.ToolFunc {
	return func(ctx context.Context, params map[string]any) (string, error) {
		out, err := next(ctx, params)
		status := "ok"
		if err != nil {
			status = "error"
		}
		ToolExecutionsTotal.WithLabelValues(name, status).Inc()
		return out, err
	}
}
