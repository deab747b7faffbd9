package config

import (
	"errors"
	"fmt"

	"github.com/everydev1618/dockwright/llm"
)

// Validate checks the configuration for valid values. Every problem found is
// reported, each with its field path.
func (c *Config) Validate() error {
	var errs []error

	switch c.Provider.Name {
	case llm.ProviderOpenAI, llm.ProviderGemini, llm.ProviderAnthropic:
		// valid
	default:
		errs = append(errs, fmt.Errorf("provider.name must be \"openai\", \"gemini\" or \"anthropic\", got %q", c.Provider.Name))
	}

	if c.Generation.MaxTurns <= 0 {
		errs = append(errs, fmt.Errorf("generation.max_turns must be > 0, got %d", c.Generation.MaxTurns))
	}
	if c.Generation.Threshold <= 0 {
		errs = append(errs, fmt.Errorf("generation.threshold must be > 0, got %d", c.Generation.Threshold))
	}
	if c.Generation.MaxScriptSize < c.Generation.Threshold {
		errs = append(errs, fmt.Errorf("generation.max_script_size (%d) must be >= generation.threshold (%d)",
			c.Generation.MaxScriptSize, c.Generation.Threshold))
	}
	if c.Generation.MaxExampleSize <= 0 {
		errs = append(errs, fmt.Errorf("generation.max_example_size must be > 0, got %d", c.Generation.MaxExampleSize))
	}

	timeouts := []struct {
		name  string
		value int64
	}{
		{"sandbox.daemon_timeout", int64(c.Sandbox.DaemonTimeout)},
		{"sandbox.build_timeout", int64(c.Sandbox.BuildTimeout)},
		{"sandbox.run_timeout", int64(c.Sandbox.RunTimeout)},
		{"sandbox.cleanup_timeout", int64(c.Sandbox.CleanupTimeout)},
	}
	for _, to := range timeouts {
		if to.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0", to.name))
		}
	}

	if c.Sandbox.MemoryMB <= 0 {
		errs = append(errs, fmt.Errorf("sandbox.memory_mb must be > 0, got %d", c.Sandbox.MemoryMB))
	}
	if c.Sandbox.CPUs <= 0 {
		errs = append(errs, fmt.Errorf("sandbox.cpus must be > 0, got %v", c.Sandbox.CPUs))
	}
	if c.Sandbox.PidsLimit <= 0 {
		errs = append(errs, fmt.Errorf("sandbox.pids_limit must be > 0, got %d", c.Sandbox.PidsLimit))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, fmt.Errorf("log.level must be \"debug\", \"info\", \"warn\" or \"error\", got %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
		// valid
	default:
		errs = append(errs, fmt.Errorf("log.format must be \"text\" or \"json\", got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}
