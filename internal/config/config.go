// Package config provides layered configuration for dockwright.
//
// Configuration is loaded in this order:
//  1. Built-in defaults
//  2. YAML config file (explicit path, DOCKWRIGHT_CONFIG, ./dockwright.yaml, $DOCKWRIGHT_HOME/config.yaml)
//  3. Environment variable overrides (DOCKWRIGHT_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/everydev1618/dockwright"
	"github.com/everydev1618/dockwright/container"
	"github.com/everydev1618/dockwright/guard"
	"github.com/everydev1618/dockwright/llm"
	"github.com/everydev1618/dockwright/source"
)

// Config holds all configuration for dockwright.
type Config struct {
	Provider   ProviderConfig   `yaml:"provider"`
	Generation GenerationConfig `yaml:"generation"`
	Sandbox    SandboxConfig    `yaml:"sandbox"`
	Serve      ServeConfig      `yaml:"serve"`
	Log        LogConfig        `yaml:"log"`
}

// ProviderConfig selects the language model backend.
type ProviderConfig struct {
	Name       string        `yaml:"name"`         // "openai", "gemini" or "anthropic", default: "openai"
	Model      string        `yaml:"model"`        // default: the provider's default model
	APIKey     string        `yaml:"api_key"`      // default: the provider's key variable
	APIKeyFile string        `yaml:"api_key_file"` // _file variant for api_key
	BaseURL    string        `yaml:"base_url"`     // optional
	Timeout    time.Duration `yaml:"timeout"`      // default: 5m
}

// GenerationConfig holds settings for one generation run.
type GenerationConfig struct {
	MaxTurns       int    `yaml:"max_turns"`        // default: 5
	Threshold      int64  `yaml:"threshold"`        // default: 100 KiB
	MaxScriptSize  int64  `yaml:"max_script_size"`  // default: 500 KiB
	MaxExampleSize int64  `yaml:"max_example_size"` // default: 64 KiB
	OutputDir      string `yaml:"output_dir"`       // default: "generated_dockerfiles"
}

// SandboxConfig holds sandbox timeouts and resource limits.
type SandboxConfig struct {
	DaemonTimeout  time.Duration `yaml:"daemon_timeout"`  // default: 5s
	BuildTimeout   time.Duration `yaml:"build_timeout"`   // default: 120s
	RunTimeout     time.Duration `yaml:"run_timeout"`     // default: 30s
	CleanupTimeout time.Duration `yaml:"cleanup_timeout"` // default: 10s
	MemoryMB       int64         `yaml:"memory_mb"`       // default: 512
	CPUs           float64       `yaml:"cpus"`            // default: 1.0
	PidsLimit      int64         `yaml:"pids_limit"`      // default: 100
}

// ServeConfig holds HTTP server settings.
type ServeConfig struct {
	Addr      string `yaml:"addr"`      // default: ":3001"
	DB        string `yaml:"db"`        // default: $DOCKWRIGHT_HOME/dockwright.db
	Workspace string `yaml:"workspace"` // default: "."
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn" or "error", default: "info"
	Format string `yaml:"format"` // "text" or "json", default: "text"
}

// Defaults returns a Config populated with built-in defaults.
func Defaults() Config {
	limits := container.DefaultLimits()
	return Config{
		Provider: ProviderConfig{
			Name:    llm.ProviderOpenAI,
			Timeout: 5 * time.Minute,
		},
		Generation: GenerationConfig{
			MaxTurns:       dockwright.DefaultMaxTurns,
			Threshold:      source.DefaultThreshold,
			MaxScriptSize:  guard.DefaultMaxScriptSize,
			MaxExampleSize: guard.DefaultMaxExampleSize,
			OutputDir:      dockwright.DefaultOutputDir,
		},
		Sandbox: SandboxConfig{
			DaemonTimeout:  container.DefaultDaemonTimeout,
			BuildTimeout:   container.DefaultBuildTimeout,
			RunTimeout:     container.DefaultRunTimeout,
			CleanupTimeout: container.DefaultCleanupTimeout,
			MemoryMB:       limits.MemoryBytes >> 20,
			CPUs:           float64(limits.NanoCPUs) / 1e9,
			PidsLimit:      limits.PidsLimit,
		},
		Serve: ServeConfig{
			Addr:      ":3001",
			DB:        dockwright.DefaultDBPath(),
			Workspace: ".",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// APIKeyEnv returns the environment variable holding the key for a provider.
func APIKeyEnv(provider string) string {
	switch provider {
	case llm.ProviderGemini:
		return "GOOGLE_API_KEY"
	case llm.ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return "OPENAI_API_KEY"
	}
}

// LLM returns the backend configuration. An empty key falls back to the
// provider's key variable, so a provider picked after Load still finds it.
func (c *Config) LLM() llm.ProviderConfig {
	key := c.Provider.APIKey
	if key == "" {
		key = os.Getenv(APIKeyEnv(c.Provider.Name))
	}
	return llm.ProviderConfig{
		Name:    c.Provider.Name,
		APIKey:  key,
		Model:   c.Provider.Model,
		BaseURL: c.Provider.BaseURL,
		Timeout: c.Provider.Timeout,
	}
}

// Limits converts the sandbox settings to container limits.
func (s SandboxConfig) Limits() container.Limits {
	limits := container.DefaultLimits()
	limits.MemoryBytes = s.MemoryMB << 20
	limits.NanoCPUs = int64(s.CPUs * 1e9)
	limits.PidsLimit = s.PidsLimit
	return limits
}

// ManagerOptions returns the sandbox manager options for these settings.
func (s SandboxConfig) ManagerOptions() []container.ManagerOption {
	return []container.ManagerOption{
		container.WithLimits(s.Limits()),
		container.WithTimeouts(s.DaemonTimeout, s.BuildTimeout, s.RunTimeout, s.CleanupTimeout),
	}
}

// SlogLevel returns the configured level, defaulting to info.
func (l LogConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
