// Package main provides the dockwright CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/everydev1618/dockwright"
	"github.com/everydev1618/dockwright/container"
	"github.com/everydev1618/dockwright/internal/config"
	"github.com/everydev1618/dockwright/internal/metrics"
	"github.com/everydev1618/dockwright/llm"
	"github.com/everydev1618/dockwright/serve"
)

var (
	version = "dev"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "generate":
		generateCmd(args)
	case "history":
		historyCmd(args)
	case "serve":
		serveCmd(args)
	case "mcp":
		mcpCmd(args)
	case "version":
		fmt.Printf("dockwright %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`dockwright - Dockerfile generation with sandbox testing

Usage:
  dockwright <command> [options]

Commands:
  generate  Generate a Dockerfile for a script and an example usage file
  history   List recorded generation runs
  serve     Start the HTTP API
  mcp       Serve a script's actions to MCP clients over stdio
  version   Print version information
  help      Show this help message

Examples:
  dockwright generate scripts/csv_analyzer.py examples/csv_analyzer.txt
  dockwright generate tool.py usage.txt --provider gemini --max-turns 8
  dockwright history --limit 10
  dockwright serve --addr :8080 --workspace ./scripts

Environment:
  OPENAI_API_KEY, GOOGLE_API_KEY, ANTHROPIC_API_KEY  provider credentials
  DOCKWRIGHT_HOME                                     state directory (default ~/.dockwright)
  DOCKWRIGHT_CONFIG                                   config file path

Run 'dockwright <command> --help' for more information on a command.`)
}

// loadConfig loads the layered configuration and installs the default logger.
func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	setupLogging(cfg.Log)
	return cfg
}

// setupLogging installs the configured slog handler on stderr, so stdout
// stays clean for --json output.
func setupLogging(lc config.LogConfig) {
	opts := &slog.HandlerOptions{Level: lc.SlogLevel()}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if lc.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// newSandbox connects to the Docker daemon. When no client can be created
// the manager still works and reports the sandbox as unavailable. The
// returned func releases the client.
func newSandbox(cfg *config.Config) (*container.Manager, func()) {
	opts := append(cfg.Sandbox.ManagerOptions(), container.WithVerdictHook(metrics.ObserveVerdict))

	rt, err := container.NewDockerRuntime()
	if err != nil {
		slog.Warn("docker client unavailable, sandbox testing disabled", "error", err)
		return container.NewManager(nil, opts...), func() {}
	}
	return container.NewManager(rt, opts...), func() { rt.Close() }
}

// newModel builds the configured backend, exiting with the provider's key
// variable named when no key is set.
func newModel(cfg *config.Config) (llm.LLM, string) {
	pc := cfg.LLM()
	if pc.APIKey == "" {
		fmt.Fprintf(os.Stderr, "Error: %s environment variable required\n", config.APIKeyEnv(pc.Name))
		os.Exit(1)
	}
	model, err := llm.New(pc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	name := pc.Model
	if name == "" {
		name = llm.DefaultModel(pc.Name)
	}
	return model, name
}

// openStore opens the run history database.
func openStore(path string) (*serve.SQLiteStore, error) {
	if err := dockwright.EnsureHome(); err != nil {
		return nil, err
	}
	store, err := serve.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := store.Init(); err != nil {
		store.Close()
		return nil, fmt.Errorf("init database: %w", err)
	}
	return store, nil
}
