package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/everydev1618/dockwright"
	"github.com/everydev1618/dockwright/guard"
	"github.com/everydev1618/dockwright/internal/metrics"
	"github.com/everydev1618/dockwright/serve"
	"github.com/everydev1618/dockwright/source"
)

// mcpCmd serves one script's actions to an MCP client over stdio, so an
// external agent can search the script and test Dockerfiles for it.
func mcpCmd(args []string) {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: dockwright mcp <script> [options]

Serve the search_in_file and test_dockerfile actions for a script over
stdio. Which actions are offered follows the same rules as a generation
run: search for large scripts, test when Docker is available.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}

	cfg := loadConfig(*configPath)

	script, err := guard.ValidatePath(fs.Arg(0), "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	ok, size, err := guard.CheckSize(script, cfg.Generation.MaxScriptSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: %v: %d bytes\n", dockwright.ErrScriptTooLarge, size)
		os.Exit(1)
	}
	desc, err := source.Open(script, source.WithThreshold(cfg.Generation.Threshold))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	sandbox, release := newSandbox(cfg)
	defer release()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	caps := dockwright.ComputeCapabilities(desc.IsLarge(), sandbox.IsAvailable(ctx))
	registry, err := dockwright.BuildActions(caps, desc, sandbox)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	registry.Use(metrics.ToolMiddleware)

	slog.Info("serving actions over stdio", "script", script, "actions", caps.List())

	server := serve.NewMCPServer(registry, version)
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
