package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/everydev1618/dockwright"
	"github.com/everydev1618/dockwright/internal/metrics"
	"github.com/everydev1618/dockwright/serve"
)

// serveCmd starts the HTTP API.
func serveCmd(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")
	addr := fs.String("addr", "", "HTTP listen address (default: from config)")
	dbPath := fs.String("db", "", "Database path (default: from config)")
	workspace := fs.String("workspace", "", "Directory that confines client-named paths (default: from config)")

	fs.Usage = func() {
		fmt.Println(`Usage: dockwright serve [options]

Start the HTTP API for generating Dockerfiles and browsing run history.

Endpoints:
  POST /api/generate   Run one generation
  GET  /api/runs       List recorded runs
  GET  /api/runs/{id}  Get one run
  GET  /api/events     Server-sent run and action events
  GET  /healthz        Health check
  GET  /metrics        Prometheus metrics

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg := loadConfig(*configPath)
	if *addr != "" {
		cfg.Serve.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Serve.DB = *dbPath
	}
	if *workspace != "" {
		cfg.Serve.Workspace = *workspace
	}

	store, err := openStore(cfg.Serve.DB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	llmModel, modelName := newModel(cfg)
	sandbox, release := newSandbox(cfg)
	defer release()

	broker := serve.NewEventBroker()
	defer broker.Close()

	gen := dockwright.NewGenerator(llmModel,
		dockwright.WithSandbox(sandbox),
		dockwright.WithMaxTurns(cfg.Generation.MaxTurns),
		dockwright.WithProviderInfo(cfg.Provider.Name, modelName),
		dockwright.WithToolMiddleware(metrics.ToolMiddleware),
		dockwright.WithToolMiddleware(broker.ToolMiddleware),
	)

	srv := serve.New(gen, store, broker, serve.Config{
		Addr:      cfg.Serve.Addr,
		Workspace: cfg.Serve.Workspace,
		Prepare: dockwright.PrepareOptions{
			MaxScriptSize:  cfg.Generation.MaxScriptSize,
			MaxExampleSize: cfg.Generation.MaxExampleSize,
			Threshold:      cfg.Generation.Threshold,
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("dockwright %s serving on http://localhost%s\n", version, cfg.Serve.Addr)
	if err := srv.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
