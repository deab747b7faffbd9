package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/everydev1618/dockwright"
	"github.com/everydev1618/dockwright/internal/metrics"
	"github.com/everydev1618/dockwright/serve"
	"github.com/everydev1618/dockwright/tools"
)

const rule = "======================================================================"

// generateCmd runs one generation for a script and an example usage file.
func generateCmd(args []string) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")
	provider := fs.String("provider", "", "LLM provider: openai, gemini or anthropic")
	model := fs.String("model", "", "Model name (default: the provider's default)")
	maxTurns := fs.Int("max-turns", 0, "Maximum model requests per run")
	outputDir := fs.String("output-dir", "", "Directory for the generated Dockerfile")
	noSave := fs.Bool("no-save", false, "Print the Dockerfile without saving it")
	asJSON := fs.Bool("json", false, "Print the run result as JSON")

	fs.Usage = func() {
		fmt.Println(`Usage: dockwright generate <script> <example-usage-file> [options]

Generate a Dockerfile that runs the script with the command-line interface
shown in the example usage file. When Docker is available, the model tests
its drafts in a sandbox and iterates until the output matches.

Options:`)
		fs.PrintDefaults()
		fmt.Println(`
Examples:
  dockwright generate scripts/csv_analyzer.py examples/csv_analyzer.txt
  dockwright generate tool.py usage.txt --provider gemini --no-save`)
	}

	// flags may follow the positional arguments
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			os.Exit(1)
		}
		if fs.NArg() == 0 {
			break
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}

	if len(positional) != 2 {
		fmt.Fprintln(os.Stderr, "Error: a script and an example usage file are required")
		fs.Usage()
		os.Exit(1)
	}

	cfg := loadConfig(*configPath)
	if *provider != "" {
		cfg.Provider.Name = *provider
	}
	if *model != "" {
		cfg.Provider.Model = *model
	}
	if *maxTurns > 0 {
		cfg.Generation.MaxTurns = *maxTurns
	}
	if *outputDir != "" {
		cfg.Generation.OutputDir = *outputDir
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	out := os.Stdout
	if *asJSON {
		out = os.Stderr
	}

	prepared, err := dockwright.Prepare(positional[0], positional[1], dockwright.PrepareOptions{
		MaxScriptSize:  cfg.Generation.MaxScriptSize,
		MaxExampleSize: cfg.Generation.MaxExampleSize,
		Threshold:      cfg.Generation.Threshold,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Error: %v\n", err)
		os.Exit(1)
	}
	for _, w := range prepared.Warnings {
		fmt.Fprintf(out, "⚠️  Warning: %s\n", w)
	}

	llmModel, modelName := newModel(cfg)
	sandbox, release := newSandbox(cfg)
	defer release()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	desc := prepared.Request.Source
	class := "SMALL"
	if desc.IsLarge() {
		class = "LARGE"
	}
	dockerStatus := "Not available"
	if sandbox.IsAvailable(ctx) {
		dockerStatus = "Available"
	}

	fmt.Fprintf(out, "\n%s\nVERIFICATION SUMMARY\n%s\n", rule, rule)
	fmt.Fprintf(out, "Script: %s\n", filepath.Base(prepared.ScriptPath))
	fmt.Fprintf(out, "  Size: %d bytes (%s)\n", desc.Size(), class)
	fmt.Fprintf(out, "  Lines: %d\n", desc.LineCount())
	fmt.Fprintf(out, "\nExample usage file: %s\n", filepath.Base(prepared.ExamplePath))
	fmt.Fprintf(out, "\nProvider: %s (%s)\n", strings.ToUpper(cfg.Provider.Name), modelName)
	fmt.Fprintf(out, "Docker: %s\n%s\n\n", dockerStatus, rule)

	gen := dockwright.NewGenerator(llmModel,
		dockwright.WithSandbox(sandbox),
		dockwright.WithMaxTurns(cfg.Generation.MaxTurns),
		dockwright.WithProviderInfo(cfg.Provider.Name, modelName),
		dockwright.WithToolMiddleware(metrics.ToolMiddleware),
		dockwright.WithToolMiddleware(progressMiddleware(out)),
	)

	res := gen.Generate(ctx, prepared.Request)
	recordRun(cfg.Serve.DB, res)

	var saved string
	if res.Succeeded && !*noSave {
		saved, err = dockwright.SaveArtifact(res.Artifact, prepared.ScriptPath, cfg.Generation.OutputDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error saving Dockerfile: %v\n", err)
			os.Exit(1)
		}
	}

	if *asJSON {
		printJSON(res, saved, prepared.Warnings)
	} else {
		printResult(res, saved)
	}

	if !res.Succeeded {
		os.Exit(1)
	}
}

// progressMiddleware prints each action the model invokes.
func progressMiddleware(out *os.File) tools.ToolMiddleware {
	return func(name string, next tools.ToolFunc) tools.ToolFunc {
		return func(ctx context.Context, params map[string]any) (string, error) {
			fmt.Fprintf(out, "→ %s\n", name)
			result, err := next(ctx, params)
			if err != nil {
				fmt.Fprintf(out, "  ✗ %v\n", err)
			}
			return result, err
		}
	}
}

// recordRun adds the run to the history database. Failures only warn.
func recordRun(dbPath string, res *dockwright.Result) {
	store, err := openStore(dbPath)
	if err != nil {
		slog.Warn("run history unavailable", "error", err)
		return
	}
	defer store.Close()
	if err := store.InsertRun(serve.RunFromResult(res)); err != nil {
		slog.Warn("failed to record run", "run", res.RunID, "error", err)
	}
}

func printResult(res *dockwright.Result, saved string) {
	if !res.Succeeded {
		fmt.Printf("\n%s\n✗ FAILED: could not generate a working Dockerfile\n%s\n", rule, rule)
		fmt.Printf("Reason: %s\n", res.FailureReason)
		if v := res.LastVerdict; v != nil && !v.Success {
			fmt.Printf("\nLast %s failure:\n%s\n", v.Stage(), v.Detail())
		}
		return
	}

	headline := "✓ SUCCESS! Generated a Dockerfile that passed its sandbox test"
	if !res.Validated {
		headline = "✓ Generated a Dockerfile (not validated)"
	}
	fmt.Printf("\n%s\n%s\n%s\n", rule, headline, rule)
	if res.Note != "" {
		fmt.Println(res.Note)
	}
	fmt.Println("\nGenerated Dockerfile:")
	fmt.Println(strings.Repeat("-", len(rule)))
	fmt.Println(res.Artifact)
	fmt.Println(strings.Repeat("-", len(rule)))

	if saved != "" {
		fmt.Printf("\n✓ Dockerfile saved to: %s\n", saved)
		fmt.Printf("  Lines: %d\n", strings.Count(res.Artifact, "\n")+1)
		fmt.Printf("  Size: %d bytes\n", len(res.Artifact))
	}
	fmt.Printf("\nRun %s: %d turns, %d tool calls, $%.4f\n", res.RunID, res.Turns, len(res.ToolCalls), res.CostUSD)
}

func printJSON(res *dockwright.Result, saved string, warnings []string) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(struct {
		*dockwright.Result
		SavedPath string   `json:"saved_path,omitempty"`
		Warnings  []string `json:"warnings,omitempty"`
	}{res, saved, warnings})
}
