package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/everydev1618/dockwright/serve"
)

// historyCmd lists recorded runs, newest first.
func historyCmd(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")
	limit := fs.Int("limit", 20, "Number of runs to show")
	dbPath := fs.String("db", "", "Database path (default: from config)")

	fs.Usage = func() {
		fmt.Println(`Usage: dockwright history [options]

List recorded generation runs, newest first.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg := loadConfig(*configPath)
	if *dbPath != "" {
		cfg.Serve.DB = *dbPath
	}
	if *limit < 1 {
		fmt.Fprintln(os.Stderr, "Error: --limit must be positive")
		os.Exit(1)
	}

	store, err := openStore(cfg.Serve.DB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	runs, err := store.ListRuns(*limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tSCRIPT\tPROVIDER\tSTATUS\tTURNS\tCOST")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t$%.4f\n",
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			filepath.Base(r.Script),
			r.Provider,
			status(r),
			r.Turns,
			r.CostUSD,
		)
	}
	w.Flush()
}

func status(r serve.RunRecord) string {
	switch {
	case !r.Succeeded:
		return "failed"
	case r.Validated:
		return "validated"
	default:
		return "unvalidated"
	}
}
