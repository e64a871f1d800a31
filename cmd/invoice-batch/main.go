package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joseph-ayodele/invoice-pipeline/internal/app"
	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/core/async"
	"github.com/joseph-ayodele/invoice-pipeline/internal/export"
	"github.com/joseph-ayodele/invoice-pipeline/internal/ingest"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir         = flag.String("dir", "", "directory to process invoices from (required)")
		out         = flag.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
		configPath  = flag.String("config", "", "YAML config file (defaults to $INVOICE_CONFIG)")
		concurrency = flag.Int("concurrency", 0, "documents processed in parallel (defaults to BATCH_CONCURRENCY)")
		noLLM       = flag.Bool("no-llm", false, "extract fields with the regex backend only")
		keepDocs    = flag.Bool("persist-documents", true, "retain processed documents in the document store")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(*dir), "invoices.xlsx")
	}

	var (
		cfg *common.Config
		err error
	)
	if *configPath != "" {
		cfg, err = common.LoadConfigFrom(*configPath)
	} else {
		cfg, err = common.LoadConfig()
	}
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	if *noLLM {
		cfg.LLM.Provider = common.ProviderNone
	}
	if *concurrency > 0 {
		cfg.Pipeline.Concurrency = *concurrency
	}
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	logger := common.NewLogger(cfg.Logging, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	paths, stats, err := ingest.ListDocuments(*dir, nil, true, logger)
	if err != nil {
		logger.Error("failed to scan directory", "dir", *dir, "error", err)
		os.Exit(1)
	}
	logger.Info("scan complete", "scanned", stats.Scanned, "matched", stats.Matched, "failed", stats.Failed)

	sum, err := async.ProcessBatch(ctx, a.Processor, paths, cfg.Pipeline.Concurrency, *keepDocs, logger)
	if err != nil {
		logger.Warn("batch interrupted", "error", err)
	}

	xlsx, err := export.NewService(a.Store, logger).ExportXLSX(context.WithoutCancel(ctx))
	if err != nil {
		logger.Error("failed to export invoices", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsx, 0o644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Documents found: %d\n", len(paths))
	fmt.Printf("- Processed: %d\n", sum.Total)
	fmt.Printf("- Success: %d\n", sum.Success)
	fmt.Printf("- Needs review (validation): %d\n", sum.ShortCircuit)
	fmt.Printf("- Anomalies: %d\n", sum.Anomaly)
	fmt.Printf("- Errors: %d\n", sum.Error)
	fmt.Printf("- Elapsed: %s\n", sum.Elapsed)
	fmt.Printf("- Output: %s\n", *out)
}
