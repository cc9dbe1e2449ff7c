// Command baseline validates codec output against externally supplied
// ground-truth datasets, from a CSV file or a Postgres table. It exits
// non-zero when any record mismatches, making it usable as a release gate.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/isopsephy/gematria-crossref/internal/alphabet"
	"github.com/isopsephy/gematria-crossref/internal/baseline"
	"github.com/isopsephy/gematria-crossref/internal/codec"
	"github.com/isopsephy/gematria-crossref/pkg/config"
	"github.com/isopsephy/gematria-crossref/pkg/logger"
	"github.com/isopsephy/gematria-crossref/pkg/metrics"
	"github.com/isopsephy/gematria-crossref/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	csvPath := flag.String("csv", "", "baseline CSV file (overrides config)")
	fromDB := flag.Bool("db", false, "read baseline records from the postgres baseline table")
	alphabetID := flag.String("alphabet", "", "alphabet for CSV records (default from config)")
	asJSON := flag.Bool("json", false, "emit the report as JSON on stdout")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if *csvPath == "" {
		*csvPath = cfg.Baseline.CSVPath
	}
	if *alphabetID == "" {
		*alphabetID = cfg.Ingest.DefaultAlphabet
	}
	if *csvPath == "" && !*fromDB {
		fmt.Fprintln(os.Stderr, "usage: baseline -csv dataset.csv | baseline -db")
		os.Exit(2)
	}

	registry, err := loadRegistry(cfg.Registry)
	if err != nil {
		slog.Error("failed to load alphabet registry", "error", err)
		os.Exit(1)
	}
	cdc, err := codec.New(registry, cfg.Codec)
	if err != nil {
		slog.Error("failed to build codec", "error", err)
		os.Exit(1)
	}

	validator, err := baseline.New(cdc, cfg.Baseline.AliasVersion, metrics.New())
	if err != nil {
		slog.Error("failed to build validator", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var source baseline.Source
	if *fromDB {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		source = baseline.PostgresSource(db, cfg.Baseline.Table)
		slog.Info("validating against postgres baseline", "table", cfg.Baseline.Table)
	} else {
		table, err := baseline.NewAliasTable(cfg.Baseline.AliasVersion)
		if err != nil {
			slog.Error("unknown alias table version", "version", cfg.Baseline.AliasVersion, "error", err)
			os.Exit(1)
		}
		source = baseline.CSVSource(*csvPath, *alphabetID, table)
		slog.Info("validating against csv baseline", "file", *csvPath, "alphabet", *alphabetID)
	}

	report, err := validator.ValidateAll(ctx, source)
	if err != nil {
		slog.Error("validation run failed", "error", err)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			slog.Error("failed to encode report", "error", err)
			os.Exit(1)
		}
	} else {
		fmt.Printf("checked:    %d\n", report.Checked)
		fmt.Printf("matches:    %d\n", report.Matches)
		fmt.Printf("mismatches: %d\n", len(report.Mismatches))
		fmt.Printf("errors:     %d\n", report.Errors)
		for _, miss := range report.Mismatches {
			fmt.Printf("  %q %s/%s expected=%d computed=%d\n",
				miss.Phrase, miss.Alphabet, miss.Method, miss.Expected, miss.Computed)
		}
	}

	if len(report.Mismatches) > 0 || report.Errors > 0 {
		os.Exit(1)
	}
}

func loadRegistry(cfg config.RegistryConfig) (*alphabet.Registry, error) {
	if cfg.DataDir != "" {
		return alphabet.LoadDir(cfg.DataDir)
	}
	return alphabet.Builtin()
}
