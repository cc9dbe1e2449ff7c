// Command bulkload reads a phrase corpus from a file and pushes it through
// ingestion, either by publishing onto the ingest topic for the ingestor
// service, or directly through an in-process pipeline with -direct.
//
// The input is one phrase per line. A line may carry an explicit alphabet as
// "alphabet<TAB>phrase"; otherwise the configured default applies. Blank lines
// and lines starting with '#' are skipped.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/isopsephy/gematria-crossref/internal/alphabet"
	"github.com/isopsephy/gematria-crossref/internal/codec"
	"github.com/isopsephy/gematria-crossref/internal/ingest"
	"github.com/isopsephy/gematria-crossref/internal/store"
	"github.com/isopsephy/gematria-crossref/internal/xref"
	"github.com/isopsephy/gematria-crossref/pkg/config"
	"github.com/isopsephy/gematria-crossref/pkg/kafka"
	"github.com/isopsephy/gematria-crossref/pkg/logger"
	"github.com/isopsephy/gematria-crossref/pkg/metrics"
	"github.com/isopsephy/gematria-crossref/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	filePath := flag.String("file", "", "path to the phrase corpus file")
	alphabetID := flag.String("alphabet", "", "alphabet for phrases that do not name one (default from config)")
	direct := flag.Bool("direct", false, "run the ingest pipeline in-process instead of publishing to kafka")
	batchSize := flag.Int("batch", 500, "phrases per published batch")
	flag.Parse()

	if *filePath == "" {
		fmt.Fprintln(os.Stderr, "usage: bulkload -file corpus.txt [-alphabet english] [-direct]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if *alphabetID == "" {
		*alphabetID = cfg.Ingest.DefaultAlphabet
	}

	records, err := readCorpus(*filePath, *alphabetID)
	if err != nil {
		slog.Error("failed to read corpus", "file", *filePath, "error", err)
		os.Exit(1)
	}
	slog.Info("corpus loaded", "file", *filePath, "phrases", len(records))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *direct {
		if err := runDirect(ctx, cfg, records); err != nil {
			slog.Error("direct ingestion failed", "error", err)
			os.Exit(1)
		}
		return
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.PhraseIngest)
	defer producer.Close()
	publisher := ingest.NewPublisher(producer)

	var published int
	for start := 0; start < len(records); start += *batchSize {
		end := min(start+*batchSize, len(records))
		batchID, err := publisher.PublishBatch(ctx, records[start:end])
		if err != nil {
			slog.Error("batch publish failed", "offset", start, "error", err)
			os.Exit(1)
		}
		published += end - start
		slog.Info("batch published", "batch_id", batchID, "size", end-start, "total", published)
	}
	slog.Info("bulkload complete", "published", published, "topic", cfg.Kafka.Topics.PhraseIngest)
}

// runDirect computes and commits the corpus in-process, bypassing Kafka. Used
// for one-shot loads and for environments without a broker.
func runDirect(ctx context.Context, cfg *config.Config, phrases []ingest.PhraseRecord) error {
	registry, err := loadRegistry(cfg.Registry)
	if err != nil {
		return fmt.Errorf("loading alphabet registry: %w", err)
	}
	cdc, err := codec.New(registry, cfg.Codec)
	if err != nil {
		return err
	}
	m := metrics.New()

	index, err := xref.Open(cfg.Index, m)
	if err != nil {
		return err
	}

	var valueStore *store.Records
	if db, err := postgres.New(cfg.Postgres); err != nil {
		slog.Warn("postgres unavailable, loading into the index only", "error", err)
	} else {
		defer db.Close()
		if valueStore, err = store.New(ctx, db); err != nil {
			return err
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	index.Start(runCtx)

	pipeline := ingest.NewPipeline(cdc, valueStore, index, cfg.Ingest, m)
	in := make(chan ingest.PhraseRecord)
	go func() {
		defer close(in)
		for _, rec := range phrases {
			select {
			case in <- rec:
			case <-runCtx.Done():
				return
			}
		}
	}()

	report, err := pipeline.Run(runCtx, in)
	cancel()
	index.Close()
	if err != nil {
		return err
	}
	slog.Info("direct ingestion complete",
		"attempted", report.Attempted,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"skipped_methods", report.SkippedMethods,
	)
	if report.Failed > 0 {
		return fmt.Errorf("%d phrases failed", report.Failed)
	}
	return nil
}

func readCorpus(path, defaultAlphabet string) ([]ingest.PhraseRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []ingest.PhraseRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rec := ingest.PhraseRecord{Phrase: line, Alphabet: defaultAlphabet}
		if id, phrase, ok := strings.Cut(line, "\t"); ok {
			rec.Alphabet = strings.TrimSpace(id)
			rec.Phrase = strings.TrimSpace(phrase)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func loadRegistry(cfg config.RegistryConfig) (*alphabet.Registry, error) {
	if cfg.DataDir != "" {
		return alphabet.LoadDir(cfg.DataDir)
	}
	return alphabet.Builtin()
}
