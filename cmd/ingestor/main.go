package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/isopsephy/gematria-crossref/internal/alphabet"
	"github.com/isopsephy/gematria-crossref/internal/codec"
	"github.com/isopsephy/gematria-crossref/internal/ingest"
	"github.com/isopsephy/gematria-crossref/internal/store"
	"github.com/isopsephy/gematria-crossref/internal/xref"
	"github.com/isopsephy/gematria-crossref/pkg/config"
	"github.com/isopsephy/gematria-crossref/pkg/health"
	"github.com/isopsephy/gematria-crossref/pkg/kafka"
	"github.com/isopsephy/gematria-crossref/pkg/logger"
	"github.com/isopsephy/gematria-crossref/pkg/metrics"
	"github.com/isopsephy/gematria-crossref/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting ingestor service", "topic", cfg.Kafka.Topics.PhraseIngest)

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

	m := metrics.New()

	index, err := xref.Open(cfg.Index, m)
	if err != nil {
		slog.Error("failed to open cross-reference index", "error", err)
		os.Exit(1)
	}

	var records *store.Records
	var db *postgres.Client
	db, err = postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, value records kept in index only", "error", err)
	} else {
		defer db.Close()
		records, err = store.New(context.Background(), db)
		if err != nil {
			slog.Error("failed to initialize record store", "error", err)
			os.Exit(1)
		}
		slog.Info("record store ready", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	index.Start(ctx)
	defer index.Close()

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		if !index.Healthy() {
			return health.ComponentHealth{Status: health.StatusDown, Message: "committer in failed state"}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if db == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := db.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	if cfg.Metrics.Enabled {
		shutdownOps := metrics.StartServer(cfg.Metrics.Port, checker)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownOps(shutdownCtx); err != nil {
				slog.Error("ops server shutdown error", "error", err)
			}
		}()
	}

	pipeline := ingest.NewPipeline(cdc, records, index, cfg.Ingest, m)
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.PhraseIngest, ingest.HandleMessage(pipeline))

	slog.Info("ingestor ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.PhraseIngest,
		"group", cfg.Kafka.ConsumerGroup,
		"workers", cfg.Ingest.Workers,
	)

	if err := consumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}

	slog.Info("ingestor service stopped")
}

func loadRegistry(cfg config.RegistryConfig) (*alphabet.Registry, error) {
	if cfg.DataDir != "" {
		return alphabet.LoadDir(cfg.DataDir)
	}
	return alphabet.Builtin()
}
