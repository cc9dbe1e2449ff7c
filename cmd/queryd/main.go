package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/isopsephy/gematria-crossref/internal/alphabet"
	"github.com/isopsephy/gematria-crossref/internal/baseline"
	"github.com/isopsephy/gematria-crossref/internal/codec"
	"github.com/isopsephy/gematria-crossref/internal/grouper"
	"github.com/isopsephy/gematria-crossref/internal/query"
	"github.com/isopsephy/gematria-crossref/internal/store"
	"github.com/isopsephy/gematria-crossref/internal/xref"
	"github.com/isopsephy/gematria-crossref/pkg/config"
	"github.com/isopsephy/gematria-crossref/pkg/health"
	"github.com/isopsephy/gematria-crossref/pkg/logger"
	"github.com/isopsephy/gematria-crossref/pkg/metrics"
	"github.com/isopsephy/gematria-crossref/pkg/middleware"
	"github.com/isopsephy/gematria-crossref/pkg/postgres"
	pkgredis "github.com/isopsephy/gematria-crossref/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	rebuild := flag.Bool("rebuild", false, "rebuild the index from the value-record store instead of the checkpoint log")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting query service", "port", cfg.Server.Port)

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

	var db *postgres.Client
	db, err = postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable", "error", err)
		db = nil
	} else {
		defer db.Close()
	}

	if *rebuild {
		if db == nil {
			slog.Error("rebuild requested but postgres is unavailable")
			os.Exit(1)
		}
		records, err := store.New(context.Background(), db)
		if err != nil {
			slog.Error("failed to open record store", "error", err)
			os.Exit(1)
		}
		source := records.RefSource(context.Background(), cdc.PrimaryMethod())
		if err := index.Rebuild(source); err != nil {
			slog.Error("index rebuild failed", "error", err)
			os.Exit(1)
		}
		slog.Info("index rebuilt from record store")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	index.Start(ctx)
	defer index.Close()

	var redisClient *pkgredis.Client
	redisClient, err = pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, group query caching disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
		slog.Info("group query cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	grp := grouper.New(cdc, index, m)
	cache := grouper.NewResultCache(grp, redisClient, cfg.Redis, m)

	validator, err := baseline.New(cdc, cfg.Baseline.AliasVersion, m)
	if err != nil {
		slog.Error("failed to build baseline validator", "error", err)
		os.Exit(1)
	}

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		if !index.Healthy() {
			return health.ComponentHealth{Status: health.StatusDown, Message: "committer in failed state"}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := query.New(cdc, index, cache, validator, cfg.Ingest.DefaultAlphabet)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", metrics.Handler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.Timeout(cfg.Server.RequestTimeout)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("query service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("query service stopped")
}

func loadRegistry(cfg config.RegistryConfig) (*alphabet.Registry, error) {
	if cfg.DataDir != "" {
		return alphabet.LoadDir(cfg.DataDir)
	}
	return alphabet.Builtin()
}
