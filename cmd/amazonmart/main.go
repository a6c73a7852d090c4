package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dshills/amazonmart/internal/cache"
	"github.com/dshills/amazonmart/internal/catalog"
	"github.com/dshills/amazonmart/internal/config"
	"github.com/dshills/amazonmart/internal/httpapi"
	"github.com/dshills/amazonmart/internal/mcp"
	"github.com/dshills/amazonmart/internal/orders"
	"github.com/dshills/amazonmart/internal/reports"
	"github.com/dshills/amazonmart/internal/storage"
	"github.com/dshills/amazonmart/internal/telemetry"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

const usage = `Usage: amazonmart [command]

Commands:
  mcp        serve MCP tools on stdio (default)
  http       serve the HTTP API on AMAZONMART_HTTP_ADDR
  rollback   revert the latest schema migration and exit
  --version  print build information
`

func main() {
	command := "mcp"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "--version", "version":
		fmt.Printf("AmazonMart Order Service\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Build Mode: %s\n", storage.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", storage.DriverName)
		fmt.Printf("Schema Version: %s\n", storage.CurrentSchemaVersion)
		return
	case "mcp", "http", "rollback":
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
		os.Exit(2)
	}

	if err := run(command); err != nil {
		slog.Error("amazonmart stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(command string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Logs go to stderr; stdout is reserved for the MCP protocol
	logger := telemetry.InitLogger(cfg.LogLevel)
	logger.Info("amazonmart starting",
		"version", version,
		"command", command,
		"build_mode", storage.BuildMode,
		"driver", cfg.Driver,
		"database", cfg.Redacted())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg.StorageOptions())
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close storage", "error", err)
		}
	}()

	if command == "rollback" {
		if err := storage.Rollback(ctx, store); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
		status, err := store.GetStatus(ctx)
		if err != nil {
			return err
		}
		logger.Info("migration rolled back", "schema_version", status.SchemaVersion)
		return nil
	}

	optionCache := newCache(ctx, cfg, logger)
	defer func() { _ = optionCache.Close() }()

	metrics := telemetry.NewMetrics()
	coordinator := orders.New(store, orders.WithLogger(logger), orders.WithMetrics(metrics))
	catalogSvc := catalog.New(store, optionCache, catalog.WithLogger(logger), catalog.WithMetrics(metrics))
	reportSvc := reports.New(store)

	switch command {
	case "http":
		handler := httpapi.New(httpapi.Deps{
			Store:   store,
			Orders:  coordinator,
			Catalog: catalogSvc,
			Reports: reportSvc,
			Metrics: metrics,
			Logger:  logger,
		})
		return httpapi.NewServer(cfg.HTTPAddr, httpapi.NewRouter(handler), logger).Run(ctx)
	default:
		server, err := mcp.NewServer(mcp.Deps{
			Store:   store,
			Orders:  coordinator,
			Catalog: catalogSvc,
			Reports: reportSvc,
			Logger:  logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create MCP server: %w", err)
		}
		err = server.Serve(ctx, os.Stdin, os.Stdout)
		if ctx.Err() != nil {
			logger.Info("received shutdown signal, server stopped")
			return nil
		}
		return err
	}
}

// newCache returns the shared Redis cache when configured and reachable,
// otherwise an in-process LRU.
func newCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) cache.Cache {
	if cfg.RedisAddr != "" {
		r := cache.NewRedis(cfg.RedisAddr, "amazonmart", cfg.CacheTTL)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		err := r.Ping(pingCtx)
		if err == nil {
			logger.Info("using redis option cache", "addr", cfg.RedisAddr)
			return r
		}
		logger.Warn("redis unavailable, falling back to in-process cache", "addr", cfg.RedisAddr, "error", err)
		_ = r.Close()
	}
	return cache.NewLRU(cfg.CacheSize, cfg.CacheTTL)
}
