// Package main is the entry point for the lineage HTTP server.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/mattn/go-sqlite3"

	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/api"
	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/app"
	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/config"
	internaldb "github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/db"
	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/middleware"
	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/observability"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// === Tracing ===
	tracingCfg := observability.DefaultTracingConfig()
	tracingCfg.ServiceVersion = version
	tracingCfg.Environment = cfg.Env
	tracingCfg.OTLPEndpoint = cfg.OTLPEndpoint
	tp, err := observability.InitTracing(ctx, tracingCfg)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	// === Metastore ===
	// writeDB: single-connection pool for serialized writes.
	// readDB: pool for concurrent lineage fetches.
	writeDB, readDB, err := internaldb.OpenSQLitePair(cfg.MetaDBPath, 4)
	if err != nil {
		return fmt.Errorf("open metastore: %w", err)
	}
	defer writeDB.Close() //nolint:errcheck
	defer readDB.Close()  //nolint:errcheck

	if err := internaldb.RunMigrations(writeDB); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	// === Warehouse ===
	var duckDB *sql.DB
	if cfg.Lineage.Source == config.SourceDuckDB {
		duckDB, err = sql.Open("duckdb", cfg.Lineage.DuckDBPath)
		if err != nil {
			return fmt.Errorf("open duckdb: %w", err)
		}
		defer duckDB.Close() //nolint:errcheck
	}

	application, err := app.New(ctx, app.Deps{
		Cfg:     cfg,
		WriteDB: writeDB,
		ReadDB:  readDB,
		DuckDB:  duckDB,
		Tracer:  tp.Tracer(),
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("wire app: %w", err)
	}

	if err := application.Janitor.Start(); err != nil {
		return fmt.Errorf("start janitor: %w", err)
	}
	defer application.Janitor.Stop()

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      newRouter(ctx, cfg, application, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		logger.Info("shutting down lineage server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("lineage API listening",
		"addr", cfg.ListenAddr,
		"source", cfg.Lineage.Source,
		"try", fmt.Sprintf("curl http://%s/v1/lineage/<table>", curlHostForListenAddr(cfg.ListenAddr)),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

func newRouter(ctx context.Context, cfg *config.Config, a *app.App, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	// Public endpoints, not rate limited.
	r.Get("/health", api.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimiter(ctx, middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		}))
		a.Handler.Register(r)
	})
	return r
}

// curlHostForListenAddr turns a listen address into a host usable in an
// example curl command. Wildcard hosts map to localhost.
func curlHostForListenAddr(listenAddr string) string {
	addr := strings.TrimSpace(listenAddr)
	if addr == "" {
		return "localhost:8080"
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
