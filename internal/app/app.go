// Package app provides application-level wiring and dependency injection
// for the lineage service.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/api"
	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/cache"
	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/config"
	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/db/repository"
	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/domain"
	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/engine"
	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/service/lineage"
)

// Deps holds the external dependencies that main() must provide.
// DuckDB is only required when the lineage source is "duckdb".
type Deps struct {
	Cfg     *config.Config
	WriteDB *sql.DB
	ReadDB  *sql.DB
	DuckDB  *sql.DB
	Tracer  trace.Tracer // optional
	Logger  *slog.Logger
}

// Services groups the lineage services the router needs.
type Services struct {
	Lineage *lineage.Service
	Impact  *lineage.ImpactAnalyzer
	Events  *lineage.EventService
}

// App holds the fully-wired application.
type App struct {
	Services Services
	Handler  *api.Handler
	Janitor  *lineage.Janitor
	Cache    *lineage.ResultCache
	Source   domain.EdgeSource
}

// New wires the edge source, cache, traversal engine and services from the
// provided deps.
func New(_ context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lc := cfg.Lineage

	// === Repositories ===
	eventRepo := repository.NewLineageEventRepo(deps.WriteDB, deps.ReadDB)

	// === Edge source ===
	src, err := newEdgeSource(lc, eventRepo, deps.DuckDB)
	if err != nil {
		return nil, err
	}
	if lc.SourceRPS > 0 {
		src = lineage.NewRateLimitedSource(src, lc.SourceRPS, lc.SourceBurst)
	}
	logger.Info("lineage source configured", "source", lc.Source, "source_rps", lc.SourceRPS)

	// === Cache + engine ===
	resultCache := cache.New[*domain.TraversalResult](cache.Config{
		MaxSize:    lc.CacheMaxSize,
		DefaultTTL: lc.CacheTTL,
	})
	opts := []lineage.EngineOption{
		lineage.WithFetchTimeout(lc.FetchTimeout),
		lineage.WithEngineLogger(logger.With("component", "lineage-engine")),
	}
	if deps.Tracer != nil {
		opts = append(opts, lineage.WithTracer(deps.Tracer))
	}
	eng := lineage.NewEngine(src, opts...)

	// === Services ===
	lineageSvc := lineage.NewService(eng, resultCache, lineage.ServiceConfig{
		MaxConcurrentTraversals: lc.MaxConcurrentTraversals,
		CoalesceMisses:          lc.CoalesceMisses,
	}, logger.With("component", "lineage-service"))
	impact := lineage.NewImpactAnalyzer(lineageSvc, lc.DefaultDaysBack)
	events := lineage.NewEventService(eventRepo, lineageSvc, logger.With("component", "lineage-events"))

	janitor := lineage.NewJanitor(lc.JanitorSchedule, resultCache, eventRepo, lc.EventRetentionDays,
		logger.With("component", "lineage-janitor"))

	return &App{
		Services: Services{Lineage: lineageSvc, Impact: impact, Events: events},
		Handler:  api.NewHandler(lineageSvc, impact, events, lc.DefaultDaysBack, logger.With("component", "api")),
		Janitor:  janitor,
		Cache:    resultCache,
		Source:   src,
	}, nil
}

func newEdgeSource(lc config.LineageConfig, repo *repository.LineageEventRepo, duckDB *sql.DB) (domain.EdgeSource, error) {
	switch lc.Source {
	case "", config.SourceSQLite:
		return repo, nil
	case config.SourceDuckDB:
		if duckDB == nil {
			return nil, fmt.Errorf("lineage source %q requires a DuckDB connection", lc.Source)
		}
		src, err := engine.NewSystemTableSource(duckDB, lc.TableRelation, lc.ColumnRelation)
		if err != nil {
			return nil, fmt.Errorf("duckdb lineage source: %w", err)
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown lineage source %q", lc.Source)
	}
}
