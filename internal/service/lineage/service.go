package lineage

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/cache"
	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/domain"
)

// Traverser builds a lineage graph for one request.
type Traverser interface {
	Traverse(ctx context.Context, req domain.TraversalRequest) (*domain.TraversalResult, error)
}

// ResultCache is the cache of successful traversal results.
type ResultCache = cache.TTL[*domain.TraversalResult]

// DefaultMaxConcurrentTraversals sizes the traversal worker pool.
const DefaultMaxConcurrentTraversals = 8

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// MaxConcurrentTraversals bounds traversals running against the source.
	MaxConcurrentTraversals int
	// CoalesceMisses lets concurrent misses for one key share a traversal.
	CoalesceMisses bool
}

// Service serves lineage queries from the cache, running a traversal on a
// miss and caching only successful results.
type Service struct {
	engine   Traverser
	cache    *ResultCache
	sem      *semaphore.Weighted
	flight   singleflight.Group
	coalesce bool
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a lineage Service.
func NewService(engine Traverser, c *ResultCache, cfg ServiceConfig, logger *slog.Logger) *Service {
	if cfg.MaxConcurrentTraversals <= 0 {
		cfg.MaxConcurrentTraversals = DefaultMaxConcurrentTraversals
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		engine:   engine,
		cache:    c,
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrentTraversals)),
		coalesce: cfg.CoalesceMisses,
		logger:   logger,
		now:      time.Now,
	}
}

// CacheKey returns the cache key for a validated request.
func CacheKey(req domain.TraversalRequest) string {
	return cache.MakeKey(req.Table, string(req.Direction), req.MaxDepth, map[string]any{
		"days_back":       req.DaysBack,
		"include_columns": req.IncludeColumns,
	})
}

// GetLineage returns the lineage graph for req. Invalid requests are
// rejected before the cache or the edge source is consulted. The returned
// graph may be shared with other callers and must not be mutated.
func (s *Service) GetLineage(ctx context.Context, req domain.TraversalRequest) (*domain.TraversalResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	start := s.now()
	key := CacheKey(req)

	if res, ok := s.cache.Get(key); ok {
		hit := *res
		hit.Cached = true
		hit.QueryTimeMs = s.now().Sub(start).Milliseconds()
		s.logger.Debug("lineage cache hit", "key", key)
		return &hit, nil
	}

	if !s.coalesce {
		return s.traverse(ctx, key, req)
	}

	// The shared traversal outlives any single waiter's cancellation but keeps
	// the first caller's deadline; each waiter still returns as soon as its
	// own context is done.
	ch := s.flight.DoChan(key, func() (any, error) {
		lctx := context.WithoutCancel(ctx)
		if deadline, ok := ctx.Deadline(); ok {
			var cancel context.CancelFunc
			lctx, cancel = context.WithDeadline(lctx, deadline)
			defer cancel()
		}
		return s.traverse(lctx, key, req)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		out := *r.Val.(*domain.TraversalResult)
		return &out, nil
	}
}

func (s *Service) traverse(ctx context.Context, key string, req domain.TraversalRequest) (*domain.TraversalResult, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	res, err := s.engine.Traverse(ctx, req)
	if err != nil {
		s.logger.Warn("lineage traversal failed",
			"table", req.Table,
			"direction", req.Direction,
			"error", err,
		)
		return nil, err
	}
	s.cache.Set(key, res)
	out := *res
	return &out, nil
}

// CacheStats returns a snapshot of the lineage cache counters.
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// ClearCache drops every cached lineage result.
func (s *Service) ClearCache() {
	s.cache.Clear()
	s.logger.Info("lineage cache cleared")
}
