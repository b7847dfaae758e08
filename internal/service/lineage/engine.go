// Package lineage assembles lineage graphs from an edge source, caches them,
// and derives impact analyses.
package lineage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/domain"
	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/observability"
)

// SafetyCeiling bounds the number of frontier expansions of a single
// directional walk. It is independent of the requested depth, which is
// applied afterwards as a filter on MinDepth.
const SafetyCeiling = 100

// MaxPathRecords bounds the path records a single directional walk may
// accumulate. Path-local cycle checks let dense cyclic graphs produce a
// number of paths that grows factorially with their size, long before the
// expansion ceiling is reached. A walk that hits either bound stops and is
// reported as truncated.
const MaxPathRecords = 10000

// DefaultFetchTimeout bounds each call to the edge source.
const DefaultFetchTimeout = 30 * time.Second

// Engine walks an EdgeSource outward from an anchor table and aggregates the
// discovered paths into a LineageGraph. An Engine holds no per-request state
// and is safe for concurrent use.
type Engine struct {
	edges        domain.EdgeSource
	columns      domain.ColumnEdgeSource
	classify     domain.EdgeClassifier
	fetchTimeout time.Duration
	tracer       trace.Tracer
	logger       *slog.Logger
	now          func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithColumnSource sets the source of column-to-column edges. By default the
// edge source is used if it also implements domain.ColumnEdgeSource.
func WithColumnSource(src domain.ColumnEdgeSource) EngineOption {
	return func(e *Engine) { e.columns = src }
}

// WithClassifier overrides how edge types are assigned.
func WithClassifier(c domain.EdgeClassifier) EngineOption {
	return func(e *Engine) { e.classify = c }
}

// WithFetchTimeout sets the per-fetch time bound. Zero disables it.
func WithFetchTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.fetchTimeout = d }
}

// WithTracer sets the tracer used for traversal and fetch spans.
func WithTracer(t trace.Tracer) EngineOption {
	return func(e *Engine) { e.tracer = t }
}

// WithEngineLogger sets the engine logger.
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a traversal engine reading from edges.
func NewEngine(edges domain.EdgeSource, opts ...EngineOption) *Engine {
	e := &Engine{
		edges:        edges,
		classify:     domain.DefaultEdgeClassifier,
		fetchTimeout: DefaultFetchTimeout,
		tracer:       observability.Tracer(),
		logger:       slog.Default(),
		now:          time.Now,
	}
	if cs, ok := edges.(domain.ColumnEdgeSource); ok {
		e.columns = cs
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Traverse validates req and builds its lineage graph. Source failures are
// returned as *domain.SourceUnavailableError or *domain.TimeoutError; they
// are never turned into an empty graph.
func (e *Engine) Traverse(ctx context.Context, req domain.TraversalRequest) (*domain.TraversalResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.IncludeColumns && e.columns == nil {
		return nil, domain.ErrValidation("include_columns is not supported by the configured lineage source")
	}

	ctx, span := e.tracer.Start(ctx, "lineage.traverse", trace.WithAttributes(
		observability.AttrTable.String(req.Table),
		observability.AttrDirection.String(string(req.Direction)),
		observability.AttrDepth.Int(req.MaxDepth),
		observability.AttrDaysBack.Int(req.DaysBack),
	))
	defer span.End()

	start := e.now()

	var (
		edges     []domain.LineageEdge
		truncated bool
	)
	if req.Direction == domain.DirectionBoth {
		var up, down walkResult
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			up, err = e.walk(gctx, req, domain.DirectionUpstream)
			return err
		})
		g.Go(func() error {
			var err error
			down, err = e.walk(gctx, req, domain.DirectionDownstream)
			return err
		})
		if err := g.Wait(); err != nil {
			observability.RecordError(span, err)
			return nil, err
		}
		edges = append(up.edges, down.edges...)
		truncated = up.truncated || down.truncated
	} else {
		w, err := e.walk(ctx, req, req.Direction)
		if err != nil {
			observability.RecordError(span, err)
			return nil, err
		}
		edges, truncated = w.edges, w.truncated
	}

	graph := buildGraph(req, edges, truncated)
	elapsed := e.now().Sub(start)

	span.SetAttributes(
		observability.AttrNodes.Int(len(graph.Nodes)),
		observability.AttrEdges.Int(len(graph.Edges)),
		observability.AttrTruncated.Bool(truncated),
	)
	e.logger.Debug("lineage traversal complete",
		"table", req.Table,
		"direction", req.Direction,
		"depth", req.MaxDepth,
		"nodes", len(graph.Nodes),
		"edges", len(graph.Edges),
		"truncated", truncated,
		"duration", elapsed,
	)
	if truncated {
		e.logger.Warn("lineage traversal truncated by safety bound",
			"table", req.Table, "direction", req.Direction,
			"ceiling", SafetyCeiling, "max_path_records", MaxPathRecords)
	}

	return &domain.TraversalResult{
		Graph:       graph,
		QueryTimeMs: elapsed.Milliseconds(),
		Truncated:   truncated,
	}, nil
}

type walkResult struct {
	edges     []domain.LineageEdge
	truncated bool
}

// edgeKey identifies an edge for path-local cycle checks.
type edgeKey struct {
	source, target string
}

// pathRecord is one frontier entry: an edge, the depth at which it was
// reached, and the ordered edges walked to reach it (including itself).
type pathRecord struct {
	edge  domain.RawEdge
	depth int
	path  []edgeKey
}

func (r pathRecord) onPath(k edgeKey) bool {
	for _, p := range r.path {
		if p == k {
			return true
		}
	}
	return false
}

func (r pathRecord) extend(edge domain.RawEdge) pathRecord {
	path := make([]edgeKey, len(r.path), len(r.path)+1)
	copy(path, r.path)
	return pathRecord{
		edge:  edge,
		depth: r.depth + 1,
		path:  append(path, edgeKey{edge.Source, edge.Target}),
	}
}

// walk explores one direction. dir must be upstream or downstream.
func (e *Engine) walk(ctx context.Context, req domain.TraversalRequest, dir domain.Direction) (walkResult, error) {
	role := domain.AnchorRoleFor(dir)
	memo := make(map[string][]domain.RawEdge)
	fetch := func(anchor string) ([]domain.RawEdge, error) {
		if rows, ok := memo[anchor]; ok {
			return rows, nil
		}
		rows, err := e.fetch(ctx, anchor, role, req.DaysBack)
		if err != nil {
			return nil, err
		}
		memo[anchor] = rows
		return rows, nil
	}

	seeds, err := fetch(req.Table)
	if err != nil {
		return walkResult{}, err
	}
	frontier := make([]pathRecord, 0, len(seeds))
	for _, s := range seeds {
		frontier = append(frontier, pathRecord{edge: s, depth: 1, path: []edgeKey{{s.Source, s.Target}}})
	}
	records := append([]pathRecord(nil), frontier...)

	truncated := len(records) > MaxPathRecords
	if truncated {
		records = records[:MaxPathRecords]
		frontier = nil
	}
expand:
	for iter := 0; len(frontier) > 0; iter++ {
		if err := walkContextErr(ctx, req.Table, dir); err != nil {
			return walkResult{}, err
		}
		if iter == SafetyCeiling {
			truncated = true
			break
		}
		var next []pathRecord
		for _, rec := range frontier {
			if err := walkContextErr(ctx, req.Table, dir); err != nil {
				return walkResult{}, err
			}
			rows, err := fetch(farEnd(rec.edge, role))
			if err != nil {
				return walkResult{}, err
			}
			for _, row := range rows {
				if rec.onPath(edgeKey{row.Source, row.Target}) {
					continue
				}
				if len(records)+len(next) >= MaxPathRecords {
					records = append(records, next...)
					truncated = true
					break expand
				}
				next = append(next, rec.extend(row))
			}
		}
		records = append(records, next...)
		frontier = next
	}

	edges := orderEdges(filterDepth(aggregate(records, e.classify), req.MaxDepth), dir)

	if req.IncludeColumns {
		cols, err := e.fetchColumns(ctx, req.Table, role, req.DaysBack)
		if err != nil {
			return walkResult{}, err
		}
		edges = append(edges, orderEdges(aggregate(cols, e.classify), dir)...)
	}

	return walkResult{edges: edges, truncated: truncated}, nil
}

// walkContextErr reports whether the walk must stop because its context is
// done. An expired deadline is a traversal timeout; cancellation is returned
// as is.
func walkContextErr(ctx context.Context, table string, dir domain.Direction) error {
	err := ctx.Err()
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrTimeout(err, "%s lineage traversal of %s", dir, table)
	}
	return err
}

// farEnd returns the endpoint the walk continues from.
func farEnd(edge domain.RawEdge, role domain.AnchorRole) string {
	if role == domain.AnchorTarget {
		return edge.Source
	}
	return edge.Target
}

func (e *Engine) fetch(ctx context.Context, anchor string, role domain.AnchorRole, daysBack int) ([]domain.RawEdge, error) {
	ctx, span := e.tracer.Start(ctx, "lineage.fetch", trace.WithAttributes(
		observability.AttrTable.String(anchor),
		observability.AttrRole.String(string(role)),
	))
	defer span.End()

	fctx, cancel := e.withFetchTimeout(ctx)
	defer cancel()

	rows, err := e.edges.Fetch(fctx, anchor, role, daysBack)
	if err != nil {
		err = classifyFetchError(fctx, err, "fetch lineage edges for %s", anchor)
		observability.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("lineage.rows", len(rows)))
	return rows, nil
}

// fetchColumns returns the anchor's column edges as depth-1 path records.
func (e *Engine) fetchColumns(ctx context.Context, anchor string, role domain.AnchorRole, daysBack int) ([]pathRecord, error) {
	ctx, span := e.tracer.Start(ctx, "lineage.fetch_columns", trace.WithAttributes(
		observability.AttrTable.String(anchor),
		observability.AttrRole.String(string(role)),
	))
	defer span.End()

	fctx, cancel := e.withFetchTimeout(ctx)
	defer cancel()

	rows, err := e.columns.FetchColumns(fctx, anchor, role, daysBack)
	if err != nil {
		err = classifyFetchError(fctx, err, "fetch column lineage for %s", anchor)
		observability.RecordError(span, err)
		return nil, err
	}

	out := make([]pathRecord, 0, len(rows))
	for _, c := range rows {
		edge := domain.RawEdge{
			Source:      c.SourceID(),
			Target:      c.TargetID(),
			SourceType:  string(domain.NodeColumn),
			TargetType:  string(domain.NodeColumn),
			EventTime:   c.EventTime,
			StatementID: c.StatementID,
		}
		out = append(out, pathRecord{edge: edge, depth: 1, path: []edgeKey{{edge.Source, edge.Target}}})
	}
	return out, nil
}

func (e *Engine) withFetchTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.fetchTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.fetchTimeout)
}

// classifyFetchError maps a source failure to a timeout or unavailable
// error. Drivers do not always wrap the context error, so an expired fetch
// context is a timeout regardless of what the source returned.
func classifyFetchError(fctx context.Context, err error, format string, args ...any) error {
	var timeout *domain.TimeoutError
	if !errors.As(err, &timeout) && errors.Is(fctx.Err(), context.DeadlineExceeded) {
		return domain.ErrTimeout(err, format, args...)
	}
	return domain.ClassifySourceError(err, format, args...)
}
