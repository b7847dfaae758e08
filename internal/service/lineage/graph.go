package lineage

import (
	"sort"
	"time"

	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/domain"
)

type groupKey struct {
	source, target, sourceType, targetType string
}

type group struct {
	edge       domain.LineageEdge
	firstSeen  time.Time
	statements map[string]struct{}
}

// aggregate collapses path records into canonical edges grouped by
// (source, target, source type, target type). Groups keep the order in which
// they were first encountered.
func aggregate(records []pathRecord, classify domain.EdgeClassifier) []domain.LineageEdge {
	groups := make(map[groupKey]*group)
	var order []groupKey

	for _, r := range records {
		k := groupKey{r.edge.Source, r.edge.Target, r.edge.SourceType, r.edge.TargetType}
		g, ok := groups[k]
		if !ok {
			g = &group{
				edge: domain.LineageEdge{
					SourceID:   r.edge.Source,
					TargetID:   r.edge.Target,
					SourceType: r.edge.SourceType,
					TargetType: r.edge.TargetType,
					EdgeType:   classify(r.edge.SourceType, r.edge.TargetType),
					MinDepth:   r.depth,
					MaxDepth:   r.depth,
					LastSeen:   r.edge.EventTime,
				},
				firstSeen:  r.edge.EventTime,
				statements: make(map[string]struct{}),
			}
			groups[k] = g
			order = append(order, k)
		}

		g.edge.OccurrenceCount++
		g.edge.MinDepth = min(g.edge.MinDepth, r.depth)
		g.edge.MaxDepth = max(g.edge.MaxDepth, r.depth)
		if r.edge.EventTime.After(g.edge.LastSeen) {
			g.edge.LastSeen = r.edge.EventTime
		}
		if r.edge.EventTime.Before(g.firstSeen) {
			g.firstSeen = r.edge.EventTime
		}
		if r.edge.StatementID != "" {
			g.statements[r.edge.StatementID] = struct{}{}
		}
	}

	out := make([]domain.LineageEdge, 0, len(order))
	for _, k := range order {
		g := groups[k]
		if !g.firstSeen.IsZero() {
			fs := g.firstSeen
			g.edge.FirstSeen = &fs
		}
		g.edge.StatementIDs = make([]string, 0, len(g.statements))
		for id := range g.statements {
			g.edge.StatementIDs = append(g.edge.StatementIDs, id)
		}
		sort.Strings(g.edge.StatementIDs)
		out = append(out, g.edge)
	}
	return out
}

// filterDepth drops edges first reached beyond maxDepth.
func filterDepth(edges []domain.LineageEdge, maxDepth int) []domain.LineageEdge {
	out := edges[:0]
	for _, e := range edges {
		if e.MinDepth <= maxDepth {
			out = append(out, e)
		}
	}
	return out
}

// orderEdges sorts downstream edges ascending by (MinDepth, SourceID,
// TargetID) and upstream edges descending by the same tuple.
func orderEdges(edges []domain.LineageEdge, dir domain.Direction) []domain.LineageEdge {
	less := func(a, b domain.LineageEdge) bool {
		if a.MinDepth != b.MinDepth {
			return a.MinDepth < b.MinDepth
		}
		if a.SourceID != b.SourceID {
			return a.SourceID < b.SourceID
		}
		return a.TargetID < b.TargetID
	}
	sort.SliceStable(edges, func(i, j int) bool {
		if dir == domain.DirectionUpstream {
			return less(edges[j], edges[i])
		}
		return less(edges[i], edges[j])
	})
	return edges
}

// buildGraph derives the node set from edges. The root node is always
// present, and each node takes its type from its first appearance.
func buildGraph(req domain.TraversalRequest, edges []domain.LineageEdge, truncated bool) *domain.LineageGraph {
	nodes := make([]domain.LineageNode, 0, len(edges)+1)
	index := make(map[string]int)
	add := func(id, rawType string) {
		if _, ok := index[id]; ok {
			return
		}
		index[id] = len(nodes)
		nodes = append(nodes, domain.NewLineageNode(id, domain.NodeTypeFromSource(rawType)))
	}

	rootType := string(domain.NodeTable)
	for _, e := range edges {
		if e.SourceID == req.Table {
			rootType = e.SourceType
			break
		}
		if e.TargetID == req.Table {
			rootType = e.TargetType
			break
		}
	}
	add(req.Table, rootType)
	for _, e := range edges {
		add(e.SourceID, e.SourceType)
		add(e.TargetID, e.TargetType)
	}

	if edges == nil {
		edges = []domain.LineageEdge{}
	}
	return &domain.LineageGraph{
		Nodes: nodes,
		Edges: edges,
		Metadata: map[string]any{
			"root":            req.Table,
			"direction":       string(req.Direction),
			"max_depth":       req.MaxDepth,
			"days_back":       req.DaysBack,
			"include_columns": req.IncludeColumns,
			"node_count":      len(nodes),
			"edge_count":      len(edges),
			"truncated":       truncated,
		},
	}
}
