package lineage

import (
	"context"
	"sort"
	"strings"

	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/domain"
)

// DefaultDaysBack is the lookback window used when a caller does not set one.
const DefaultDaysBack = 90

// LineageGetter serves lineage graphs; *Service implements it.
type LineageGetter interface {
	GetLineage(ctx context.Context, req domain.TraversalRequest) (*domain.TraversalResult, error)
}

// ImpactAnalyzer reports which entities are affected by a change to an
// entity, based on its downstream lineage.
type ImpactAnalyzer struct {
	lineage  LineageGetter
	daysBack int
}

// NewImpactAnalyzer creates an ImpactAnalyzer. A non-positive daysBack uses
// DefaultDaysBack.
func NewImpactAnalyzer(lineage LineageGetter, daysBack int) *ImpactAnalyzer {
	if daysBack <= 0 {
		daysBack = DefaultDaysBack
	}
	return &ImpactAnalyzer{lineage: lineage, daysBack: daysBack}
}

// AnalyzeImpact runs a downstream traversal rooted at entityID. A node's
// depth is the smallest MinDepth of the edges pointing into it; nodes at
// depth 1 are directly impacted and deeper nodes up to depth are indirectly
// impacted.
func (a *ImpactAnalyzer) AnalyzeImpact(ctx context.Context, entityID string, depth int, includeGraph bool) (*domain.ImpactAnalysis, error) {
	req := domain.TraversalRequest{
		Table:     entityID,
		Direction: domain.DirectionDownstream,
		DaysBack:  a.daysBack,
		MaxDepth:  depth,
	}
	res, err := a.lineage.GetLineage(ctx, req)
	if err != nil {
		return nil, err
	}
	root := strings.TrimSpace(entityID)
	g := res.Graph

	nodeDepth := make(map[string]int)
	for _, e := range g.Edges {
		if e.TargetID == root {
			continue
		}
		if d, ok := nodeDepth[e.TargetID]; !ok || e.MinDepth < d {
			nodeDepth[e.TargetID] = e.MinDepth
		}
	}

	out := &domain.ImpactAnalysis{
		EntityID:           root,
		Depth:              depth,
		DirectlyImpacted:   []domain.LineageNode{},
		IndirectlyImpacted: []domain.LineageNode{},
		Truncated:          res.Truncated,
	}
	ids := []string{root}
	for _, n := range g.Nodes {
		d, ok := nodeDepth[n.ID]
		switch {
		case !ok:
			continue
		case d == 1:
			out.DirectlyImpacted = append(out.DirectlyImpacted, n)
		case d <= depth:
			out.IndirectlyImpacted = append(out.IndirectlyImpacted, n)
		default:
			continue
		}
		ids = append(ids, n.ID)
	}

	byDepthThenID := func(nodes []domain.LineageNode) {
		sort.SliceStable(nodes, func(i, j int) bool {
			di, dj := nodeDepth[nodes[i].ID], nodeDepth[nodes[j].ID]
			if di != dj {
				return di < dj
			}
			return nodes[i].ID < nodes[j].ID
		})
	}
	byDepthThenID(out.DirectlyImpacted)
	byDepthThenID(out.IndirectlyImpacted)

	out.TotalImpactCount = len(out.DirectlyImpacted) + len(out.IndirectlyImpacted)
	if includeGraph {
		out.ImpactGraph = g.Subgraph(ids)
	}
	return out, nil
}
