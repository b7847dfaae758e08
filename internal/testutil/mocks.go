// Package testutil provides shared mock implementations of domain interfaces
// for use in tests across the codebase. This follows the Go convention of a
// shared test utility package (like net/http/httptest).
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/domain"
)

// === Edge Source Mocks ===

// MockEdgeSource implements domain.EdgeSource and domain.ColumnEdgeSource
// for testing. Calls are counted per anchor so tests can assert fetch
// memoization.
type MockEdgeSource struct {
	FetchFn        func(ctx context.Context, anchor string, role domain.AnchorRole, daysBack int) ([]domain.RawEdge, error)
	FetchColumnsFn func(ctx context.Context, anchor string, role domain.AnchorRole, daysBack int) ([]domain.RawColumnEdge, error)

	mu    sync.Mutex
	calls map[string]int
	total int
}

// Fetch implements the interface method for testing.
func (m *MockEdgeSource) Fetch(ctx context.Context, anchor string, role domain.AnchorRole, daysBack int) ([]domain.RawEdge, error) {
	m.record(string(role) + ":" + anchor)
	if m.FetchFn != nil {
		return m.FetchFn(ctx, anchor, role, daysBack)
	}
	panic("unexpected call to MockEdgeSource.Fetch")
}

// FetchColumns implements the interface method for testing.
func (m *MockEdgeSource) FetchColumns(ctx context.Context, anchor string, role domain.AnchorRole, daysBack int) ([]domain.RawColumnEdge, error) {
	m.record("columns:" + string(role) + ":" + anchor)
	if m.FetchColumnsFn != nil {
		return m.FetchColumnsFn(ctx, anchor, role, daysBack)
	}
	panic("unexpected call to MockEdgeSource.FetchColumns")
}

func (m *MockEdgeSource) record(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[key]++
	m.total++
}

// Calls returns how many times key ("{role}:{anchor}" or
// "columns:{role}:{anchor}") was fetched.
func (m *MockEdgeSource) Calls(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[key]
}

// TotalCalls returns the number of fetches of any kind.
func (m *MockEdgeSource) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// NewStaticEdgeSource returns a MockEdgeSource serving a fixed edge list,
// filtered by anchor and role the way a real source would. Time windows are
// ignored.
func NewStaticEdgeSource(edges []domain.RawEdge, columns ...domain.RawColumnEdge) *MockEdgeSource {
	return &MockEdgeSource{
		FetchFn: func(_ context.Context, anchor string, role domain.AnchorRole, _ int) ([]domain.RawEdge, error) {
			var out []domain.RawEdge
			for _, e := range edges {
				if (role == domain.AnchorSource && e.Source == anchor) ||
					(role == domain.AnchorTarget && e.Target == anchor) {
					out = append(out, e)
				}
			}
			return out, nil
		},
		FetchColumnsFn: func(_ context.Context, anchor string, role domain.AnchorRole, _ int) ([]domain.RawColumnEdge, error) {
			var out []domain.RawColumnEdge
			for _, c := range columns {
				if (role == domain.AnchorSource && c.SourceTable == anchor) ||
					(role == domain.AnchorTarget && c.TargetTable == anchor) {
					out = append(out, c)
				}
			}
			return out, nil
		},
	}
}

// Edge is a shorthand for a TABLE-to-TABLE raw edge observed at ts.
func Edge(source, target string, ts time.Time, statementID string) domain.RawEdge {
	return domain.RawEdge{
		Source:      source,
		Target:      target,
		SourceType:  "TABLE",
		TargetType:  "TABLE",
		EventTime:   ts,
		StatementID: statementID,
	}
}

// === Lineage Event Repository Mock ===

// MockLineageEventRepo implements domain.LineageEventRepository for testing.
type MockLineageEventRepo struct {
	RecordEventsFn   func(ctx context.Context, edges []domain.RawEdge, columns []domain.RawColumnEdge) ([]domain.LineageEvent, []domain.ColumnLineageEvent, error)
	ListEventsFn     func(ctx context.Context, table string, page domain.PageRequest) ([]domain.LineageEvent, int64, error)
	PurgeOlderThanFn func(ctx context.Context, before time.Time) (int64, error)
}

// RecordEvents implements the interface method for testing.
func (m *MockLineageEventRepo) RecordEvents(ctx context.Context, edges []domain.RawEdge, columns []domain.RawColumnEdge) ([]domain.LineageEvent, []domain.ColumnLineageEvent, error) {
	if m.RecordEventsFn != nil {
		return m.RecordEventsFn(ctx, edges, columns)
	}
	panic("unexpected call to MockLineageEventRepo.RecordEvents")
}

// ListEvents implements the interface method for testing.
func (m *MockLineageEventRepo) ListEvents(ctx context.Context, table string, page domain.PageRequest) ([]domain.LineageEvent, int64, error) {
	if m.ListEventsFn != nil {
		return m.ListEventsFn(ctx, table, page)
	}
	panic("unexpected call to MockLineageEventRepo.ListEvents")
}

// PurgeOlderThan implements the interface method for testing.
func (m *MockLineageEventRepo) PurgeOlderThan(ctx context.Context, before time.Time) (int64, error) {
	if m.PurgeOlderThanFn != nil {
		return m.PurgeOlderThanFn(ctx, before)
	}
	panic("unexpected call to MockLineageEventRepo.PurgeOlderThan")
}

// Compile-time interface checks.
var (
	_ domain.EdgeSource             = (*MockEdgeSource)(nil)
	_ domain.ColumnEdgeSource       = (*MockEdgeSource)(nil)
	_ domain.LineageEventRepository = (*MockLineageEventRepo)(nil)
)
