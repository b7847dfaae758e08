package domain

import (
	"context"
	"time"
)

// EdgeSource supplies raw lineage edges for an anchor table. Implementations
// return only edges whose anchor endpoint (selected by role) equals
// anchorTable and whose event time falls within the last daysBack days.
//
// Failures must be distinguishable: a time bound being exceeded surfaces as
// context.DeadlineExceeded or a *TimeoutError, anything else as a general error.
type EdgeSource interface {
	Fetch(ctx context.Context, anchorTable string, role AnchorRole, daysBack int) ([]RawEdge, error)
}

// ColumnEdgeSource supplies column-to-column edges for columns of an anchor table.
type ColumnEdgeSource interface {
	FetchColumns(ctx context.Context, anchorTable string, role AnchorRole, daysBack int) ([]RawColumnEdge, error)
}

// LineageEventRepository records raw lineage events in the metastore.
type LineageEventRepository interface {
	// RecordEvents stores table and column events. On error the returned
	// slices hold whatever was committed before the failure, which is nothing
	// for a transactional store.
	RecordEvents(ctx context.Context, edges []RawEdge, columns []RawColumnEdge) ([]LineageEvent, []ColumnLineageEvent, error)
	ListEvents(ctx context.Context, table string, page PageRequest) ([]LineageEvent, int64, error)
	PurgeOlderThan(ctx context.Context, before time.Time) (int64, error)
}
