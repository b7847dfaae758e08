package api

import (
	"time"

	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/domain"
)

// ErrorResponse is the body of every non-lineage error.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// LineageResponse is the body of a lineage query. On failure Graph is nil,
// Truncated is false and Error is set.
type LineageResponse struct {
	Graph       *domain.LineageGraph `json:"graph"`
	QueryTimeMs int64                `json:"query_time_ms"`
	Truncated   bool                 `json:"truncated"`
	Cached      bool                 `json:"cached"`
	Error       string               `json:"error,omitempty"`
}

// EdgeEvent is a table-level lineage event on the wire.
type EdgeEvent struct {
	ID          string     `json:"id,omitempty"`
	Source      string     `json:"source"`
	Target      string     `json:"target"`
	SourceType  string     `json:"source_type,omitempty"`
	TargetType  string     `json:"target_type,omitempty"`
	EventTime   *time.Time `json:"event_time,omitempty"`
	StatementID string     `json:"statement_id,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

// ColumnEvent is a column-level lineage event on the wire.
type ColumnEvent struct {
	ID           string     `json:"id,omitempty"`
	SourceTable  string     `json:"source_table"`
	SourceColumn string     `json:"source_column"`
	TargetTable  string     `json:"target_table"`
	TargetColumn string     `json:"target_column"`
	EventTime    *time.Time `json:"event_time,omitempty"`
	StatementID  string     `json:"statement_id,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
}

// RecordEventsRequest is the body of POST /v1/lineage/events.
type RecordEventsRequest struct {
	Edges   []EdgeEvent   `json:"edges"`
	Columns []ColumnEvent `json:"columns"`
}

// RecordEventsResponse echoes the stored events.
type RecordEventsResponse struct {
	Edges   []EdgeEvent   `json:"edges"`
	Columns []ColumnEvent `json:"columns"`
}

// ListEventsResponse is a page of recorded events.
type ListEventsResponse struct {
	Data          []EdgeEvent `json:"data"`
	NextPageToken string      `json:"next_page_token,omitempty"`
}

func (e EdgeEvent) toDomain() domain.RawEdge {
	out := domain.RawEdge{
		Source:      e.Source,
		Target:      e.Target,
		SourceType:  e.SourceType,
		TargetType:  e.TargetType,
		StatementID: e.StatementID,
	}
	if e.EventTime != nil {
		out.EventTime = *e.EventTime
	}
	return out
}

func (c ColumnEvent) toDomain() domain.RawColumnEdge {
	out := domain.RawColumnEdge{
		SourceTable:  c.SourceTable,
		SourceColumn: c.SourceColumn,
		TargetTable:  c.TargetTable,
		TargetColumn: c.TargetColumn,
		StatementID:  c.StatementID,
	}
	if c.EventTime != nil {
		out.EventTime = *c.EventTime
	}
	return out
}

func edgeEventToAPI(e domain.LineageEvent) EdgeEvent {
	ts, created := e.Edge.EventTime, e.CreatedAt
	return EdgeEvent{
		ID:          e.ID,
		Source:      e.Edge.Source,
		Target:      e.Edge.Target,
		SourceType:  e.Edge.SourceType,
		TargetType:  e.Edge.TargetType,
		EventTime:   &ts,
		StatementID: e.Edge.StatementID,
		CreatedAt:   &created,
	}
}

func columnEventToAPI(e domain.ColumnLineageEvent) ColumnEvent {
	ts, created := e.Edge.EventTime, e.CreatedAt
	return ColumnEvent{
		ID:           e.ID,
		SourceTable:  e.Edge.SourceTable,
		SourceColumn: e.Edge.SourceColumn,
		TargetTable:  e.Edge.TargetTable,
		TargetColumn: e.Edge.TargetColumn,
		EventTime:    &ts,
		StatementID:  e.Edge.StatementID,
		CreatedAt:    &created,
	}
}
