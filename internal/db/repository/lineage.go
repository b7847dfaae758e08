package repository

import (
	"context"
	"database/sql"
	"fmt"
		"time"

	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/domain"
)

// LineageEventRepo stores raw lineage events in the SQLite metastore and
// serves them back as an edge source.
type LineageEventRepo struct {
	writeDB *sql.DB
	readDB  *sql.DB
	now     func() time.Time
}

// NewLineageEventRepo creates a new LineageEventRepo. Lookups go through
// readDB; inserts and purges go through writeDB.
func NewLineageEventRepo(writeDB, readDB *sql.DB) *LineageEventRepo {
	return &LineageEventRepo{writeDB: writeDB, readDB: readDB, now: time.Now}
}

// cutoff returns the oldest event time inside a daysBack window.
func (r *LineageEventRepo) cutoff(daysBack int) string {
	return formatTime(r.now().AddDate(0, 0, -daysBack))
}

// Fetch returns table-level edges anchored on anchorTable within the window.
func (r *LineageEventRepo) Fetch(ctx context.Context, anchorTable string, role domain.AnchorRole, daysBack int) ([]domain.RawEdge, error) {
	col, err := anchorColumn(role)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT source_table, target_table, source_type, target_type, event_time, statement_id
		FROM lineage_events
		WHERE %s = ? AND event_time >= ?
		ORDER BY event_time, id`, col)

	rows, err := r.readDB.QueryContext(ctx, query, domain.NormalizeTableName(anchorTable), r.cutoff(daysBack))
	if err != nil {
		return nil, fmt.Errorf("query lineage events: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var edges []domain.RawEdge
	for rows.Next() {
		var e domain.RawEdge
		var eventTime string
		if err := rows.Scan(&e.Source, &e.Target, &e.SourceType, &e.TargetType, &eventTime, &e.StatementID); err != nil {
			return nil, fmt.Errorf("scan lineage event: %w", err)
		}
		if e.EventTime, err = parseTime(eventTime); err != nil {
			return nil, fmt.Errorf("parse event_time %q: %w", eventTime, err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lineage events: %w", err)
	}
	return edges, nil
}

// FetchColumns returns column-level edges whose table on the anchor side is
// anchorTable within the window.
func (r *LineageEventRepo) FetchColumns(ctx context.Context, anchorTable string, role domain.AnchorRole, daysBack int) ([]domain.RawColumnEdge, error) {
	col, err := anchorColumn(role)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT source_table, source_column, target_table, target_column, event_time, statement_id
		FROM column_lineage_events
		WHERE %s = ? AND event_time >= ?
		ORDER BY event_time, id`, col)

	rows, err := r.readDB.QueryContext(ctx, query, domain.NormalizeTableName(anchorTable), r.cutoff(daysBack))
	if err != nil {
		return nil, fmt.Errorf("query column lineage events: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var edges []domain.RawColumnEdge
	for rows.Next() {
		var e domain.RawColumnEdge
		var eventTime string
		if err := rows.Scan(&e.SourceTable, &e.SourceColumn, &e.TargetTable, &e.TargetColumn, &eventTime, &e.StatementID); err != nil {
			return nil, fmt.Errorf("scan column lineage event: %w", err)
		}
		if e.EventTime, err = parseTime(eventTime); err != nil {
			return nil, fmt.Errorf("parse event_time %q: %w", eventTime, err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column lineage events: %w", err)
	}
	return edges, nil
}

// InsertEvents records table-level events in a single transaction.
func (r *LineageEventRepo) InsertEvents(ctx context.Context, events []domain.RawEdge) ([]domain.LineageEvent, error) {
	out, _, err := r.RecordEvents(ctx, events, nil)
	return out, err
}

// InsertColumnEvents records column-level events in a single transaction.
func (r *LineageEventRepo) InsertColumnEvents(ctx context.Context, events []domain.RawColumnEdge) ([]domain.ColumnLineageEvent, error) {
	_, out, err := r.RecordEvents(ctx, nil, events)
	return out, err
}

// RecordEvents records table and column events in one transaction: either
// every event is stored or none is. Table names are stored in canonical
// form, missing entity types default to TABLE, and a zero event time
// defaults to now.
func (r *LineageEventRepo) RecordEvents(ctx context.Context, edges []domain.RawEdge, columns []domain.RawColumnEdge) ([]domain.LineageEvent, []domain.ColumnLineageEvent, error) {
	for i, e := range edges {
		if domain.NormalizeTableName(e.Source) == "" || domain.NormalizeTableName(e.Target) == "" {
			return nil, nil, domain.ErrValidation("event %d: source and target are required", i)
		}
	}
	for i, e := range columns {
		if domain.NormalizeTableName(e.SourceTable) == "" || e.SourceColumn == "" ||
			domain.NormalizeTableName(e.TargetTable) == "" || e.TargetColumn == "" {
			return nil, nil, domain.ErrValidation("column event %d: source and target table/column are required", i)
		}
	}

	tx, err := r.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := r.now()
	events, err := insertEdges(ctx, tx, edges, now)
	if err != nil {
		return nil, nil, err
	}
	colEvents, err := insertColumnEdges(ctx, tx, columns, now)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}
	return events, colEvents, nil
}

func insertEdges(ctx context.Context, tx *sql.Tx, edges []domain.RawEdge, now time.Time) ([]domain.LineageEvent, error) {
	out := make([]domain.LineageEvent, 0, len(edges))
	for _, e := range edges {
		e.Source = domain.NormalizeTableName(e.Source)
		e.Target = domain.NormalizeTableName(e.Target)
		if e.SourceType == "" {
			e.SourceType = string(domain.NodeTable)
		}
		if e.TargetType == "" {
			e.TargetType = string(domain.NodeTable)
		}
		if e.EventTime.IsZero() {
			e.EventTime = now
		}
		e.EventTime = e.EventTime.UTC()

		ev := domain.LineageEvent{ID: domain.NewID(), Edge: e, CreatedAt: now.UTC()}
		if _, err := tx.ExecContext(ctx, `INSERT INTO lineage_events
			(id, source_table, target_table, source_type, target_type, event_time, statement_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.ID, e.Source, e.Target, e.SourceType, e.TargetType, formatTime(e.EventTime), e.StatementID, formatTime(ev.CreatedAt),
		); err != nil {
			return nil, mapDBError(fmt.Errorf("insert lineage event: %w", err))
		}
		out = append(out, ev)
	}
	return out, nil
}

func insertColumnEdges(ctx context.Context, tx *sql.Tx, columns []domain.RawColumnEdge, now time.Time) ([]domain.ColumnLineageEvent, error) {
	out := make([]domain.ColumnLineageEvent, 0, len(columns))
	for _, e := range columns {
		e.SourceTable = domain.NormalizeTableName(e.SourceTable)
		e.TargetTable = domain.NormalizeTableName(e.TargetTable)
		if e.EventTime.IsZero() {
			e.EventTime = now
		}
		e.EventTime = e.EventTime.UTC()

		ev := domain.ColumnLineageEvent{ID: domain.NewID(), Edge: e, CreatedAt: now.UTC()}
		if _, err := tx.ExecContext(ctx, `INSERT INTO column_lineage_events
			(id, source_table, source_column, target_table, target_column, event_time, statement_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.ID, e.SourceTable, e.SourceColumn, e.TargetTable, e.TargetColumn, formatTime(e.EventTime), e.StatementID, formatTime(ev.CreatedAt),
		); err != nil {
			return nil, mapDBError(fmt.Errorf("insert column lineage event: %w", err))
		}
		out = append(out, ev)
	}
	return out, nil
}

// ListEvents returns a page of recorded events, newest first. A non-empty
// table restricts the listing to events where it is the source or target.
func (r *LineageEventRepo) ListEvents(ctx context.Context, table string, page domain.PageRequest) ([]domain.LineageEvent, int64, error) {
	offset, err := page.Offset()
	if err != nil {
		return nil, 0, err
	}

	where := ""
	var args []any
	if table != "" {
		table = domain.NormalizeTableName(table)
		where = "WHERE source_table = ? OR target_table = ?"
		args = append(args, table, table)
	}

	var total int64
	if err := r.readDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM lineage_events "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count lineage events: %w", err)
	}

	query := `SELECT id, source_table, target_table, source_type, target_type, event_time, statement_id, created_at
		FROM lineage_events ` + where + `
		ORDER BY event_time DESC, id DESC
		LIMIT ? OFFSET ?`
	rows, err := r.readDB.QueryContext(ctx, query, append(args, page.Limit(), offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list lineage events: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var events []domain.LineageEvent
	for rows.Next() {
		var ev domain.LineageEvent
		var eventTime, createdAt string
		if err := rows.Scan(&ev.ID, &ev.Edge.Source, &ev.Edge.Target, &ev.Edge.SourceType, &ev.Edge.TargetType,
			&eventTime, &ev.Edge.StatementID, &createdAt); err != nil {
			return nil, 0, fmt.Errorf("scan lineage event: %w", err)
		}
		if ev.Edge.EventTime, err = parseTime(eventTime); err != nil {
			return nil, 0, fmt.Errorf("parse event_time %q: %w", eventTime, err)
		}
		if ev.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, 0, fmt.Errorf("parse created_at %q: %w", createdAt, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate lineage events: %w", err)
	}
	return events, total, nil
}

// PurgeOlderThan removes table and column events observed before the given time.
func (r *LineageEventRepo) PurgeOlderThan(ctx context.Context, before time.Time) (int64, error) {
	cut := formatTime(before)

	tx, err := r.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var purged int64
	for _, table := range []string{"lineage_events", "column_lineage_events"} {
		res, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE event_time < ?", cut)
		if err != nil {
			return 0, fmt.Errorf("purge %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("purge %s: %w", table, err)
		}
		purged += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return purged, nil
}

var (
	_ domain.EdgeSource             = (*LineageEventRepo)(nil)
	_ domain.ColumnEdgeSource       = (*LineageEventRepo)(nil)
	_ domain.LineageEventRepository = (*LineageEventRepo)(nil)
)
