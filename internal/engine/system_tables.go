// Package engine reads lineage from the analytical warehouse. The DuckDB
// connection is treated as the external data platform: its lineage relations
// mirror the shape of a platform's access system tables.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/domain"
)

// Default relation names, resolved in the DuckDB default catalog.
const (
	DefaultTableLineageRelation  = "table_lineage"
	DefaultColumnLineageRelation = "column_lineage"
)

var relationPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*){0,2}$`)

// SystemTableSource is an edge source backed by system-table-shaped lineage
// relations in DuckDB. Table names are matched case-insensitively and
// returned in canonical lower-case form.
//
// The table relation must expose source_table_full_name,
// target_table_full_name, source_type, target_type, event_time and
// statement_id. The column relation additionally exposes source_column_name
// and target_column_name.
type SystemTableSource struct {
	db             *sql.DB
	tableRelation  string
	columnRelation string
	now            func() time.Time
}

// NewSystemTableSource creates a SystemTableSource. Empty relation names fall
// back to the defaults; invalid identifiers are rejected.
func NewSystemTableSource(db *sql.DB, tableRelation, columnRelation string) (*SystemTableSource, error) {
	if tableRelation == "" {
		tableRelation = DefaultTableLineageRelation
	}
	if columnRelation == "" {
		columnRelation = DefaultColumnLineageRelation
	}
	for _, rel := range []string{tableRelation, columnRelation} {
		if !relationPattern.MatchString(rel) {
			return nil, domain.ErrValidation("invalid lineage relation name %q", rel)
		}
	}
	return &SystemTableSource{
		db:             db,
		tableRelation:  tableRelation,
		columnRelation: columnRelation,
		now:            time.Now,
	}, nil
}

// anchorColumns returns the column matched against the anchor and the column
// that must be non-null on the far side.
func anchorColumns(role domain.AnchorRole) (anchor, far string, err error) {
	switch role {
	case domain.AnchorSource:
		return "source_table_full_name", "target_table_full_name", nil
	case domain.AnchorTarget:
		return "target_table_full_name", "source_table_full_name", nil
	default:
		return "", "", domain.ErrValidation("invalid anchor role %q", role)
	}
}

// Fetch returns table-level edges anchored on anchorTable within the window.
func (s *SystemTableSource) Fetch(ctx context.Context, anchorTable string, role domain.AnchorRole, daysBack int) ([]domain.RawEdge, error) {
	anchor, far, err := anchorColumns(role)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT lower(source_table_full_name), lower(target_table_full_name),
			COALESCE(source_type, 'TABLE'), COALESCE(target_type, 'TABLE'),
			event_time, COALESCE(statement_id, '')
		FROM %s
		WHERE lower(%s) = ? AND %s IS NOT NULL AND event_time >= ?
		ORDER BY event_time`, s.tableRelation, anchor, far)

	rows, err := s.db.QueryContext(ctx, query, domain.NormalizeTableName(anchorTable), s.now().AddDate(0, 0, -daysBack))
	if err != nil {
		return nil, s.wrap(ctx, err, "query %s", s.tableRelation)
	}
	defer rows.Close() //nolint:errcheck

	var edges []domain.RawEdge
	for rows.Next() {
		var e domain.RawEdge
		if err := rows.Scan(&e.Source, &e.Target, &e.SourceType, &e.TargetType, &e.EventTime, &e.StatementID); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", s.tableRelation, err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap(ctx, err, "iterate %s", s.tableRelation)
	}
	return edges, nil
}

// FetchColumns returns column-level edges for columns of anchorTable.
func (s *SystemTableSource) FetchColumns(ctx context.Context, anchorTable string, role domain.AnchorRole, daysBack int) ([]domain.RawColumnEdge, error) {
	anchor, far, err := anchorColumns(role)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT lower(source_table_full_name), source_column_name,
			lower(target_table_full_name), target_column_name,
			event_time, COALESCE(statement_id, '')
		FROM %s
		WHERE lower(%s) = ? AND %s IS NOT NULL
			AND source_column_name IS NOT NULL AND target_column_name IS NOT NULL
			AND event_time >= ?
		ORDER BY event_time`, s.columnRelation, anchor, far)

	rows, err := s.db.QueryContext(ctx, query, domain.NormalizeTableName(anchorTable), s.now().AddDate(0, 0, -daysBack))
	if err != nil {
		return nil, s.wrap(ctx, err, "query %s", s.columnRelation)
	}
	defer rows.Close() //nolint:errcheck

	var edges []domain.RawColumnEdge
	for rows.Next() {
		var e domain.RawColumnEdge
		if err := rows.Scan(&e.SourceTable, &e.SourceColumn, &e.TargetTable, &e.TargetColumn, &e.EventTime, &e.StatementID); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", s.columnRelation, err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap(ctx, err, "iterate %s", s.columnRelation)
	}
	return edges, nil
}

// wrap reports an interrupted query as a timeout when the caller's deadline
// expired; DuckDB surfaces interrupts with its own error text.
func (s *SystemTableSource) wrap(ctx context.Context, err error, format string, args ...any) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.ErrTimeout(err, format, args...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

var (
	_ domain.EdgeSource       = (*SystemTableSource)(nil)
	_ domain.ColumnEdgeSource = (*SystemTableSource)(nil)
)
