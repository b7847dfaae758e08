package lineage

import (
	"context"
	"log/slog"

	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/domain"
)

// CacheClearer drops cached lineage results.
type CacheClearer interface {
	ClearCache()
}

// EventService records raw lineage events into the metastore.
type EventService struct {
	repo   domain.LineageEventRepository
	cache  CacheClearer
	logger *slog.Logger
}

// NewEventService creates an EventService. cache may be nil.
func NewEventService(repo domain.LineageEventRepository, cache CacheClearer, logger *slog.Logger) *EventService {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventService{repo: repo, cache: cache, logger: logger}
}

// RecordEvents stores table and column events. Any recorded event can change
// the lineage of every table reachable from it, so the lineage cache is
// cleared whenever something was written, including when the repository
// reports a failure after committing part of the request.
func (s *EventService) RecordEvents(ctx context.Context, edges []domain.RawEdge, columns []domain.RawColumnEdge) ([]domain.LineageEvent, []domain.ColumnLineageEvent, error) {
	if len(edges) == 0 && len(columns) == 0 {
		return nil, nil, domain.ErrValidation("at least one event is required")
	}

	events, colEvents, err := s.repo.RecordEvents(ctx, edges, columns)
	if len(events) > 0 || len(colEvents) > 0 {
		if s.cache != nil {
			s.cache.ClearCache()
		}
	}
	if err != nil {
		if len(events) > 0 || len(colEvents) > 0 {
			s.logger.Warn("lineage events partially recorded",
				"edges", len(events), "columns", len(colEvents), "error", err)
		}
		return nil, nil, err
	}

	s.logger.Info("lineage events recorded", "edges", len(events), "columns", len(colEvents))
	return events, colEvents, nil
}

// ListEvents returns recorded events touching table (any table when empty),
// newest first.
func (s *EventService) ListEvents(ctx context.Context, table string, page domain.PageRequest) ([]domain.LineageEvent, int64, error) {
	return s.repo.ListEvents(ctx, table, page)
}
