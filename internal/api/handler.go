// Package api provides HTTP handlers for the lineage REST API.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/domain"
	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/service/lineage"
)

// Query defaults.
const (
	DefaultDirection = domain.DirectionDownstream
	DefaultDepth     = 3
)

// maxBodyBytes caps request bodies for event recording.
const maxBodyBytes = 4 << 20

// Handler serves the lineage API.
type Handler struct {
	lineage  *lineage.Service
	impact   *lineage.ImpactAnalyzer
	events   *lineage.EventService
	daysBack int
	logger   *slog.Logger
}

// NewHandler creates a Handler. daysBack is the lookback used when a query
// omits days_back.
func NewHandler(svc *lineage.Service, impact *lineage.ImpactAnalyzer, events *lineage.EventService, daysBack int, logger *slog.Logger) *Handler {
	if daysBack <= 0 {
		daysBack = lineage.DefaultDaysBack
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{lineage: svc, impact: impact, events: events, daysBack: daysBack, logger: logger}
}

// Register mounts the API routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1/lineage", func(r chi.Router) {
		r.Get("/cache/stats", h.CacheStats)
		r.Delete("/cache", h.ClearCache)
		r.Post("/events", h.RecordEvents)
		r.Get("/events", h.ListEvents)
		r.Get("/{table}", h.GetLineage)
		r.Get("/{table}/impact", h.GetImpact)
	})
}

// GetLineage handles GET /v1/lineage/{table}.
func (h *Handler) GetLineage(w http.ResponseWriter, r *http.Request) {
	req, err := h.traversalRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, LineageResponse{Error: err.Error()})
		return
	}

	res, err := h.lineage.GetLineage(r.Context(), req)
	if err != nil {
		status := httpStatusFromDomainError(err)
		h.logError(r, status, err)
		writeJSON(w, status, LineageResponse{Error: errorMessage(status, err)})
		return
	}
	writeJSON(w, http.StatusOK, LineageResponse{
		Graph:       res.Graph,
		QueryTimeMs: res.QueryTimeMs,
		Truncated:   res.Truncated,
		Cached:      res.Cached,
	})
}

// GetImpact handles GET /v1/lineage/{table}/impact.
func (h *Handler) GetImpact(w http.ResponseWriter, r *http.Request) {
	table, err := tableParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	depth, err := intParam(q, "depth", DefaultDepth)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	includeGraph, err := boolParam(q, "include_graph")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out, err := h.impact.AnalyzeImpact(r.Context(), table, depth, includeGraph)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// CacheStats handles GET /v1/lineage/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.lineage.CacheStats())
}

// ClearCache handles DELETE /v1/lineage/cache.
func (h *Handler) ClearCache(w http.ResponseWriter, _ *http.Request) {
	h.lineage.ClearCache()
	w.WriteHeader(http.StatusNoContent)
}

// RecordEvents handles POST /v1/lineage/events.
func (h *Handler) RecordEvents(w http.ResponseWriter, r *http.Request) {
	var body RecordEventsRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			err = domain.ErrValidation("request body is required")
		} else {
			err = domain.ErrValidation("invalid request body: %v", err)
		}
		h.writeError(w, r, err)
		return
	}

	edges := make([]domain.RawEdge, len(body.Edges))
	for i, e := range body.Edges {
		edges[i] = e.toDomain()
	}
	columns := make([]domain.RawColumnEdge, len(body.Columns))
	for i, c := range body.Columns {
		columns[i] = c.toDomain()
	}

	events, colEvents, err := h.events.RecordEvents(r.Context(), edges, columns)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := RecordEventsResponse{
		Edges:   make([]EdgeEvent, len(events)),
		Columns: make([]ColumnEvent, len(colEvents)),
	}
	for i, e := range events {
		out.Edges[i] = edgeEventToAPI(e)
	}
	for i, e := range colEvents {
		out.Columns[i] = columnEventToAPI(e)
	}
	writeJSON(w, http.StatusCreated, out)
}

// ListEvents handles GET /v1/lineage/events.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	maxResults, err := intParam(q, "max_results", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	page := domain.PageRequest{MaxResults: maxResults, PageToken: q.Get("page_token")}
	offset, err := page.Offset()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	events, total, err := h.events.ListEvents(r.Context(), strings.TrimSpace(q.Get("table")), page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := ListEventsResponse{Data: make([]EdgeEvent, len(events))}
	for i, e := range events {
		out.Data[i] = edgeEventToAPI(e)
	}
	out.NextPageToken = domain.NextPageToken(offset, page.Limit(), total)
	writeJSON(w, http.StatusOK, out)
}

// Health handles GET /health.
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) traversalRequest(r *http.Request) (domain.TraversalRequest, error) {
	table, err := tableParam(r)
	if err != nil {
		return domain.TraversalRequest{}, err
	}
	q := r.URL.Query()

	direction := DefaultDirection
	if v := q.Get("direction"); v != "" {
		if direction, err = domain.ParseDirection(v); err != nil {
			return domain.TraversalRequest{}, err
		}
	}
	depth, err := intParam(q, "depth", DefaultDepth)
	if err != nil {
		return domain.TraversalRequest{}, err
	}
	daysBack, err := intParam(q, "days_back", h.daysBack)
	if err != nil {
		return domain.TraversalRequest{}, err
	}
	includeColumns, err := boolParam(q, "include_columns")
	if err != nil {
		return domain.TraversalRequest{}, err
	}

	req := domain.TraversalRequest{
		Table:          table,
		Direction:      direction,
		DaysBack:       daysBack,
		MaxDepth:       depth,
		IncludeColumns: includeColumns,
	}
	return req, req.Validate()
}

func tableParam(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "table")
	table, err := url.PathUnescape(raw)
	if err != nil {
		return "", domain.ErrValidation("invalid table name %q", raw)
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return "", domain.ErrValidation("table name is required")
	}
	return table, nil
}

func intParam(q url.Values, name string, def int) (int, error) {
	v := q.Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, domain.ErrValidation("%s must be an integer, got %q", name, v)
	}
	return n, nil
}

func boolParam(q url.Values, name string) (bool, error) {
	v := q.Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, domain.ErrValidation("%s must be a boolean, got %q", name, v)
	}
	return b, nil
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatusFromDomainError(err)
	h.logError(r, status, err)
	writeJSON(w, status, ErrorResponse{Code: status, Message: errorMessage(status, err)})
}

func (h *Handler) logError(r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "lineage request failed", "path", r.URL.Path, "status", status, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
