package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/api"
	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/cache"
	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/domain"
)

// DefaultTimeout bounds every request made by the CLI client.
const DefaultTimeout = 60 * time.Second

// APIError is a non-2xx response from the lineage API.
type APIError struct {
	HTTPStatus int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.HTTPStatus)
}

// Client is a small HTTP client for the lineage API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a Client for baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// validateHostURL checks that host is a bare http(s) base URL.
func validateHostURL(host string) error {
	host = strings.TrimSpace(host)
	if host == "" {
		return fmt.Errorf("invalid host %q: host URL cannot be empty", host)
	}

	u, err := url.Parse(host)
	if err != nil {
		return fmt.Errorf("invalid host %q: %w", host, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid host %q: scheme must be http or https", host)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid host %q: missing host", host)
	}
	if strings.TrimRight(u.Path, "/") != "" {
		return fmt.Errorf("invalid host %q: host must not include a path, /v1/lineage is added by the client", host)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("invalid host %q: host must not include query or fragment", host)
	}
	return nil
}

// LineageQuery holds the optional parameters of a lineage request.
type LineageQuery struct {
	Direction      string
	Depth          int
	DaysBack       int
	IncludeColumns bool
}

func (q LineageQuery) values() url.Values {
	v := url.Values{}
	if q.Direction != "" {
		v.Set("direction", q.Direction)
	}
	if q.Depth > 0 {
		v.Set("depth", strconv.Itoa(q.Depth))
	}
	if q.DaysBack > 0 {
		v.Set("days_back", strconv.Itoa(q.DaysBack))
	}
	if q.IncludeColumns {
		v.Set("include_columns", "true")
	}
	return v
}

// GetLineage fetches the lineage graph of table.
func (c *Client) GetLineage(ctx context.Context, table string, q LineageQuery) (*api.LineageResponse, error) {
	var out api.LineageResponse
	if err := c.do(ctx, http.MethodGet, "/v1/lineage/"+url.PathEscape(table), q.values(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetImpact fetches the downstream impact analysis of table.
func (c *Client) GetImpact(ctx context.Context, table string, depth int, includeGraph bool) (*domain.ImpactAnalysis, error) {
	v := url.Values{}
	if depth > 0 {
		v.Set("depth", strconv.Itoa(depth))
	}
	if includeGraph {
		v.Set("include_graph", "true")
	}
	var out domain.ImpactAnalysis
	if err := c.do(ctx, http.MethodGet, "/v1/lineage/"+url.PathEscape(table)+"/impact", v, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CacheStats fetches the server's lineage cache counters.
func (c *Client) CacheStats(ctx context.Context) (*cache.Stats, error) {
	var out cache.Stats
	if err := c.do(ctx, http.MethodGet, "/v1/lineage/cache/stats", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClearCache drops every cached lineage result on the server.
func (c *Client) ClearCache(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/v1/lineage/cache", nil, nil, nil)
}

// RecordEvents posts lineage events.
func (c *Client) RecordEvents(ctx context.Context, req api.RecordEventsRequest) (*api.RecordEventsResponse, error) {
	var out api.RecordEventsResponse
	if err := c.do(ctx, http.MethodPost, "/v1/lineage/events", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListEvents fetches one page of recorded events.
func (c *Client) ListEvents(ctx context.Context, table string, page domain.PageRequest) (*api.ListEventsResponse, error) {
	v := url.Values{}
	if table != "" {
		v.Set("table", table)
	}
	if page.MaxResults > 0 {
		v.Set("max_results", strconv.Itoa(page.MaxResults))
	}
	if page.PageToken != "" {
		v.Set("page_token", page.PageToken)
	}
	var out api.ListEventsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/lineage/events", v, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return decodeAPIError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeAPIError extracts the message from either error body shape the API
// returns: {"code","message"} or a lineage response carrying "error".
func decodeAPIError(status int, data []byte) *APIError {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := http.StatusText(status)
	if err := json.Unmarshal(data, &body); err == nil {
		switch {
		case body.Message != "":
			msg = body.Message
		case body.Error != "":
			msg = body.Error
		}
	}
	return &APIError{HTTPStatus: status, Message: msg}
}
