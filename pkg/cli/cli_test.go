package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/api"
	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/app"
	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/config"
	internaldb "github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/db"
)

const lineageBody = `{
	"graph": {
		"nodes": [{"id": "orders", "name": "orders", "type": "TABLE"}, {"id": "summary", "name": "summary", "type": "TABLE"}],
		"edges": [{"source_id": "orders", "target_id": "summary", "edge_type": "DERIVES_FROM", "min_depth": 1, "max_depth": 1, "occurrence_count": 2, "last_seen": "2026-01-02T03:04:05Z", "statement_ids": ["s1"]}],
		"metadata": {}
	},
	"query_time_ms": 7,
	"truncated": false,
	"cached": true
}`

func TestGetCmd_BuildsRequest(t *testing.T) {
	isolateEnv(t)
	srv, rec := newRecordingServer(t, http.StatusOK, lineageBody)

	out, err := runCLI(t, "", "--host", srv.URL, "-o", "table",
		"get", "main.sales.orders", "--direction", "both", "--depth", "4", "--days-back", "30", "--include-columns")
	require.NoError(t, err)

	req := rec.last()
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/v1/lineage/main.sales.orders", req.Path)
	assert.Equal(t, "days_back=30&depth=4&direction=both&include_columns=true", req.Query)

	assert.Contains(t, out, "orders")
	assert.Contains(t, out, "DERIVES_FROM")
	assert.Contains(t, out, "(2 nodes, 1 edges, 7 ms) [cached]")
}

func TestGetCmd_JSONOutput(t *testing.T) {
	isolateEnv(t)
	srv, rec := newRecordingServer(t, http.StatusOK, lineageBody)

	out, err := runCLI(t, "", "--host", srv.URL, "-o", "json", "get", "orders")
	require.NoError(t, err)
	assert.Empty(t, rec.last().Query, "unset flags defer to server defaults")

	var resp api.LineageResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Cached)
	require.Len(t, resp.Graph.Edges, 1)
	assert.Equal(t, "summary", resp.Graph.Edges[0].TargetID)
}

func TestGetCmd_APIError(t *testing.T) {
	isolateEnv(t)
	srv, _ := newRecordingServer(t, http.StatusBadGateway, `{"graph":null,"query_time_ms":0,"truncated":false,"cached":false,"error":"edge source unavailable"}`)

	_, err := runCLI(t, "", "--host", srv.URL, "-o", "json", "get", "orders")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.HTTPStatus)
	assert.Equal(t, "edge source unavailable", apiErr.Message)
}

func TestImpactCmd(t *testing.T) {
	isolateEnv(t)
	srv, rec := newRecordingServer(t, http.StatusOK, `{
		"entity_id": "orders", "depth": 2,
		"directly_impacted": [{"id": "summary", "name": "summary", "type": "TABLE"}],
		"indirectly_impacted": [{"id": "report", "name": "report", "type": "VIEW"}],
		"total_impact_count": 2, "truncated": false
	}`)

	out, err := runCLI(t, "", "--host", srv.URL, "-o", "table", "impact", "orders", "--depth", "2")
	require.NoError(t, err)

	assert.Equal(t, "/v1/lineage/orders/impact", rec.last().Path)
	assert.Equal(t, "depth=2", rec.last().Query)
	assert.Contains(t, out, "direct")
	assert.Contains(t, out, "report")
	assert.Contains(t, out, "(2 impacted entities within depth 2)")
}

func TestCacheCmds(t *testing.T) {
	isolateEnv(t)

	t.Run("stats", func(t *testing.T) {
		srv, rec := newRecordingServer(t, http.StatusOK,
			`{"hits":3,"misses":1,"evictions":0,"total_queries":4,"hit_rate":75,"current_size":1,"max_size":1000,"default_ttl_seconds":3600}`)

		out, err := runCLI(t, "", "--host", srv.URL, "-o", "table", "cache", "stats")
		require.NoError(t, err)
		assert.Equal(t, "/v1/lineage/cache/stats", rec.last().Path)
		assert.Contains(t, out, "75.0%")
		assert.Contains(t, out, "1h0m0s")
	})

	t.Run("clear", func(t *testing.T) {
		rec := &requestRecorder{}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec.record(r)
			w.WriteHeader(http.StatusNoContent)
		}))
		t.Cleanup(srv.Close)

		out, err := runCLI(t, "", "--host", srv.URL, "-o", "table", "cache", "clear")
		require.NoError(t, err)
		assert.Equal(t, http.MethodDelete, rec.last().Method)
		assert.Equal(t, "/v1/lineage/cache", rec.last().Path)
		assert.Contains(t, out, "cleared")
	})
}

func TestEventsRecordCmd(t *testing.T) {
	isolateEnv(t)
	const created = `{"edges":[{"id":"e1","source":"a","target":"b"}],"columns":[]}`

	t.Run("single edge from flags", func(t *testing.T) {
		srv, rec := newRecordingServer(t, http.StatusCreated, created)

		out, err := runCLI(t, "", "--host", srv.URL, "-o", "table",
			"events", "record", "--source", "a", "--target", "b", "--statement-id", "s1")
		require.NoError(t, err)

		var body api.RecordEventsRequest
		require.NoError(t, json.Unmarshal([]byte(rec.last().Body), &body))
		require.Len(t, body.Edges, 1)
		assert.Equal(t, "a", body.Edges[0].Source)
		assert.Equal(t, "s1", body.Edges[0].StatementID)
		assert.Contains(t, out, "Recorded 1 table and 0 column events")
	})

	t.Run("batch from stdin", func(t *testing.T) {
		srv, rec := newRecordingServer(t, http.StatusCreated, created)

		_, err := runCLI(t, `{"edges":[{"source":"a","target":"b"}],"columns":[{"source_table":"a","source_column":"x","target_table":"b","target_column":"y"}]}`,
			"--host", srv.URL, "-o", "json", "events", "record", "-f", "-")
		require.NoError(t, err)

		var body api.RecordEventsRequest
		require.NoError(t, json.Unmarshal([]byte(rec.last().Body), &body))
		assert.Len(t, body.Edges, 1)
		assert.Len(t, body.Columns, 1)
	})

	t.Run("batch from file", func(t *testing.T) {
		srv, rec := newRecordingServer(t, http.StatusCreated, created)
		path := filepath.Join(t.TempDir(), "events.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"edges":[{"source":"a","target":"b"}]}`), 0o600))

		_, err := runCLI(t, "", "--host", srv.URL, "-o", "json", "events", "record", "--file", path)
		require.NoError(t, err)
		assert.Equal(t, 1, rec.count())
	})

	t.Run("missing input", func(t *testing.T) {
		srv, rec := newRecordingServer(t, http.StatusCreated, created)

		_, err := runCLI(t, "", "--host", srv.URL, "events", "record", "--source", "a")
		require.Error(t, err)
		assert.Zero(t, rec.count())
	})

	t.Run("file and flags conflict", func(t *testing.T) {
		srv, _ := newRecordingServer(t, http.StatusCreated, created)

		_, err := runCLI(t, "", "--host", srv.URL, "events", "record", "-f", "-", "--source", "a", "--target", "b")
		require.ErrorContains(t, err, "cannot be combined")
	})
}

func TestEventsListCmd_FollowsPages(t *testing.T) {
	isolateEnv(t)
	rec := &requestRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page_token") == "" {
			_, _ = w.Write([]byte(`{"data":[{"id":"e2","source":"b","target":"c"}],"next_page_token":"MQ"}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"e1","source":"a","target":"b"}]}`))
	}))
	t.Cleanup(srv.Close)

	out, err := runCLI(t, "", "--host", srv.URL, "-o", "json", "events", "list", "--table", "b", "--max-results", "1", "--all")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.count())
	assert.Equal(t, "max_results=1&page_token=MQ&table=b", rec.last().Query)

	var resp api.ListEventsResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 2)
	assert.Empty(t, resp.NextPageToken)
}

func TestRootCmd_Validation(t *testing.T) {
	isolateEnv(t)

	_, err := runCLI(t, "", "--host", "localhost:8080", "version")
	require.ErrorContains(t, err, "scheme must be http or https")

	_, err = runCLI(t, "", "-o", "yaml", "version")
	require.ErrorContains(t, err, "unsupported output format")
}

func TestRootCmd_HostPrecedence(t *testing.T) {
	home := isolateEnv(t)
	profileSrv, profileRec := newRecordingServer(t, http.StatusOK, lineageBody)
	envSrv, envRec := newRecordingServer(t, http.StatusOK, lineageBody)
	flagSrv, flagRec := newRecordingServer(t, http.StatusOK, lineageBody)

	cfgDir := filepath.Join(home, ".lineage")
	require.NoError(t, os.MkdirAll(cfgDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "config.yaml"), []byte(
		"current-profile: default\nprofiles:\n  default:\n    host: "+profileSrv.URL+"\n    output: json\n    days-back: 14\n"), 0o600))

	_, err := runCLI(t, "", "get", "orders")
	require.NoError(t, err)
	assert.Equal(t, 1, profileRec.count())
	assert.Equal(t, "days_back=14", profileRec.last().Query)

	t.Setenv("LINEAGE_HOST", envSrv.URL)
	_, err = runCLI(t, "", "get", "orders")
	require.NoError(t, err)
	assert.Equal(t, 1, envRec.count())

	_, err = runCLI(t, "", "--host", flagSrv.URL, "get", "orders")
	require.NoError(t, err)
	assert.Equal(t, 1, flagRec.count())
	assert.Equal(t, 1, profileRec.count())
}

// TestEndToEnd drives the CLI against the real lineage API.
func TestEndToEnd(t *testing.T) {
	isolateEnv(t)
	writeDB, readDB := internaldb.OpenTestSQLite(t)
	a, err := app.New(context.Background(), app.Deps{
		Cfg: &config.Config{Lineage: config.LineageConfig{
			Source:          config.SourceSQLite,
			CacheTTL:        time.Minute,
			CacheMaxSize:    10,
			FetchTimeout:    time.Second,
			CoalesceMisses:  true,
			DefaultDaysBack: 90,
		}},
		WriteDB: writeDB,
		ReadDB:  readDB,
	})
	require.NoError(t, err)
	r := chi.NewRouter()
	a.Handler.Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	_, err = runCLI(t, "", "--host", srv.URL, "-o", "json", "events", "record", "--source", "orders", "--target", "summary")
	require.NoError(t, err)
	_, err = runCLI(t, "", "--host", srv.URL, "-o", "json", "events", "record", "--source", "summary", "--target", "report")
	require.NoError(t, err)

	out, err := runCLI(t, "", "--host", srv.URL, "-o", "json", "get", "orders", "--depth", "5")
	require.NoError(t, err)
	var resp api.LineageResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, []string{"orders", "report", "summary"}, resp.Graph.NodeIDs())
	assert.False(t, resp.Cached)

	out, err = runCLI(t, "", "--host", srv.URL, "-o", "json", "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, `"current_size": 1`)

	_, err = runCLI(t, "", "--host", srv.URL, "-o", "json", "get", "orders", "--depth", "11")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.HTTPStatus)
}
