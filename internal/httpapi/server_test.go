package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/IngaleChinmay04/MongoNexus/internal/apperr"
	"github.com/IngaleChinmay04/MongoNexus/internal/config"
	"github.com/IngaleChinmay04/MongoNexus/internal/explorer"
	"github.com/IngaleChinmay04/MongoNexus/internal/logger"
	"github.com/IngaleChinmay04/MongoNexus/internal/metrics"
	"github.com/IngaleChinmay04/MongoNexus/internal/store"
	"github.com/IngaleChinmay04/MongoNexus/internal/store/memstore"
)

var orders = store.Namespace{Database: "shop", Collection: "orders"}

func fixtureStore(opts memstore.Options) *memstore.Store {
	st := memstore.New(opts)
	for i := int32(1); i <= 25; i++ {
		status := "A"
		if i%2 == 0 {
			status = "B"
		}
		st.Insert(orders, bson.D{{Key: "_id", Value: i}, {Key: "status", Value: status}, {Key: "qty", Value: i * 10}})
	}
	return st
}

func newTestServer(t *testing.T, st store.Store) (*Server, *metrics.Metrics) {
	t.Helper()
	cfg := config.DefaultConfig()
	m := metrics.New()
	svc := explorer.New(st, cfg, m, logger.NewNop())
	return New(svc, cfg.Server, m, logger.NewNop()), m
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

type frame struct {
	event string
	data  map[string]interface{}
}

func parseSSE(t *testing.T, body string) []frame {
	t.Helper()
	var frames []frame
	for _, chunk := range strings.Split(strings.TrimSpace(body), "\n\n") {
		var f frame
		for _, line := range strings.Split(chunk, "\n") {
			switch {
			case strings.HasPrefix(line, "event:"):
				f.event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data:")), &f.data))
			}
		}
		frames = append(frames, f)
	}
	return frames
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, fixtureStore(memstore.Options{}))
	rec := do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStreamFind(t *testing.T) {
	s, m := newTestServer(t, fixtureStore(memstore.Options{}))

	rec := do(t, s, http.MethodPost, "/api/stream/find",
		`{"db_name":"shop","collection_name":"orders","filter":{"status":"A"},"sort":{"_id":1},"batch_size":5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	frames := parseSSE(t, rec.Body.String())
	require.Len(t, frames, 5) // metadata, 3 batches (5, 5, 3), complete
	assert.Equal(t, "metadata", frames[0].event)
	assert.Equal(t, "shop", frames[0].data["db_name"])
	assert.Equal(t, 13.0, frames[0].data["total_count"])
	assert.NotEmpty(t, frames[0].data["session_id"])

	for i, size := range []float64{5, 5, 3} {
		f := frames[i+1]
		assert.Equal(t, "batch", f.event)
		assert.Equal(t, size, f.data["batch_size"])
		assert.Len(t, f.data["documents"], int(size))
	}
	first := frames[1].data["documents"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, 1.0, first["_id"])

	assert.Equal(t, "complete", frames[4].event)
	assert.Equal(t, 13.0, frames[4].data["total_count"])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsTotal.WithLabelValues("completed")))
}

func TestStreamFind_BatchSizeFromQueryString(t *testing.T) {
	s, _ := newTestServer(t, fixtureStore(memstore.Options{}))

	rec := do(t, s, http.MethodPost, "/api/stream/find?batch_size=20",
		`{"db_name":"shop","collection_name":"orders"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	frames := parseSSE(t, rec.Body.String())
	require.Len(t, frames, 4) // metadata, 20, 5, complete
	assert.Equal(t, 20.0, frames[1].data["batch_size"])
	assert.Equal(t, 5.0, frames[2].data["batch_size"])

	// The body wins when both are given.
	rec = do(t, s, http.MethodPost, "/api/stream/find?batch_size=20",
		`{"db_name":"shop","collection_name":"orders","batch_size":25}`)
	require.Equal(t, http.StatusOK, rec.Code)
	frames = parseSSE(t, rec.Body.String())
	require.Len(t, frames, 3)
	assert.Equal(t, 25.0, frames[1].data["batch_size"])
}

func TestStreamFind_BadQueryBatchSize(t *testing.T) {
	st := fixtureStore(memstore.Options{})
	s, _ := newTestServer(t, st)

	for _, path := range []string{"/api/stream/find?batch_size=ten", "/api/stream/find?batch_size=0", "/api/stream/find?batch_size=500"} {
		rec := do(t, s, http.MethodPost, path, `{"db_name":"shop","collection_name":"orders"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)

		var resp errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotEmpty(t, resp.Details, path)
		assert.Equal(t, "batch_size", resp.Details[0].Field, path)
	}
	assert.Empty(t, st.Cursors())
}

func TestFind(t *testing.T) {
	s, _ := newTestServer(t, fixtureStore(memstore.Options{}))

	rec := do(t, s, http.MethodPost, "/api/mongo/find",
		`{"db_name":"shop","collection_name":"orders","filter":{"status":"A"},"sort":[{"qty":-1}],"skip":2,"limit":3,"projection":{"qty":1}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Results        []map[string]interface{} `json:"results"`
		Count          int                      `json:"count"`
		TotalCount     *int64                   `json:"total_count"`
		DatabaseName   string                   `json:"database_name"`
		CollectionName string                   `json:"collection_name"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Count)
	require.NotNil(t, resp.TotalCount)
	assert.Equal(t, int64(13), *resp.TotalCount)
	assert.Equal(t, "shop", resp.DatabaseName)
	assert.Equal(t, "orders", resp.CollectionName)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, map[string]interface{}{"_id": 21.0, "qty": 210.0}, resp.Results[0])
	assert.Equal(t, 170.0, resp.Results[2]["qty"])
}

func TestFind_DefaultLimitAndEmpty(t *testing.T) {
	s, _ := newTestServer(t, fixtureStore(memstore.Options{}))

	rec := do(t, s, http.MethodPost, "/api/mongo/find", `{"db_name":"shop","collection_name":"orders"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 25.0, resp["count"])

	rec = do(t, s, http.MethodPost, "/api/mongo/find", `{"db_name":"shop","collection_name":"orders","filter":{"status":"Z"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"results":[]`)
	assert.Contains(t, rec.Body.String(), `"total_count":0`)
}

func TestFind_Validation(t *testing.T) {
	st := fixtureStore(memstore.Options{})
	s, _ := newTestServer(t, st)

	for body, field := range map[string]string{
		`{"db_name":"shop","collection_name":"orders","limit":5000}`:               "limit",
		`{"db_name":"shop","collection_name":"orders","pipeline":[{"$match":{}}]}`: "pipeline",
		`{"db_name":"shop","collection_name":"orders","filter":{"$where":"1"}}`:    "filter.$where",
		`{"db_name":"shop","collection_name":"orders","projection":{"a":1,"b":0}}`: "projection",
	} {
		rec := do(t, s, http.MethodPost, "/api/mongo/find", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		var resp errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotEmpty(t, resp.Details, body)
		assert.Equal(t, field, resp.Details[0].Field, body)
	}
	assert.Empty(t, st.Cursors())
}

func TestStreamAggregate(t *testing.T) {
	s, _ := newTestServer(t, fixtureStore(memstore.Options{}))

	rec := do(t, s, http.MethodPost, "/api/stream/aggregate",
		`{"db_name":"shop","collection_name":"orders","pipeline":[{"$match":{"status":"B"}}],"limit":4}`)
	require.Equal(t, http.StatusOK, rec.Code)

	frames := parseSSE(t, rec.Body.String())
	require.Len(t, frames, 3)
	assert.Nil(t, frames[0].data["total_count"])
	assert.Len(t, frames[1].data["documents"], 4)
	assert.Equal(t, "complete", frames[2].event)
}

func TestStream_ValidationIsAnsweredBeforeStreaming(t *testing.T) {
	st := fixtureStore(memstore.Options{})
	s, _ := newTestServer(t, st)

	rec := do(t, s, http.MethodPost, "/api/stream/find",
		`{"db_name":"shop","collection_name":"orders","projection":{"a":1,"b":0}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp.Error, "invalid request:"))
	require.NotEmpty(t, resp.Details)
	assert.Equal(t, "projection", resp.Details[0].Field)
	assert.Empty(t, st.Cursors())
}

func TestStream_BadBody(t *testing.T) {
	s, _ := newTestServer(t, fixtureStore(memstore.Options{}))

	for _, body := range []string{`not json`, `{"db_name":"shop","collection_name":"orders","batch_size":0.5}`} {
		rec := do(t, s, http.MethodPost, "/api/stream/find", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestStream_OpenFailureIsAnErrorEvent(t *testing.T) {
	st := fixtureStore(memstore.Options{OpenErr: &apperr.ConnectivityError{Op: "find", Err: errors.New("dial tcp 10.0.0.5:27017: refused")}})
	s, m := newTestServer(t, st)

	rec := do(t, s, http.MethodPost, "/api/stream/find", `{"db_name":"shop","collection_name":"orders"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	frames := parseSSE(t, rec.Body.String())
	require.Len(t, frames, 1)
	assert.Equal(t, "error", frames[0].event)
	assert.NotContains(t, frames[0].data["message"], "10.0.0.5")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsTotal.WithLabelValues("failed")))
}

func TestStream_ClientDisconnect(t *testing.T) {
	st := fixtureStore(memstore.Options{})
	s, _ := newTestServer(t, st)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/stream/find",
		strings.NewReader(`{"db_name":"shop","collection_name":"orders"}`)).WithContext(ctx)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.NotContains(t, rec.Body.String(), "event:batch")
	assert.NotContains(t, rec.Body.String(), "event:error")
	for _, cur := range st.Cursors() {
		assert.Equal(t, 1, cur.Closes())
	}
}

func TestInferSchema(t *testing.T) {
	s, _ := newTestServer(t, fixtureStore(memstore.Options{}))

	rec := do(t, s, http.MethodPost, "/api/mongo/schema", `{"db_name":"shop","collection_name":"orders","sample_size":10}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Database     string                            `json:"db_name"`
		TotalSampled int                               `json:"total_sampled"`
		Fields       map[string]map[string]interface{} `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "shop", resp.Database)
	assert.Equal(t, 10, resp.TotalSampled)
	assert.Equal(t, "string", resp.Fields["status"]["type"])
	assert.Equal(t, "integer", resp.Fields["qty"]["type"])
	assert.Equal(t, false, resp.Fields["qty"]["optional"])
}

func TestInferSchema_WholeDatabase(t *testing.T) {
	s, _ := newTestServer(t, fixtureStore(memstore.Options{}))

	rec := do(t, s, http.MethodPost, "/api/mongo/schema", `{"db_name":"shop"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Collections []struct {
			Collection string `json:"collection_name"`
		} `json:"collections"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Collections, 1)
	assert.Equal(t, "orders", resp.Collections[0].Collection)
}

func TestInferSchema_Errors(t *testing.T) {
	s, _ := newTestServer(t, fixtureStore(memstore.Options{}))
	rec := do(t, s, http.MethodPost, "/api/mongo/schema", `{"collection_name":"orders"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	failing, _ := newTestServer(t, fixtureStore(memstore.Options{OpenErr: &apperr.ConnectivityError{Op: "sample", Err: errors.New("auth failed")}}))
	rec = do(t, failing, http.MethodPost, "/api/mongo/schema", `{"db_name":"shop","collection_name":"orders"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "auth failed")
}

func TestInferJSONSchema(t *testing.T) {
	s, _ := newTestServer(t, fixtureStore(memstore.Options{}))

	rec := do(t, s, http.MethodPost, "/api/mongo/schema/jsonschema", `{"db_name":"shop","collection_name":"orders"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "orders", resp["title"])
	assert.Equal(t, "object", resp["type"])
	assert.ElementsMatch(t, []interface{}{"_id", "qty", "status"}, resp["required"])
}

func TestListCollections(t *testing.T) {
	s, _ := newTestServer(t, fixtureStore(memstore.Options{}))

	rec := do(t, s, http.MethodGet, "/api/mongo/collections?db_name=shop", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"db_name":"shop","collections":["orders"]}`, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/mongo/collections?db_name=empty", "")
	assert.JSONEq(t, `{"db_name":"empty","collections":[]}`, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/mongo/collections", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t, fixtureStore(memstore.Options{}))

	rec := do(t, s, http.MethodOptions, "/api/stream/find", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	s, m := newTestServer(t, fixtureStore(memstore.Options{}))

	do(t, s, http.MethodGet, "/healthz", "")
	rec := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mongonexus_http_requests_total")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/healthz", "200")))
}

func TestListenAndServe_StopsWithContext(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.Listen = "127.0.0.1:0"
	svc := explorer.New(fixtureStore(memstore.Options{}), cfg, nil, logger.NewNop())
	s := New(svc, cfg.Server, nil, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
