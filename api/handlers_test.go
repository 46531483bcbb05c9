package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nndescent/nndescent/persistence"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := persistence.NewMemoryGraphStore()
	t.Cleanup(func() { store.Close() })
	return NewServer(store, DefaultServerConfig())
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, "GET", "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
}

func tinyBuildRequest() BuildRequest {
	return BuildRequest{
		Data: [][]float32{
			{0, 0}, {1, 0}, {0, 1}, {1, 1},
		},
		K:      2,
		Metric: "euclidean",
		NIters: 10,
		Seed:   1,
	}
}

func TestHandleBuildAndGetGraph(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, "POST", "/v1/graphs/demo/build", tinyBuildRequest())
	if rec.Code != http.StatusCreated {
		t.Fatalf("build status = %d, want %d, body=%s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var buildResp BuildResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &buildResp); err != nil {
		t.Fatal(err)
	}
	if buildResp.N != 4 || buildResp.K != 2 {
		t.Errorf("unexpected build response: %+v", buildResp)
	}

	rec = doJSON(t, s, "GET", "/v1/graphs/demo", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want %d", rec.Code, http.StatusOK)
	}
	var getResp GraphResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &getResp); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < getResp.N; i++ {
		if getResp.Indices[i][0] != int32(i) {
			t.Errorf("row %d: expected self at column 0, got %d", i, getResp.Indices[i][0])
		}
	}
}

func TestHandleBuildRejectsUnknownMetric(t *testing.T) {
	s := newTestServer(t)
	req := tinyBuildRequest()
	req.Metric = "not-a-metric"
	rec := doJSON(t, s, "POST", "/v1/graphs/demo/build", req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleGetGraphNotFound(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, "GET", "/v1/graphs/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleBuildThenQuery(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, "POST", "/v1/graphs/demo/build", tinyBuildRequest())
	if rec.Code != http.StatusCreated {
		t.Fatalf("build failed: %s", rec.Body.String())
	}

	queryReq := QueryRequest{
		Queries: [][]float32{{0, 0}},
		KQ:      2,
		Epsilon: 0.1,
		Seed:    []int32{0, 1, 2, 3},
	}
	rec = doJSON(t, s, "POST", "/v1/graphs/demo/query", queryReq)
	if rec.Code != http.StatusOK {
		t.Fatalf("query status = %d, want %d, body=%s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var resp QueryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Indices) != 1 || resp.Indices[0][0] != 0 || resp.Distances[0][0] != 0 {
		t.Errorf("unexpected query response: %+v", resp)
	}
}

func TestHandleBuildThenQueryWithMinkowski(t *testing.T) {
	s := newTestServer(t)
	req := tinyBuildRequest()
	req.Metric = "minkowski"
	req.MetricP = 3
	rec := doJSON(t, s, "POST", "/v1/graphs/demo/build", req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("build failed: %s", rec.Body.String())
	}

	queryReq := QueryRequest{
		Queries: [][]float32{{0, 0}},
		KQ:      2,
		Epsilon: 0.1,
		Seed:    []int32{0, 1, 2, 3},
	}
	rec = doJSON(t, s, "POST", "/v1/graphs/demo/query", queryReq)
	if rec.Code != http.StatusOK {
		t.Fatalf("query status = %d, want %d, body=%s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var resp QueryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Indices) != 1 || resp.Indices[0][0] != 0 || resp.Distances[0][0] != 0 {
		t.Errorf("unexpected query response: %+v", resp)
	}
}

func TestHandleQueryRejectsEmptySeed(t *testing.T) {
	s := newTestServer(t)
	doJSON(t, s, "POST", "/v1/graphs/demo/build", tinyBuildRequest())

	rec := doJSON(t, s, "POST", "/v1/graphs/demo/query", QueryRequest{Queries: [][]float32{{0, 0}}, KQ: 2})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleDeleteGraph(t *testing.T) {
	s := newTestServer(t)
	doJSON(t, s, "POST", "/v1/graphs/demo/build", tinyBuildRequest())

	rec := doJSON(t, s, "DELETE", "/v1/graphs/demo", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	rec = doJSON(t, s, "GET", "/v1/graphs/demo", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleStats(t *testing.T) {
	s := newTestServer(t)
	doJSON(t, s, "POST", "/v1/graphs/demo/build", tinyBuildRequest())

	rec := doJSON(t, s, "GET", "/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp StatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Graphs) != 1 || resp.Graphs[0].Name != "demo" {
		t.Errorf("unexpected stats response: %+v", resp)
	}
}
