package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/nndescent/nndescent/core"
	"github.com/nndescent/nndescent/nndescent"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondWithJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Timestamp: time.Now()})
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Graphs []GraphSummary `json:"graphs"`
}

// GraphSummary mirrors persistence.GraphMeta over the wire.
type GraphSummary struct {
	Name   string `json:"name"`
	N      int    `json:"n"`
	K      int    `json:"k"`
	Dim    int    `json:"dim"`
	Metric string `json:"metric"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	metas, err := s.store.ListGraphs(r.Context())
	if err != nil {
		s.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := StatsResponse{Graphs: make([]GraphSummary, len(metas))}
	for i, m := range metas {
		resp.Graphs[i] = GraphSummary{Name: m.Name, N: m.N, K: m.K, Dim: m.Dim, Metric: m.Metric.String()}
	}
	s.respondWithJSON(w, http.StatusOK, resp)
}

// BuildRequest is the body of POST /v1/graphs/{name}/build.
type BuildRequest struct {
	Data          [][]float32 `json:"data"`
	K             int         `json:"k"`
	Metric        string      `json:"metric"`
	NIters        int         `json:"n_iters,omitempty"`
	MaxCandidates int         `json:"max_candidates,omitempty"`
	Delta         float32     `json:"delta,omitempty"`
	Rho           float32     `json:"rho,omitempty"`
	Seed          int64       `json:"seed,omitempty"`
	NThreads      int         `json:"n_threads,omitempty"`
	MetricP       float32     `json:"metric_p,omitempty"`
	Weights       []float32   `json:"weights,omitempty"`
	Variance      []float32   `json:"variance,omitempty"`
}

// BuildResponse is the body returned by a successful build.
type BuildResponse struct {
	Name   string `json:"name"`
	N      int    `json:"n"`
	K      int    `json:"k"`
	Metric string `json:"metric"`
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var req BuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Data) == 0 {
		s.respondWithError(w, http.StatusBadRequest, "data must be nonempty")
		return
	}

	metric, err := core.ParseMetric(req.Metric)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	dim := len(req.Data[0])
	data := core.NewMatrix(len(req.Data), dim)
	for i, row := range req.Data {
		if len(row) != dim {
			s.respondWithError(w, http.StatusBadRequest, "all rows must have equal length")
			return
		}
		for j, v := range row {
			data.Set(i, j, v)
		}
	}

	params := core.DefaultBuildParams()
	params.Metric = metric
	if req.NIters > 0 {
		params.NIters = req.NIters
	}
	if req.MaxCandidates > 0 {
		params.MaxCandidates = req.MaxCandidates
	}
	if req.Delta > 0 {
		params.Delta = req.Delta
	}
	if req.Rho > 0 {
		params.Rho = req.Rho
	}
	if req.Seed != 0 {
		params.Seed = req.Seed
	}
	if req.NThreads > 0 {
		params.NThreads = req.NThreads
	}
	params.MetricParams = core.MetricParams{P: req.MetricP, Weights: req.Weights, Variance: req.Variance}

	builder, err := nndescent.NewBuilder(data, req.K, params)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	seed := nndescent.RandomSeed(data.Rows(), req.K, params.Seed)
	graph, err := builder.Build(seed)
	if err != nil {
		s.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.metrics.buildDuration.Observe(time.Since(start).Seconds())

	if err := s.store.SaveGraph(r.Context(), name, data, graph, metric, params.MetricParams); err != nil {
		s.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondWithJSON(w, http.StatusCreated, BuildResponse{Name: name, N: graph.N, K: graph.K, Metric: metric.String()})
}

// GraphResponse is the body of GET /v1/graphs/{name}.
type GraphResponse struct {
	Name      string      `json:"name"`
	N         int         `json:"n"`
	K         int         `json:"k"`
	Metric    string      `json:"metric"`
	Indices   [][]int32   `json:"indices"`
	Distances [][]float32 `json:"distances"`
}

func (s *Server) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	_, graph, metric, _, err := s.store.LoadGraph(r.Context(), name)
	if err != nil {
		s.respondWithError(w, http.StatusNotFound, err.Error())
		return
	}
	s.respondWithJSON(w, http.StatusOK, GraphResponse{
		Name:      name,
		N:         graph.N,
		K:         graph.K,
		Metric:    metric.String(),
		Indices:   graph.Indices,
		Distances: graph.Distances,
	})
}

func (s *Server) handleDeleteGraph(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := s.store.DeleteGraph(r.Context(), name); err != nil {
		s.respondWithError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// QueryRequest is the body of POST /v1/graphs/{name}/query.
type QueryRequest struct {
	Queries [][]float32 `json:"queries"`
	KQ      int         `json:"k_q"`
	Epsilon float32     `json:"epsilon"`
	Seed    []int32     `json:"seed"`
}

// QueryResponse is the body returned by a successful query.
type QueryResponse struct {
	Indices   [][]int32   `json:"indices"`
	Distances [][]float32 `json:"distances"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Queries) == 0 {
		s.respondWithError(w, http.StatusBadRequest, "queries must be nonempty")
		return
	}
	if len(req.Seed) == 0 {
		s.respondWithError(w, http.StatusBadRequest, "seed must be nonempty")
		return
	}

	data, graph, metric, metricParams, err := s.store.LoadGraph(r.Context(), name)
	if err != nil {
		s.respondWithError(w, http.StatusNotFound, err.Error())
		return
	}

	epsilon := req.Epsilon
	if epsilon == 0 {
		epsilon = 0.1
	}
	kq := req.KQ
	if kq == 0 {
		kq = graph.K
	}

	querier, err := nndescent.NewQuerier(graph, data, metric, metricParams, kq, epsilon)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	dim := len(req.Queries[0])
	queries := core.NewMatrix(len(req.Queries), dim)
	for i, row := range req.Queries {
		if len(row) != dim {
			s.respondWithError(w, http.StatusBadRequest, "all query rows must have equal length")
			return
		}
		for j, v := range row {
			queries.Set(i, j, v)
		}
	}

	start := time.Now()
	indices, distances, err := querier.QueryBatch(queries, req.Seed)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.metrics.queryDuration.Observe(time.Since(start).Seconds())

	s.respondWithJSON(w, http.StatusOK, QueryResponse{Indices: indices, Distances: distances})
}
