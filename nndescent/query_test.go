package nndescent

import (
	"testing"

	"github.com/nndescent/nndescent/core"
)

func buildTinyGraph(t *testing.T) (*core.Matrix, *core.NNGraph) {
	t.Helper()
	data := tinyMatrix(t)
	params := core.DefaultBuildParams()
	params.NIters = 20
	b, err := NewBuilder(data, 2, params)
	if err != nil {
		t.Fatal(err)
	}
	seed := RandomSeed(data.Rows(), 2, params.Seed)
	graph, err := b.Build(seed)
	if err != nil {
		t.Fatal(err)
	}
	return data, graph
}

func TestQueryConsistencySelfPoint(t *testing.T) {
	data, graph := buildTinyGraph(t)
	q, err := NewQuerier(graph, data, core.Euclidean, core.MetricParams{}, 2, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < data.Rows(); i++ {
		res, err := q.Query(data.Row(i), []int32{int32((i + 1) % data.Rows())})
		if err != nil {
			t.Fatal(err)
		}
		if res.Index(0, 0) != int32(i) {
			t.Errorf("query for point %d: top-1 = %d, want %d", i, res.Index(0, 0), i)
		}
		if res.Key(0, 0) != 0 {
			t.Errorf("query for point %d: top-1 distance = %v, want 0", i, res.Key(0, 0))
		}
	}
}

func TestQueryRejectsDimensionMismatch(t *testing.T) {
	data, graph := buildTinyGraph(t)
	q, err := NewQuerier(graph, data, core.Euclidean, core.MetricParams{}, 2, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := q.Query([]float32{1, 2, 3}, []int32{0}); err == nil {
		t.Error("expected error for mismatched query dimension")
	}
}

func TestQueryAscendingResults(t *testing.T) {
	data, graph := buildTinyGraph(t)
	q, err := NewQuerier(graph, data, core.Euclidean, core.MetricParams{}, 2, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	res, err := q.Query([]float32{0.5, 0.5}, []int32{0, 1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	for c := 1; c < 2; c++ {
		if res.Key(0, c) < res.Key(0, c-1) {
			t.Errorf("results not ascending: %v then %v", res.Key(0, c-1), res.Key(0, c))
		}
	}
}

func TestQueryBatchShape(t *testing.T) {
	data, graph := buildTinyGraph(t)
	q, err := NewQuerier(graph, data, core.Euclidean, core.MetricParams{}, 2, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	queries := core.NewMatrix(2, 2)
	queries.Set(0, 0, 0)
	queries.Set(0, 1, 0)
	queries.Set(1, 0, 1)
	queries.Set(1, 1, 1)

	indices, distances, err := q.QueryBatch(queries, []int32{0, 1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(indices) != 2 || len(distances) != 2 {
		t.Fatalf("expected 2 result rows, got %d/%d", len(indices), len(distances))
	}
	for _, row := range indices {
		if len(row) != 2 {
			t.Errorf("expected k_q=2 columns, got %d", len(row))
		}
	}
}

func TestNewQuerierRejectsUnknownMetric(t *testing.T) {
	data, graph := buildTinyGraph(t)
	if _, err := NewQuerier(graph, data, core.MetricID(999), core.MetricParams{}, 2, 0.1); err == nil {
		t.Error("expected error for unknown metric")
	}
}

func TestNewQuerierRejectsBadEpsilon(t *testing.T) {
	data, graph := buildTinyGraph(t)
	if _, err := NewQuerier(graph, data, core.Euclidean, core.MetricParams{}, 2, -1); err == nil {
		t.Error("expected error for negative epsilon")
	}
}
