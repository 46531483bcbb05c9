package nndescent

import (
	"sort"
	"testing"

	"github.com/nndescent/nndescent/core"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// bruteForceGroundTruth computes, for each row of data, the true k nearest
// neighbors (excluding self) by exhaustive scan. Used only as a test oracle.
func bruteForceGroundTruth(data *core.Matrix, k int) [][]int32 {
	n := data.Rows()
	truth := make([][]int32, n)
	type cand struct {
		idx int32
		d   float32
	}
	for i := 0; i < n; i++ {
		cands := make([]cand, 0, n-1)
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			d, _ := core.EuclideanDistance(data.Row(i), data.Row(j))
			cands = append(cands, cand{int32(j), d})
		}
		sort.Slice(cands, func(a, b int) bool { return cands[a].d < cands[b].d })
		top := make([]int32, 0, k)
		for x := 0; x < k && x < len(cands); x++ {
			top = append(top, cands[x].idx)
		}
		truth[i] = top
	}
	return truth
}

func recallAt(graph *core.NNGraph, truth [][]int32, k int) float64 {
	var hit, total int
	for i := range truth {
		got := map[int32]bool{}
		for c := 0; c < graph.K; c++ {
			got[graph.Indices[i][c]] = true
		}
		for _, t := range truth[i] {
			total++
			if got[t] {
				hit++
			}
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(hit) / float64(total)
}

// standardNormalMatrix draws an n x dim matrix of i.i.d. standard-normal
// samples.
func standardNormalMatrix(n, dim int, seed uint64) *core.Matrix {
	dist := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.New(rand.NewSource(seed))}
	m := core.NewMatrix(n, dim)
	for i := 0; i < n; i++ {
		for j := 0; j < dim; j++ {
			m.Set(i, j, float32(dist.Rand()))
		}
	}
	return m
}

func TestBuildRecallAgainstBruteForce(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping recall regression in -short mode")
	}
	const n, dim, k = 300, 8, 10
	data := standardNormalMatrix(n, dim, 1)

	params := core.DefaultBuildParams()
	params.NIters = 12
	params.Delta = 0.001
	b, err := NewBuilder(data, k, params)
	if err != nil {
		t.Fatal(err)
	}
	seed := RandomSeed(n, k, params.Seed)
	graph, err := b.Build(seed)
	if err != nil {
		t.Fatal(err)
	}

	// ground truth excludes self; the graph's column 0 is always self, so
	// compare the k-1 true neighbors against columns [1:] for a fair
	// like-for-like recall figure.
	truth := bruteForceGroundTruth(data, k-1)
	trimmed := &core.NNGraph{N: graph.N, K: graph.K - 1, Indices: make([][]int32, graph.N)}
	for i := range trimmed.Indices {
		trimmed.Indices[i] = graph.Indices[i][1:]
	}
	recall := recallAt(trimmed, truth, k-1)
	if recall < 0.95 {
		t.Errorf("recall = %v, want >= 0.95", recall)
	}
}

func TestBuildConvergesWithinRoundBudget(t *testing.T) {
	const n, dim, k = 256, 4, 10
	data := standardNormalMatrix(n, dim, 2)

	params := core.DefaultBuildParams()
	params.NIters = 20
	params.Delta = 0.001
	b, err := NewBuilder(data, k, params)
	if err != nil {
		t.Fatal(err)
	}
	seed := RandomSeed(n, k, params.Seed)
	graph, err := b.Build(seed)
	if err != nil {
		t.Fatal(err)
	}
	if graph.N != n || graph.K != k {
		t.Fatalf("unexpected graph shape %d x %d", graph.N, graph.K)
	}
}
