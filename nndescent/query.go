package nndescent

import (
	"container/heap"
	"fmt"

	"github.com/nndescent/nndescent/core"
)

// Querier answers nearest-neighbor queries against a built graph.
type Querier struct {
	data    *core.Matrix
	graph   *core.NNGraph
	forward core.DistanceFunc
	metricP core.MetricParams
	kq      int
	epsilon float32
}

// NewQuerier validates the query-time arguments against the built graph and
// returns a Querier ready to answer queries of dimension data.Cols().
func NewQuerier(graph *core.NNGraph, data *core.Matrix, metric core.MetricID, metricParams core.MetricParams, kq int, epsilon float32) (*Querier, error) {
	if err := core.ValidateQueryArgs(data.Cols(), data.Cols(), kq, epsilon); err != nil {
		return nil, err
	}
	if graph.N != data.Rows() {
		return nil, fmt.Errorf("%w: graph has %d rows, data has %d", core.ErrDimensionMismatch, graph.N, data.Rows())
	}
	forward, _, _, ok := core.Lookup(metric)
	if !ok {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidDistance, metric)
	}
	return &Querier{
		data:    data,
		graph:   graph,
		forward: forward,
		metricP: metricParams,
		kq:      kq,
		epsilon: epsilon,
	}, nil
}

// frontierEntry is a (key, idx) pair ordered by key, ascending.
type frontierEntry struct {
	key float32
	idx int32
}

// frontierQueue is a container/heap min-priority-queue of frontierEntry.
type frontierQueue []frontierEntry

func (q frontierQueue) Len() int            { return len(q) }
func (q frontierQueue) Less(i, j int) bool  { return q[i].key < q[j].key }
func (q frontierQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *frontierQueue) Push(x interface{}) { *q = append(*q, x.(frontierEntry)) }
func (q *frontierQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// Query runs a best-first frontier search: starting from seed, it explores
// graph edges in ascending key order until the frontier's best candidate
// can no longer beat (1+epsilon) times the current k_q-th best distance
// found.
func (q *Querier) Query(query []float32, seed []int32) (*HeapList, error) {
	if len(query) != q.data.Cols() {
		return nil, fmt.Errorf("%w: query has %d dims, data has %d", core.ErrDimensionMismatch, len(query), q.data.Cols())
	}

	results := NewFlaglessHeapList(1, q.kq, infinity)
	visited := make([]bool, q.graph.N)
	var frontier frontierQueue

	for _, s := range seed {
		if s < 0 || int(s) >= q.graph.N || visited[s] {
			continue
		}
		visited[s] = true
		key, err := q.forward(query, q.data.Row(int(s)), q.metricP)
		if err != nil {
			return nil, err
		}
		results.CheckedPush(0, s, key, 0)
		heap.Push(&frontier, frontierEntry{key: key, idx: s})
	}

	for frontier.Len() > 0 {
		top := heap.Pop(&frontier).(frontierEntry)
		if top.key > (1+q.epsilon)*results.Max(0) {
			break
		}
		for c := 0; c < q.graph.K; c++ {
			j := q.graph.Indices[top.idx][c]
			if j == core.None || visited[j] {
				continue
			}
			visited[j] = true
			dist, err := q.forward(query, q.data.Row(int(j)), q.metricP)
			if err != nil {
				return nil, err
			}
			if dist < results.Max(0) {
				results.CheckedPush(0, j, dist, 0)
				heap.Push(&frontier, frontierEntry{key: dist, idx: j})
			}
		}
	}

	results.HeapSort()
	return results, nil
}

// QueryBatch runs Query independently over every row of queries, each
// seeded from the same seed set, and packs the results into parallel
// index/distance matrices.
func (q *Querier) QueryBatch(queries *core.Matrix, seed []int32) (indices [][]int32, distances [][]float32, err error) {
	if queries.Cols() != q.data.Cols() {
		return nil, nil, fmt.Errorf("%w: queries have %d dims, data has %d", core.ErrDimensionMismatch, queries.Cols(), q.data.Cols())
	}
	n := queries.Rows()
	indices = make([][]int32, n)
	distances = make([][]float32, n)
	for i := 0; i < n; i++ {
		res, err := q.Query(queries.Row(i), seed)
		if err != nil {
			return nil, nil, err
		}
		idxRow := make([]int32, q.kq)
		distRow := make([]float32, q.kq)
		for c := 0; c < q.kq; c++ {
			idxRow[c] = res.Index(0, c)
			distRow[c] = res.Key(0, c)
		}
		indices[i] = idxRow
		distances[i] = distRow
	}
	return indices, distances, nil
}
