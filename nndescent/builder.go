package nndescent

import (
	"fmt"
	"log"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/nndescent/nndescent/core"
	"golang.org/x/sync/errgroup"
)

// update is the edge-with-cached-distance record produced by a local join
// and consumed by the apply phase.
type update struct {
	a, b int32
	key  float32
}

// Builder runs NN-Descent over a fixed data matrix.
type Builder struct {
	data        *core.Matrix
	k           int
	params      core.BuildParams
	alternative core.DistanceFunc
	corrector   core.CorrectorFunc
}

// NewBuilder validates the build arguments and returns a Builder ready to
// run against the given seed graph.
func NewBuilder(data *core.Matrix, k int, params core.BuildParams) (*Builder, error) {
	if err := core.ValidateBuildArgs(data.Rows(), data.Cols(), k, params); err != nil {
		return nil, err
	}
	_, alt, corrector, ok := core.Lookup(params.Metric)
	if !ok {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidDistance, params.Metric)
	}
	if params.MaxCandidates <= 0 {
		params.MaxCandidates = k
	}
	if params.NIters <= 0 {
		params.NIters = core.DefaultBuildParams().NIters
	}
	if params.NThreads <= 0 {
		params.NThreads = runtime.GOMAXPROCS(0)
	}
	return &Builder{
		data:        data,
		k:           k,
		params:      params,
		alternative: alt,
		corrector:   corrector,
	}, nil
}

// Build runs up to params.NIters rounds of NN-Descent starting from seed (a
// HeapList of shape [N][k]), and returns the finished,
// ascending-distance-sorted graph.
func (b *Builder) Build(seed *HeapList) (*core.NNGraph, error) {
	n := b.data.Rows()
	if seed.N() != n || seed.K() != b.k {
		return nil, fmt.Errorf("%w: seed shape [%d][%d], want [%d][%d]", core.ErrDimensionMismatch, seed.N(), seed.K(), n, b.k)
	}

	log.Printf("nndescent: build starting n=%d dim=%d k=%d metric=%s threads=%d avx2=%v cpu=%q",
		n, b.data.Cols(), b.k, b.params.Metric, b.params.NThreads, core.HasAVX2(), core.CPUBrandName())

	currentGraph := NewHeapList(n, b.k, infinity, 1)

	// Every point is its own 0-distance neighbor. CheckedPush only ever
	// replaces the root (the largest key), so a key of 0 is never evicted,
	// and its dedup scan keeps a second copy of i out.
	for i := 0; i < n; i++ {
		currentGraph.CheckedPush(i, int32(i), 0, 1)
	}

	// Seed keys are recomputed through the alternative metric so every key
	// in current_graph stays in the same units for the rest of the build,
	// regardless of what units the caller's seed used.
	for i := 0; i < n; i++ {
		for c := 0; c < seed.K(); c++ {
			j := seed.Index(i, c)
			if j == core.None || int(j) == i {
				continue
			}
			key, err := b.alternative(b.data.Row(i), b.data.Row(int(j)), b.params.MetricParams)
			if err != nil {
				return nil, err
			}
			currentGraph.CheckedPush(i, j, key, 1)
		}
	}

	rng := rand.New(rand.NewSource(b.params.Seed))
	threshold := b.params.Delta * float32(b.k) * float32(n)

	round := 0
	for ; round < b.params.NIters; round++ {
		newCandidates, oldCandidates := b.sampleCandidates(currentGraph, rng)

		updates, err := b.localJoin(currentGraph, newCandidates, oldCandidates)
		if err != nil {
			return nil, err
		}

		c := b.applyUpdates(currentGraph, updates)
		log.Printf("nndescent: round %d updates=%d threshold=%.2f", round, c, threshold)

		if float32(c) < threshold {
			round++
			break
		}
	}

	currentGraph.HeapSort()
	return b.toGraph(currentGraph), nil
}

// sampleCandidates builds the per-round new/old candidate HeapLists from
// forward and reverse edges of current_graph, sampled at rate rho, then
// clears the "new" flag on any current_graph slot whose neighbor made it
// into new_candidates.
func (b *Builder) sampleCandidates(currentGraph *HeapList, rng *rand.Rand) (newCandidates, oldCandidates *HeapList) {
	n := currentGraph.N()
	maxC := b.params.MaxCandidates
	newCandidates = NewFlaglessHeapList(n, maxC, infinity)
	oldCandidates = NewFlaglessHeapList(n, maxC, infinity)

	for i := 0; i < n; i++ {
		for c := 0; c < currentGraph.K(); c++ {
			j := currentGraph.Index(i, c)
			if j == core.None {
				continue
			}
			if rng.Float32() >= b.params.Rho {
				continue
			}
			r := rng.Float32()
			target := oldCandidates
			if currentGraph.Flag(i, c) == 1 {
				target = newCandidates
			}
			target.CheckedPush(i, int32(j), r, 0)
			target.CheckedPush(int(j), int32(i), r, 0)
		}
	}

	for i := 0; i < n; i++ {
		for c := 0; c < currentGraph.K(); c++ {
			j := currentGraph.Index(i, c)
			if j == core.None {
				continue
			}
			if rowContains(newCandidates, i, j) {
				currentGraph.SetFlag(i, c, 0)
			}
		}
	}
	return newCandidates, oldCandidates
}

func rowContains(h *HeapList, i int, j int32) bool {
	for c := 0; c < h.K(); c++ {
		if h.Index(i, c) == j {
			return true
		}
	}
	return false
}

// localJoin computes candidate edges for every point. Per-i joins are
// embarrassingly parallel; both candidate HeapLists are read-only during
// this phase so no synchronization is needed across workers.
func (b *Builder) localJoin(currentGraph, newCandidates, oldCandidates *HeapList) ([]update, error) {
	n := currentGraph.N()
	nWorkers := b.params.NThreads
	if nWorkers > n {
		nWorkers = n
	}
	if nWorkers < 1 {
		nWorkers = 1
	}

	shards := make([][]update, nWorkers)
	var g errgroup.Group
	chunk := (n + nWorkers - 1) / nWorkers

	for w := 0; w < nWorkers; w++ {
		w := w
		start := w * chunk
		end := start + chunk
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}
		g.Go(func() error {
			local := make([]update, 0)
			for i := start; i < end; i++ {
				pairs, err := b.joinPoint(i, newCandidates, oldCandidates)
				if err != nil {
					return err
				}
				local = append(local, pairs...)
			}
			shards[w] = local
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var total int
	for _, s := range shards {
		total += len(s)
	}
	updates := make([]update, 0, total)
	for _, s := range shards {
		updates = append(updates, s...)
	}
	return updates, nil
}

func (b *Builder) joinPoint(i int, newCandidates, oldCandidates *HeapList) ([]update, error) {
	var newPoints, oldPoints []int32
	for c := 0; c < newCandidates.K(); c++ {
		if idx := newCandidates.Index(i, c); idx != core.None {
			newPoints = append(newPoints, idx)
		}
	}
	for c := 0; c < oldCandidates.K(); c++ {
		if idx := oldCandidates.Index(i, c); idx != core.None {
			oldPoints = append(oldPoints, idx)
		}
	}

	var updates []update
	emit := func(p, q int32) error {
		key, err := b.alternative(b.data.Row(int(p)), b.data.Row(int(q)), b.params.MetricParams)
		if err != nil {
			return err
		}
		updates = append(updates, update{p, q, key}, update{q, p, key})
		return nil
	}

	for x := 0; x < len(newPoints); x++ {
		for y := x + 1; y < len(newPoints); y++ {
			p, q := newPoints[x], newPoints[y]
			if p == q {
				continue
			}
			if err := emit(p, q); err != nil {
				return nil, err
			}
		}
	}
	for _, p := range newPoints {
		for _, q := range oldPoints {
			if p == q {
				continue
			}
			if err := emit(p, q); err != nil {
				return nil, err
			}
		}
	}
	return updates, nil
}

// applyUpdates pushes candidate edges into current_graph: pushes to
// distinct heap rows proceed concurrently, pushes to the same row are
// serialized through that row's mutex.
func (b *Builder) applyUpdates(currentGraph *HeapList, updates []update) int {
	n := currentGraph.N()
	mutexes := make([]sync.Mutex, n)
	var count int64

	nWorkers := b.params.NThreads
	if nWorkers > len(updates) {
		nWorkers = len(updates)
	}
	if nWorkers < 1 {
		nWorkers = 1
	}
	if len(updates) == 0 {
		return 0
	}

	var wg sync.WaitGroup
	chunk := (len(updates) + nWorkers - 1) / nWorkers
	for w := 0; w < nWorkers; w++ {
		start := w * chunk
		end := start + chunk
		if end > len(updates) {
			end = len(updates)
		}
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(shard []update) {
			defer wg.Done()
			for _, u := range shard {
				mutexes[u.a].Lock()
				ok := currentGraph.CheckedPush(int(u.a), u.b, u.key, 1)
				mutexes[u.a].Unlock()
				if ok == 1 {
					atomic.AddInt64(&count, 1)
				}
			}
		}(updates[start:end])
	}
	wg.Wait()
	return int(count)
}

func (b *Builder) toGraph(h *HeapList) *core.NNGraph {
	n, k := h.N(), h.K()
	g := &core.NNGraph{
		N:         n,
		K:         k,
		Indices:   make([][]int32, n),
		Distances: make([][]float32, n),
	}
	for i := 0; i < n; i++ {
		g.Indices[i] = make([]int32, k)
		g.Distances[i] = make([]float32, k)
		for c := 0; c < k; c++ {
			g.Indices[i][c] = h.Index(i, c)
			g.Distances[i][c] = b.corrector(h.Key(i, c))
		}
	}
	return g
}

// RandomSeed builds an initial HeapList of k random, distinct neighbor
// candidates per point. It stands in for a random-projection forest or
// other external seed source: a minimal, uniform seeding strategy
// sufficient to bootstrap NN-Descent when no such forest is available.
func RandomSeed(n, k int, seed int64) *HeapList {
	h := NewFlaglessHeapList(n, k, infinity)
	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < n; i++ {
		attempts := 0
		for h.Size(i) < k && attempts < k*20 {
			j := int32(rng.Intn(n))
			if int(j) != i {
				h.CheckedPush(i, j, rng.Float32(), 0)
			}
			attempts++
		}
	}
	return h
}
