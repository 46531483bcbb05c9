package persistence

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/nndescent/nndescent/core"
)

// graphMagic tags the start of an encoded graph blob so a corrupted or
// foreign value is rejected early instead of decoding into garbage.
const graphMagic uint32 = 0x4e4e4447 // "NNDG"

// headerLen is the fixed-width header: magic, N, K, Dim, Metric, each a
// little-endian uint32.
const headerLen = 5 * 4

// paramsHeaderLen is the fixed-width metric-params header that follows
// headerLen: P (float32 bits), len(Weights), len(Variance), each a
// little-endian uint32.
const paramsHeaderLen = 3 * 4

// encodeGraph packs data, graph, metric and its params into a single blob:
// header, params header, params arrays, then the data matrix, then indices,
// then distances, all row-major, with data prepended so a store can reopen
// a graph without a side channel for the original dataset. Persisting the
// metric params means a graph built with minkowski, weighted_minkowski or
// standardised_euclidean can be reopened and queried with the same params
// it was built with.
func encodeGraph(data *core.Matrix, graph *core.NNGraph, metric core.MetricID, metricParams core.MetricParams) []byte {
	n, dim, k := graph.N, data.Cols(), graph.K
	nw, nv := len(metricParams.Weights), len(metricParams.Variance)
	buf := make([]byte, headerLen+paramsHeaderLen+4*nw+4*nv+4*n*dim+4*n*k+4*n*k)

	binary.LittleEndian.PutUint32(buf[0:4], graphMagic)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(n))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(k))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(dim))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(metric))

	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(metricParams.P))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(nw))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(nv))

	off := headerLen + paramsHeaderLen
	for _, v := range metricParams.Weights {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
		off += 4
	}
	for _, v := range metricParams.Variance {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
		off += 4
	}
	for i := 0; i < n; i++ {
		row := data.Row(i)
		for _, v := range row {
			binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
			off += 4
		}
	}
	for i := 0; i < n; i++ {
		for c := 0; c < k; c++ {
			binary.LittleEndian.PutUint32(buf[off:off+4], uint32(graph.Indices[i][c]))
			off += 4
		}
	}
	for i := 0; i < n; i++ {
		for c := 0; c < k; c++ {
			binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(graph.Distances[i][c]))
			off += 4
		}
	}
	return buf
}

// decodeGraphMeta reads just the header of an encoded graph blob, without
// materializing the data matrix or the graph body.
func decodeGraphMeta(name string, buf []byte) (GraphMeta, error) {
	if len(buf) < headerLen {
		return GraphMeta{}, fmt.Errorf("%w: graph blob shorter than header", core.ErrInvalidParam)
	}
	if magic := binary.LittleEndian.Uint32(buf[0:4]); magic != graphMagic {
		return GraphMeta{}, fmt.Errorf("%w: bad graph magic %x", core.ErrInvalidParam, magic)
	}
	return GraphMeta{
		Name:   name,
		N:      int(binary.LittleEndian.Uint32(buf[4:8])),
		K:      int(binary.LittleEndian.Uint32(buf[8:12])),
		Dim:    int(binary.LittleEndian.Uint32(buf[12:16])),
		Metric: core.MetricID(binary.LittleEndian.Uint32(buf[16:20])),
	}, nil
}

// decodeGraph is the inverse of encodeGraph.
func decodeGraph(buf []byte) (*core.Matrix, *core.NNGraph, core.MetricID, core.MetricParams, error) {
	if len(buf) < headerLen+paramsHeaderLen {
		return nil, nil, 0, core.MetricParams{}, fmt.Errorf("%w: graph blob shorter than header", core.ErrInvalidParam)
	}
	if magic := binary.LittleEndian.Uint32(buf[0:4]); magic != graphMagic {
		return nil, nil, 0, core.MetricParams{}, fmt.Errorf("%w: bad graph magic %x", core.ErrInvalidParam, magic)
	}
	n := int(binary.LittleEndian.Uint32(buf[4:8]))
	k := int(binary.LittleEndian.Uint32(buf[8:12]))
	dim := int(binary.LittleEndian.Uint32(buf[12:16]))
	metric := core.MetricID(binary.LittleEndian.Uint32(buf[16:20]))

	p := math.Float32frombits(binary.LittleEndian.Uint32(buf[20:24]))
	nw := int(binary.LittleEndian.Uint32(buf[24:28]))
	nv := int(binary.LittleEndian.Uint32(buf[28:32]))

	want := headerLen + paramsHeaderLen + 4*nw + 4*nv + 4*n*dim + 4*n*k + 4*n*k
	if len(buf) != want {
		return nil, nil, 0, core.MetricParams{}, fmt.Errorf("%w: graph blob has %d bytes, want %d", core.ErrInvalidParam, len(buf), want)
	}

	off := headerLen + paramsHeaderLen
	var weights, variance []float32
	if nw > 0 {
		weights = make([]float32, nw)
		for i := 0; i < nw; i++ {
			weights[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[off : off+4]))
			off += 4
		}
	}
	if nv > 0 {
		variance = make([]float32, nv)
		for i := 0; i < nv; i++ {
			variance[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[off : off+4]))
			off += 4
		}
	}
	metricParams := core.MetricParams{P: p, Weights: weights, Variance: variance}

	data := core.NewMatrix(n, dim)
	for i := 0; i < n; i++ {
		for j := 0; j < dim; j++ {
			data.Set(i, j, math.Float32frombits(binary.LittleEndian.Uint32(buf[off:off+4])))
			off += 4
		}
	}

	graph := &core.NNGraph{N: n, K: k, Indices: make([][]int32, n), Distances: make([][]float32, n)}
	for i := 0; i < n; i++ {
		graph.Indices[i] = make([]int32, k)
		for c := 0; c < k; c++ {
			graph.Indices[i][c] = int32(binary.LittleEndian.Uint32(buf[off : off+4]))
			off += 4
		}
	}
	for i := 0; i < n; i++ {
		graph.Distances[i] = make([]float32, k)
		for c := 0; c < k; c++ {
			graph.Distances[i][c] = math.Float32frombits(binary.LittleEndian.Uint32(buf[off : off+4]))
			off += 4
		}
	}

	return data, graph, metric, metricParams, nil
}
