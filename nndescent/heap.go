// Package nndescent implements a bounded max-heap list and the NN-Descent
// graph-refinement algorithm: the deduplicating, siftdown-based candidate
// heap that sits on the hottest inner loop of the build, and the iterative
// neighbor-of-neighbors search that refines a seeded candidate graph into
// an approximate k-NN graph.
package nndescent

import (
	"math"

	"github.com/nndescent/nndescent/core"
)

// HeapList holds N parallel fixed-capacity max-heaps, each of capacity K,
// stored as three parallel row-major matrices: indices, keys and flags. A
// "flagless" HeapList (flags has zero rows) is used for query results,
// where the new/old distinction is unneeded.
type HeapList struct {
	n, k     int
	indices  []int32
	keys     []float32
	flags    []byte
	hasFlags bool
}

// NewHeapList allocates an N x K HeapList with every slot initialized to
// (core.None, key0, flag0).
func NewHeapList(n, k int, key0 float32, flag0 byte) *HeapList {
	h := newHeapList(n, k, true)
	h.reset(key0, flag0)
	return h
}

// NewFlaglessHeapList allocates an N x K HeapList with no flags matrix.
func NewFlaglessHeapList(n, k int, key0 float32) *HeapList {
	h := newHeapList(n, k, false)
	h.reset(key0, 0)
	return h
}

func newHeapList(n, k int, withFlags bool) *HeapList {
	h := &HeapList{
		n:        n,
		k:        k,
		indices:  make([]int32, n*k),
		keys:     make([]float32, n*k),
		hasFlags: withFlags,
	}
	if withFlags {
		h.flags = make([]byte, n*k)
	}
	return h
}

func (h *HeapList) reset(key0 float32, flag0 byte) {
	for i := range h.indices {
		h.indices[i] = core.None
		h.keys[i] = key0
		if h.hasFlags {
			h.flags[i] = flag0
		}
	}
}

// N returns the number of heaps.
func (h *HeapList) N() int { return h.n }

// K returns the per-heap capacity.
func (h *HeapList) K() int { return h.k }

// HasFlags reports whether this HeapList carries a flags matrix.
func (h *HeapList) HasFlags() bool { return h.hasFlags }

func (h *HeapList) row(i int) (idx []int32, key []float32, flag []byte) {
	start := i * h.k
	end := start + h.k
	idx = h.indices[start:end]
	key = h.keys[start:end]
	if h.hasFlags {
		flag = h.flags[start:end]
	}
	return
}

// Index returns the point index stored at (i, c).
func (h *HeapList) Index(i, c int) int32 { return h.indices[i*h.k+c] }

// Key returns the key stored at (i, c).
func (h *HeapList) Key(i, c int) float32 { return h.keys[i*h.k+c] }

// Flag returns the flag stored at (i, c). Undefined if HasFlags is false.
func (h *HeapList) Flag(i, c int) byte { return h.flags[i*h.k+c] }

// SetFlag overwrites the flag stored at (i, c).
func (h *HeapList) SetFlag(i, c int, flag byte) { h.flags[i*h.k+c] = flag }

// Max returns the root key of heap i: the worst key currently kept.
func (h *HeapList) Max(i int) float32 {
	return h.keys[i*h.k]
}

// Size returns the number of occupied slots in heap i.
func (h *HeapList) Size(i int) int {
	idx, _, _ := h.row(i)
	count := 0
	for _, v := range idx {
		if v != core.None {
			count++
		}
	}
	return count
}

// CheckedPush is the central operation of the candidate heap: it rejects
// keys no better than the current root, deduplicates by idx, and otherwise sifts
// the new entry down from the root into its proper position. It returns 1
// on a successful insert, 0 on rejection (already full of better candidates,
// or idx already present).
func (h *HeapList) CheckedPush(i int, idx int32, key float32, flag byte) int {
	idxRow, keyRow, flagRow := h.row(i)

	if key >= keyRow[0] {
		return 0
	}
	for _, existing := range idxRow {
		if existing == idx {
			return 0
		}
	}

	hole := 0
	for {
		left := 2*hole + 1
		right := 2*hole + 2
		if left >= h.k {
			break
		}
		largerChild := left
		if right < h.k && keyRow[right] > keyRow[left] {
			largerChild = right
		}
		if keyRow[largerChild] <= key {
			break
		}
		idxRow[hole] = idxRow[largerChild]
		keyRow[hole] = keyRow[largerChild]
		if h.hasFlags {
			flagRow[hole] = flagRow[largerChild]
		}
		hole = largerChild
	}

	idxRow[hole] = idx
	keyRow[hole] = key
	if h.hasFlags {
		flagRow[hole] = flag
	}
	return 1
}

// HeapSort permutes every heap row into ascending key order in place,
// carrying indices (and flags, if present) along in lockstep.
func (h *HeapList) HeapSort() {
	for i := 0; i < h.n; i++ {
		idxRow, keyRow, flagRow := h.row(i)
		for j := h.k - 1; j >= 1; j-- {
			idxRow[0], idxRow[j] = idxRow[j], idxRow[0]
			keyRow[0], keyRow[j] = keyRow[j], keyRow[0]
			if h.hasFlags {
				flagRow[0], flagRow[j] = flagRow[j], flagRow[0]
			}
			siftDownBounded(idxRow, keyRow, flagRow, 0, j, h.hasFlags)
		}
	}
}

// siftDownBounded repairs the max-heap property of keyRow[0:bound) starting
// from hole, carrying idxRow and (if present) flagRow along.
func siftDownBounded(idxRow []int32, keyRow []float32, flagRow []byte, hole, bound int, hasFlags bool) {
	for {
		left := 2*hole + 1
		right := 2*hole + 2
		if left >= bound {
			return
		}
		largerChild := left
		if right < bound && keyRow[right] > keyRow[left] {
			largerChild = right
		}
		if keyRow[largerChild] <= keyRow[hole] {
			return
		}
		idxRow[hole], idxRow[largerChild] = idxRow[largerChild], idxRow[hole]
		keyRow[hole], keyRow[largerChild] = keyRow[largerChild], keyRow[hole]
		if hasFlags {
			flagRow[hole], flagRow[largerChild] = flagRow[largerChild], flagRow[hole]
		}
		hole = largerChild
	}
}

// infinity is the key0 value real-use heaps are initialized with.
var infinity = float32(math.Inf(1))
