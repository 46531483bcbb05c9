package persistence

import (
	"context"
	"fmt"
	"sync"

	"github.com/nndescent/nndescent/core"
)

// MemoryGraphStore implements GraphStore purely in memory (non-persistent).
type MemoryGraphStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryGraphStore creates a new in-memory graph store.
func NewMemoryGraphStore() *MemoryGraphStore {
	return &MemoryGraphStore{blobs: make(map[string][]byte)}
}

// SaveGraph stores a graph in memory, encoded the same way the disk-backed
// stores encode it, so behavior stays identical across backends.
func (m *MemoryGraphStore) SaveGraph(ctx context.Context, name string, data *core.Matrix, graph *core.NNGraph, metric core.MetricID, metricParams core.MetricParams) error {
	blob := encodeGraph(data, graph, metric, metricParams)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[name] = blob
	return nil
}

// LoadGraph retrieves a previously saved graph.
func (m *MemoryGraphStore) LoadGraph(ctx context.Context, name string) (*core.Matrix, *core.NNGraph, core.MetricID, core.MetricParams, error) {
	m.mu.RLock()
	blob, ok := m.blobs[name]
	m.mu.RUnlock()
	if !ok {
		return nil, nil, 0, core.MetricParams{}, fmt.Errorf("graph %s not found", name)
	}
	return decodeGraph(blob)
}

// DeleteGraph removes a stored graph.
func (m *MemoryGraphStore) DeleteGraph(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[name]; !ok {
		return fmt.Errorf("graph %s not found", name)
	}
	delete(m.blobs, name)
	return nil
}

// ListGraphs lists all stored graphs' metadata.
func (m *MemoryGraphStore) ListGraphs(ctx context.Context) ([]GraphMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	metas := make([]GraphMeta, 0, len(m.blobs))
	for name, blob := range m.blobs {
		meta, err := decodeGraphMeta(name, blob)
		if err != nil {
			return nil, err
		}
		metas = append(metas, meta)
	}
	return metas, nil
}

// Close is a no-op for memory persistence.
func (m *MemoryGraphStore) Close() error {
	return nil
}
