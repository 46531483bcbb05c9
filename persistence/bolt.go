package persistence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nndescent/nndescent/core"
	"go.etcd.io/bbolt"
)

const graphsBucket = "graphs"

// BoltGraphStore implements GraphStore using BoltDB.
type BoltGraphStore struct {
	db   *bbolt.DB
	path string
}

// NewBoltGraphStore opens (creating if necessary) a BoltDB-backed graph
// store at dbPath.
func NewBoltGraphStore(dbPath string) (*BoltGraphStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open BoltDB at %s: %w", dbPath, err)
	}

	store := &BoltGraphStore{db: db, path: dbPath}
	if err := store.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}
	return store, nil
}

func (b *BoltGraphStore) initBuckets() error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(graphsBucket))
		return err
	})
}

// SaveGraph stores a graph blob keyed by name.
func (b *BoltGraphStore) SaveGraph(ctx context.Context, name string, data *core.Matrix, graph *core.NNGraph, metric core.MetricID, metricParams core.MetricParams) error {
	blob := encodeGraph(data, graph, metric, metricParams)
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(graphsBucket))
		return bucket.Put([]byte(name), blob)
	})
}

// LoadGraph retrieves a previously saved graph.
func (b *BoltGraphStore) LoadGraph(ctx context.Context, name string) (*core.Matrix, *core.NNGraph, core.MetricID, core.MetricParams, error) {
	var data *core.Matrix
	var graph *core.NNGraph
	var metric core.MetricID
	var metricParams core.MetricParams

	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(graphsBucket))
		blob := bucket.Get([]byte(name))
		if blob == nil {
			return fmt.Errorf("graph %s not found", name)
		}
		buf := make([]byte, len(blob))
		copy(buf, blob)
		var err error
		data, graph, metric, metricParams, err = decodeGraph(buf)
		return err
	})
	if err != nil {
		return nil, nil, 0, core.MetricParams{}, err
	}
	return data, graph, metric, metricParams, nil
}

// DeleteGraph removes a stored graph.
func (b *BoltGraphStore) DeleteGraph(ctx context.Context, name string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(graphsBucket))
		if bucket.Get([]byte(name)) == nil {
			return fmt.Errorf("graph %s not found", name)
		}
		return bucket.Delete([]byte(name))
	})
}

// ListGraphs lists all stored graphs' metadata.
func (b *BoltGraphStore) ListGraphs(ctx context.Context) ([]GraphMeta, error) {
	var metas []GraphMeta
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(graphsBucket))
		return bucket.ForEach(func(k, v []byte) error {
			meta, err := decodeGraphMeta(string(k), v)
			if err != nil {
				return fmt.Errorf("failed to read metadata for %s: %w", string(k), err)
			}
			metas = append(metas, meta)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return metas, nil
}

// Close closes the BoltDB database.
func (b *BoltGraphStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
