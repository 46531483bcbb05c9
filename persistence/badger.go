package persistence

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/nndescent/nndescent/core"
)

const graphKeyPrefix = "g:"

// BadgerGraphStore implements GraphStore using BadgerDB.
type BadgerGraphStore struct {
	db   *badger.DB
	path string
}

// NewBadgerGraphStore opens (creating if necessary) a BadgerDB-backed graph
// store at dbPath.
func NewBadgerGraphStore(dbPath string) (*BadgerGraphStore, error) {
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dbPath, err)
	}

	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", dbPath, err)
	}
	return &BadgerGraphStore{db: db, path: dbPath}, nil
}

func graphKey(name string) []byte { return []byte(graphKeyPrefix + name) }

// SaveGraph stores a graph blob keyed by name.
func (b *BadgerGraphStore) SaveGraph(ctx context.Context, name string, data *core.Matrix, graph *core.NNGraph, metric core.MetricID, metricParams core.MetricParams) error {
	blob := encodeGraph(data, graph, metric, metricParams)
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(graphKey(name), blob)
	})
}

// LoadGraph retrieves a previously saved graph.
func (b *BadgerGraphStore) LoadGraph(ctx context.Context, name string) (*core.Matrix, *core.NNGraph, core.MetricID, core.MetricParams, error) {
	var data *core.Matrix
	var graph *core.NNGraph
	var metric core.MetricID
	var metricParams core.MetricParams

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(graphKey(name))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return fmt.Errorf("graph %s not found", name)
			}
			return err
		}
		return item.Value(func(val []byte) error {
			buf := make([]byte, len(val))
			copy(buf, val)
			var decodeErr error
			data, graph, metric, metricParams, decodeErr = decodeGraph(buf)
			return decodeErr
		})
	})
	if err != nil {
		return nil, nil, 0, core.MetricParams{}, err
	}
	return data, graph, metric, metricParams, nil
}

// DeleteGraph removes a stored graph.
func (b *BadgerGraphStore) DeleteGraph(ctx context.Context, name string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(graphKey(name)); err != nil {
			if err == badger.ErrKeyNotFound {
				return fmt.Errorf("graph %s not found", name)
			}
			return err
		}
		return txn.Delete(graphKey(name))
	})
}

// ListGraphs lists all stored graphs' metadata.
func (b *BadgerGraphStore) ListGraphs(ctx context.Context) ([]GraphMeta, error) {
	var metas []GraphMeta
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(graphKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			name := strings.TrimPrefix(string(item.Key()), graphKeyPrefix)
			err := item.Value(func(val []byte) error {
				meta, err := decodeGraphMeta(name, val)
				if err != nil {
					return fmt.Errorf("failed to read metadata for %s: %w", name, err)
				}
				metas = append(metas, meta)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return metas, nil
}

// Close closes the BadgerDB database.
func (b *BadgerGraphStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
