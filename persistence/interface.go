package persistence

import (
	"context"

	"github.com/nndescent/nndescent/core"
)

// GraphMeta describes a stored graph without materializing its body, for
// listing.
type GraphMeta struct {
	Name   string
	N      int
	K      int
	Dim    int
	Metric core.MetricID
}

// GraphStore persists a built NN-Descent graph, the metric params it was
// built with, and the dataset it was built over, as row-major blobs with a
// small header, so a later process can reopen it and answer queries with
// the same metric params without rebuilding.
type GraphStore interface {
	SaveGraph(ctx context.Context, name string, data *core.Matrix, graph *core.NNGraph, metric core.MetricID, metricParams core.MetricParams) error
	LoadGraph(ctx context.Context, name string) (*core.Matrix, *core.NNGraph, core.MetricID, core.MetricParams, error)
	DeleteGraph(ctx context.Context, name string) error
	ListGraphs(ctx context.Context) ([]GraphMeta, error)
	Close() error
}

// Factory creates a GraphStore instance from a configuration.
type Factory interface {
	CreateGraphStore(cfg Config) (GraphStore, error)
}
