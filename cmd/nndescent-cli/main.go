// Command nndescent-cli builds or queries a graph directly against a
// persistence.GraphStore, without going through the HTTP API. It is meant
// for local experimentation and scripting.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/nndescent/nndescent/core"
	"github.com/nndescent/nndescent/nndescent"
	"github.com/nndescent/nndescent/persistence"
)

type dataFile struct {
	Data [][]float32 `json:"data"`
}

type queryFile struct {
	Queries [][]float32 `json:"queries"`
	Seed    []int32     `json:"seed"`
}

func main() {
	var (
		cmd      = flag.String("cmd", "build", "Subcommand: build or query")
		dbType   = flag.String("db", "bolt", "Graph store type: memory, bolt, badger")
		dbPath   = flag.String("path", "data/graph.db", "Graph store path")
		name     = flag.String("name", "default", "Graph name")
		input    = flag.String("input", "", "Path to a JSON file with the build or query payload")
		metric   = flag.String("metric", "euclidean", "Distance metric")
		k        = flag.Int("k", 10, "Neighbors per point (build)")
		kq       = flag.Int("kq", 10, "Neighbors per query (query)")
		epsilon  = flag.Float64("epsilon", 0.1, "Query slack factor")
		nIters   = flag.Int("n-iters", 0, "Override default NIters (0 = use default)")
		seedFlag = flag.Int64("seed", 0, "RNG seed")
		metricP  = flag.Float64("metric-p", 0, "Minkowski/weighted-minkowski p (build)")
		weights  = flag.String("weights", "", "Comma-separated weighted-minkowski weights (build)")
		variance = flag.String("variance", "", "Comma-separated standardised-euclidean variance (build)")
	)
	flag.Parse()

	if *input == "" {
		log.Fatal("missing -input")
	}

	ctx := context.Background()
	factory := persistence.NewDefaultFactory()
	store, err := factory.CreateGraphStore(persistence.Config{Type: persistence.Type(*dbType), Path: *dbPath})
	if err != nil {
		log.Fatalf("failed to open graph store: %v", err)
	}
	defer store.Close()

	switch *cmd {
	case "build":
		metricParams := core.MetricParams{
			P:        float32(*metricP),
			Weights:  parseFloat32List(*weights),
			Variance: parseFloat32List(*variance),
		}
		runBuild(ctx, store, *input, *name, *metric, *k, *nIters, *seedFlag, metricParams)
	case "query":
		runQuery(ctx, store, *input, *name, *kq, float32(*epsilon))
	default:
		log.Fatalf("unknown -cmd %q, want build or query", *cmd)
	}
}

// parseFloat32List parses a comma-separated list of floats, returning nil
// for an empty string.
func parseFloat32List(s string) []float32 {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			log.Fatalf("invalid float %q: %v", p, err)
		}
		out[i] = float32(v)
	}
	return out
}

func runBuild(ctx context.Context, store persistence.GraphStore, inputPath, name, metricName string, k, nIters int, seed int64, metricParams core.MetricParams) {
	raw, err := os.ReadFile(inputPath)
	if err != nil {
		log.Fatalf("failed to read input: %v", err)
	}
	var df dataFile
	if err := json.Unmarshal(raw, &df); err != nil {
		log.Fatalf("failed to parse input: %v", err)
	}
	if len(df.Data) == 0 {
		log.Fatal("input data must be nonempty")
	}

	metric, err := core.ParseMetric(metricName)
	if err != nil {
		log.Fatalf("invalid metric: %v", err)
	}

	dim := len(df.Data[0])
	data := core.NewMatrix(len(df.Data), dim)
	for i, row := range df.Data {
		if len(row) != dim {
			log.Fatalf("row %d has %d columns, want %d", i, len(row), dim)
		}
		for j, v := range row {
			data.Set(i, j, v)
		}
	}

	params := core.DefaultBuildParams()
	params.Metric = metric
	params.Seed = seed
	params.MetricParams = metricParams
	if nIters > 0 {
		params.NIters = nIters
	}

	builder, err := nndescent.NewBuilder(data, k, params)
	if err != nil {
		log.Fatalf("failed to create builder: %v", err)
	}

	seedGraph := nndescent.RandomSeed(data.Rows(), k, seed)
	graph, err := builder.Build(seedGraph)
	if err != nil {
		log.Fatalf("build failed: %v", err)
	}

	if err := store.SaveGraph(ctx, name, data, graph, metric, metricParams); err != nil {
		log.Fatalf("failed to save graph: %v", err)
	}

	fmt.Printf("built graph %q: n=%d k=%d dim=%d metric=%s\n", name, graph.N, graph.K, dim, metric)
}

func runQuery(ctx context.Context, store persistence.GraphStore, inputPath, name string, kq int, epsilon float32) {
	raw, err := os.ReadFile(inputPath)
	if err != nil {
		log.Fatalf("failed to read input: %v", err)
	}
	var qf queryFile
	if err := json.Unmarshal(raw, &qf); err != nil {
		log.Fatalf("failed to parse input: %v", err)
	}
	if len(qf.Queries) == 0 {
		log.Fatal("input queries must be nonempty")
	}
	if len(qf.Seed) == 0 {
		log.Fatal("input seed must be nonempty")
	}

	data, graph, metric, metricParams, err := store.LoadGraph(ctx, name)
	if err != nil {
		log.Fatalf("failed to load graph %q: %v", name, err)
	}

	querier, err := nndescent.NewQuerier(graph, data, metric, metricParams, kq, epsilon)
	if err != nil {
		log.Fatalf("failed to create querier: %v", err)
	}

	dim := len(qf.Queries[0])
	queries := core.NewMatrix(len(qf.Queries), dim)
	for i, row := range qf.Queries {
		if len(row) != dim {
			log.Fatalf("query row %d has %d columns, want %d", i, len(row), dim)
		}
		for j, v := range row {
			queries.Set(i, j, v)
		}
	}

	indices, distances, err := querier.QueryBatch(queries, qf.Seed)
	if err != nil {
		log.Fatalf("query failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]interface{}{
		"indices":   indices,
		"distances": distances,
	}); err != nil {
		log.Fatalf("failed to encode output: %v", err)
	}
}
