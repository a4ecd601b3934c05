package index

import (
	"sync"
	"sync/atomic"

	"github.com/vecindex/pkg/errors"
	"github.com/vecindex/pkg/utils"
)

// Index is a writable in-memory vector index. Labels are assigned
// monotonically starting at 0 and are never reused. The graph engine is
// materialized by the first insertion.
type Index struct {
	name   string
	dim    int
	metric Metric
	cfg    GraphConfig

	store *VectorStore
	adj   *AdjacencyStore

	mu    sync.RWMutex
	graph *Graph

	next   atomic.Uint32
	logger utils.Logger
}

// New creates an empty named index.
func New(name string, dim int, metric Metric, cfg GraphConfig, logger utils.Logger) (*Index, error) {
	if dim <= 0 {
		return nil, errors.Newf(errors.CodeInvalidArgument, "dimension must be positive, got %d", dim)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	return &Index{
		name:   name,
		dim:    dim,
		metric: metric,
		cfg:    cfg,
		store:  NewVectorStore(dim),
		adj:    NewAdjacencyStore(),
		logger: logger,
	}, nil
}

// NewDetached creates an anonymous index for staging outside the registry.
func NewDetached(dim int, metric Metric, cfg GraphConfig) (*Index, error) {
	return New("", dim, metric, cfg, nil)
}

// Name returns the index name; empty for detached indexes.
func (ix *Index) Name() string { return ix.name }

// Dimension returns the vector dimension.
func (ix *Index) Dimension() int { return ix.dim }

// Metric returns the distance metric.
func (ix *Index) Metric() Metric { return ix.metric }

// Config returns the construction parameters.
func (ix *Index) Config() GraphConfig { return ix.cfg }

// MaxDegree returns the neighbor cap R.
func (ix *Index) MaxDegree() int { return ix.cfg.MaxDegree }

// BuildComplexity returns the construction beam width.
func (ix *Index) BuildComplexity() int { return ix.cfg.BuildComplexity }

// Alpha returns the robust-prune factor.
func (ix *Index) Alpha() float32 { return ix.cfg.Alpha }

// ReadOnly reports whether the index rejects mutation; always false for
// the in-memory index.
func (ix *Index) ReadOnly() bool { return false }

// Count returns the number of stored vectors.
func (ix *Index) Count() int { return ix.store.Len() }

// NextLabel returns the label the next insertion will receive.
func (ix *Index) NextLabel() uint32 { return ix.next.Load() }

// EntryPoints returns the search entry point set; empty until the first
// insertion.
func (ix *Index) EntryPoints() []uint32 {
	ix.mu.RLock()
	g := ix.graph
	ix.mu.RUnlock()
	if g == nil {
		return nil
	}
	return g.EntryPoints()
}

// VectorAt resolves the search representation for id.
func (ix *Index) VectorAt(id uint32, scratch []float32) ([]float32, bool) {
	return ix.store.RowFor(id, scratch)
}

// NeighborsAt appends the adjacency list of id to buf.
func (ix *Index) NeighborsAt(id uint32, buf []uint32) []uint32 {
	return ix.adj.AppendTo(id, buf)
}

// ensureGraph materializes the graph engine on first use.
func (ix *Index) ensureGraph() *Graph {
	ix.mu.RLock()
	g := ix.graph
	ix.mu.RUnlock()
	if g != nil {
		return g
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.graph == nil {
		ix.graph = NewGraph(ix.cfg, ix.metric, ix.store, ix.adj)
	}
	return ix.graph
}

// Add inserts a vector and returns its assigned label. The label counter
// is fetched atomically before any mutation; concurrent adds receive
// distinct, increasing labels.
func (ix *Index) Add(vec []float32) (uint32, error) {
	if len(vec) != ix.dim {
		return 0, errors.Newf(errors.CodeInvalidArgument, "expected dimension %d, got %d", ix.dim, len(vec))
	}

	label := ix.next.Add(1) - 1
	var insertErr error
	runOnScheduler(func() {
		if err := ix.store.Set(label, vec); err != nil {
			insertErr = err
			return
		}
		ix.ensureGraph().Insert(label, vec)
		ix.adj.PutIfAbsent(label)
	})
	if insertErr != nil {
		return 0, insertErr
	}
	return label, nil
}

// Search returns up to k nearest neighbors of query, closest first.
// beam <= 0 uses the build complexity. Distances are caller-facing:
// squared L2, or true inner product for IP.
func (ix *Index) Search(query []float32, k, beam int) ([]Neighbor, error) {
	if len(query) != ix.dim {
		return nil, errors.Newf(errors.CodeInvalidArgument, "expected dimension %d, got %d", ix.dim, len(query))
	}
	if k < 0 {
		return nil, errors.Newf(errors.CodeInvalidArgument, "k must be non-negative, got %d", k)
	}
	if k == 0 || ix.store.Len() == 0 {
		return nil, nil
	}
	if beam <= 0 {
		beam = ix.cfg.BuildComplexity
	}

	var results []Neighbor
	runOnScheduler(func() {
		results = Search(ix, query, k, beam)
	})
	for i := range results {
		results[i].Distance = SurfaceDistance(ix.metric, results[i].Distance)
	}
	return results, nil
}

// GetVector returns a copy of the vector stored at label, consulting the
// float32 store first and the quantized store second.
func (ix *Index) GetVector(label uint32) ([]float32, error) {
	if row := ix.store.Get(label); row != nil {
		out := make([]float32, len(row))
		copy(out, row)
		return out, nil
	}
	out := make([]float32, ix.dim)
	if ix.store.Dequantize(label, out) {
		return out, nil
	}
	return nil, errors.Newf(errors.CodeNotFound, "label %d out of range", label)
}

// Quantize applies one-shot SQ8 encoding to the vector store. Search
// transparently uses the quantized representation afterwards.
func (ix *Index) Quantize() {
	ix.store.Quantize()
}

// Quantized reports whether SQ8 encoding is active.
func (ix *Index) Quantized() bool { return ix.store.Quantized() }
