package index

import (
	"sort"
	"sync"

	"github.com/vecindex/pkg/collections"
)

// Graph is a Vamana-style proximity graph over a vector store. Inserts
// may run concurrently; each insert holds short write locks only while
// mutating a single adjacency entry.
type Graph struct {
	cfg    GraphConfig
	metric Metric
	store  *VectorStore
	adj    *AdjacencyStore

	epMu        sync.RWMutex
	entryPoints []uint32
}

// NewGraph creates an empty graph over the given stores.
func NewGraph(cfg GraphConfig, metric Metric, store *VectorStore, adj *AdjacencyStore) *Graph {
	return &Graph{
		cfg:    cfg,
		metric: metric,
		store:  store,
		adj:    adj,
	}
}

// Provider read surface.

// Dimension returns the vector dimension.
func (g *Graph) Dimension() int { return g.store.Dimension() }

// Metric returns the distance metric.
func (g *Graph) Metric() Metric { return g.metric }

// MaxDegree returns the neighbor cap R.
func (g *Graph) MaxDegree() int { return g.cfg.MaxDegree }

// Count returns the number of stored vectors.
func (g *Graph) Count() int { return g.store.Len() }

// EntryPoints returns a copy of the current entry point set.
func (g *Graph) EntryPoints() []uint32 {
	g.epMu.RLock()
	defer g.epMu.RUnlock()
	out := make([]uint32, len(g.entryPoints))
	copy(out, g.entryPoints)
	return out
}

// AddEntryPoint registers an additional search entry point.
func (g *Graph) AddEntryPoint(id uint32) {
	g.epMu.Lock()
	defer g.epMu.Unlock()
	for _, ep := range g.entryPoints {
		if ep == id {
			return
		}
	}
	g.entryPoints = append(g.entryPoints, id)
}

// VectorAt resolves the search representation for id.
func (g *Graph) VectorAt(id uint32, scratch []float32) ([]float32, bool) {
	return g.store.RowFor(id, scratch)
}

// NeighborsAt appends the adjacency list of id to buf.
func (g *Graph) NeighborsAt(id uint32, buf []uint32) []uint32 {
	return g.adj.AppendTo(id, buf)
}

// Insert links a node whose vector is already present in the store at
// id. The first node becomes the entry point; later nodes are linked by
// greedy search, robust prune and back-edge maintenance.
func (g *Graph) Insert(id uint32, vec []float32) {
	g.epMu.Lock()
	if len(g.entryPoints) == 0 {
		g.entryPoints = append(g.entryPoints, id)
		g.epMu.Unlock()
		g.adj.PutIfAbsent(id)
		return
	}
	g.epMu.Unlock()

	_, visited := searchGraph(g, vec, g.cfg.MaxDegree, g.cfg.BuildComplexity, true)

	sort.Slice(visited, func(i, j int) bool {
		if visited[i].Distance != visited[j].Distance {
			return visited[i].Distance < visited[j].Distance
		}
		return visited[i].ID < visited[j].ID
	})
	if limit := g.cfg.MaxDegree + g.cfg.DegreeSlack; len(visited) > limit {
		visited = visited[:limit]
	}

	neighbors := g.robustPrune(id, vec, visited)
	g.adj.Set(id, neighbors)

	for _, m := range neighbors {
		g.adj.Update(m, func(list []uint32) []uint32 {
			for _, x := range list {
				if x == id {
					return list
				}
			}
			list = append(list, id)
			if len(list) <= g.cfg.MaxDegree {
				return list
			}
			return g.pruneNeighborList(m, list)
		})
	}
}

// robustPrune selects up to MaxDegree diverse neighbors for a node with
// vector vec from candidates sorted by increasing distance. A candidate
// is admitted only when no already-admitted neighbor occludes it within
// factor Alpha.
func (g *Graph) robustPrune(self uint32, vec []float32, candidates []Neighbor) []uint32 {
	out := make([]uint32, 0, g.cfg.MaxDegree)
	outVecs := make([][]float32, 0, g.cfg.MaxDegree)
	scratch := make([]float32, g.store.Dimension())

	for _, c := range candidates {
		if c.ID == self {
			continue
		}
		cvec, ok := g.store.RowFor(c.ID, scratch)
		if !ok {
			continue
		}
		admit := true
		for _, avec := range outVecs {
			if c.Distance*g.cfg.Alpha > Distance(g.metric, cvec, avec) {
				admit = false
				break
			}
		}
		if !admit {
			continue
		}
		kept := make([]float32, len(cvec))
		copy(kept, cvec)
		out = append(out, c.ID)
		outVecs = append(outVecs, kept)
		if len(out) == g.cfg.MaxDegree {
			break
		}
	}
	return out
}

// pruneNeighborList re-prunes an over-full adjacency list of node m.
func (g *Graph) pruneNeighborList(m uint32, list []uint32) []uint32 {
	scratch := make([]float32, g.store.Dimension())
	mvec, ok := g.store.RowFor(m, scratch)
	if !ok {
		if len(list) > g.cfg.MaxDegree {
			return list[:g.cfg.MaxDegree]
		}
		return list
	}
	base := make([]float32, len(mvec))
	copy(base, mvec)

	cands := make([]Neighbor, 0, len(list))
	cscratch := make([]float32, g.store.Dimension())
	for _, x := range list {
		if x == m {
			continue
		}
		xvec, ok := g.store.RowFor(x, cscratch)
		if !ok {
			continue
		}
		cands = append(cands, Neighbor{ID: x, Distance: Distance(g.metric, base, xvec)})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].Distance != cands[j].Distance {
			return cands[i].Distance < cands[j].Distance
		}
		return cands[i].ID < cands[j].ID
	})
	return g.robustPrune(m, base, cands)
}

// Search runs greedy best-first search over any provider and returns
// the k best internal-distance results, sorted ascending.
func Search(p Provider, query []float32, k, beam int) []Neighbor {
	top, _ := searchGraph(p, query, k, beam, false)
	return top
}

type searchCandidate struct {
	Neighbor
	visited bool
}

// searchGraph is the shared greedy search. When collectVisited is set it
// also returns every expanded node with its distance, for use as the
// insert-time candidate pool.
func searchGraph(p Provider, query []float32, k, beam int, collectVisited bool) ([]Neighbor, []Neighbor) {
	count := p.Count()
	if count == 0 || (k <= 0 && !collectVisited) {
		return nil, nil
	}

	limit := beam
	if limit < k {
		limit = k
	}
	if limit < 1 {
		limit = 1
	}

	sp := collections.GetFloat32Slice()
	scratch := *sp
	if cap(scratch) < p.Dimension() {
		scratch = make([]float32, p.Dimension())
	} else {
		scratch = scratch[:p.Dimension()]
	}
	defer func() {
		*sp = scratch
		collections.PutFloat32Slice(sp)
	}()

	// Single node: answer directly without touching the graph.
	if count == 1 && !collectVisited {
		vec, ok := p.VectorAt(0, scratch)
		if !ok {
			return nil, nil
		}
		d := Distance(p.Metric(), query, vec)
		return []Neighbor{{ID: 0, Distance: d}}, nil
	}

	seen := collections.NewBitset(count)
	frontier := make([]searchCandidate, 0, limit+1)

	insert := func(n Neighbor) {
		if len(frontier) == limit && n.Distance >= frontier[len(frontier)-1].Distance {
			return
		}
		pos := sort.Search(len(frontier), func(i int) bool {
			if frontier[i].Distance != n.Distance {
				return frontier[i].Distance > n.Distance
			}
			return frontier[i].ID > n.ID
		})
		frontier = append(frontier, searchCandidate{})
		copy(frontier[pos+1:], frontier[pos:])
		frontier[pos] = searchCandidate{Neighbor: n}
		if len(frontier) > limit {
			frontier = frontier[:limit]
		}
	}

	for _, ep := range p.EntryPoints() {
		if int(ep) >= count || seen.Test(int(ep)) {
			continue
		}
		seen.Set(int(ep))
		vec, ok := p.VectorAt(ep, scratch)
		if !ok {
			continue
		}
		insert(Neighbor{ID: ep, Distance: Distance(p.Metric(), query, vec)})
	}

	np := collections.GetUint32Slice()
	nbuf := *np
	defer func() {
		*np = nbuf
		collections.PutUint32Slice(np)
	}()

	var visited []Neighbor
	for {
		next := -1
		for i := range frontier {
			if !frontier[i].visited {
				next = i
				break
			}
		}
		if next == -1 {
			break
		}
		frontier[next].visited = true
		cur := frontier[next].Neighbor
		if collectVisited {
			visited = append(visited, cur)
		}

		nbuf = p.NeighborsAt(cur.ID, nbuf[:0])
		for _, m := range nbuf {
			if int(m) >= count || seen.Test(int(m)) {
				continue
			}
			seen.Set(int(m))
			vec, ok := p.VectorAt(m, scratch)
			if !ok {
				continue
			}
			insert(Neighbor{ID: m, Distance: Distance(p.Metric(), query, vec)})
		}
	}

	n := k
	if n > len(frontier) {
		n = len(frontier)
	}
	if n < 0 {
		n = 0
	}
	top := make([]Neighbor, n)
	for i := 0; i < n; i++ {
		top[i] = frontier[i].Neighbor
	}
	return top, visited
}
