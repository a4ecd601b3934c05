package index

import (
	"github.com/vecindex/pkg/errors"
	"github.com/vecindex/pkg/utils"
)

// Restore rebuilds a writable in-memory index from decoded file
// segments: flat id-major vectors, trimmed adjacency rows and entry
// points. The next label continues after the restored vectors.
func Restore(name string, metric Metric, cfg GraphConfig, dim int,
	vectors []float32, adjacency [][]uint32, entryPoints []uint32,
	logger utils.Logger) (*Index, error) {

	ix, err := New(name, dim, metric, cfg, logger)
	if err != nil {
		return nil, err
	}
	if len(vectors)%dim != 0 {
		return nil, errors.Newf(errors.CodeMalformedInput,
			"vector segment length %d is not a multiple of dimension %d", len(vectors), dim)
	}
	n := len(vectors) / dim
	if len(adjacency) != n {
		return nil, errors.Newf(errors.CodeMalformedInput,
			"adjacency rows %d do not match vector count %d", len(adjacency), n)
	}

	for i := 0; i < n; i++ {
		if err := ix.store.Set(uint32(i), vectors[i*dim:(i+1)*dim]); err != nil {
			return nil, err
		}
	}

	g := ix.ensureGraph()
	for i := 0; i < n; i++ {
		ix.adj.Set(uint32(i), adjacency[i])
	}
	for _, ep := range entryPoints {
		g.AddEntryPoint(ep)
	}
	ix.next.Store(uint32(n))
	return ix, nil
}
