// Package diskindex serves read-only searches over a memory-mapped
// .diskann file. It reuses the in-memory engine's search protocol
// through the shared provider surface; mutation is refused.
package diskindex

import (
	"encoding/binary"
	"math"
	"os"
	"sync"
	"syscall"
	"unsafe"

	"github.com/vecindex/internal/format"
	"github.com/vecindex/internal/index"
	"github.com/vecindex/pkg/errors"
)

// Index is a read-only index over a memory-mapped .diskann file. The
// mapping is shared read-only and released by Close.
type Index struct {
	path string
	hdr  format.Header

	mu   sync.RWMutex
	data []byte

	entryPoints []uint32
	// buildBeam overrides the stored build complexity as the default
	// search beam when positive.
	buildBeam int
	alpha     float32
}

// Open memory-maps the file at path and validates its header.
func Open(path string, buildBeamOverride int, alpha float32) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.CodeIO, "open index file", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(errors.CodeIO, "stat index file", err)
	}
	if st.Size() < format.HeaderSize {
		return nil, errors.Newf(errors.CodeMalformedInput, "file too short: %d bytes", st.Size())
	}

	data, err := syscall.Mmap(int(f.Fd()), 0, int(st.Size()),
		syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrap(errors.CodeIO, "mmap index file", err)
	}

	hdr, err := format.ParseHeader(data)
	if err != nil {
		_ = syscall.Munmap(data)
		return nil, err
	}
	if len(data) < hdr.TotalFileSize() {
		_ = syscall.Munmap(data)
		return nil, errors.Newf(errors.CodeMalformedInput,
			"file too short: have %d bytes, header describes %d", len(data), hdr.TotalFileSize())
	}

	eps := make([]uint32, hdr.NumEntryPoints)
	off := hdr.EntryPointsOffset()
	for i := range eps {
		eps[i] = binary.LittleEndian.Uint32(data[off+i*4:])
	}

	return &Index{
		path:        path,
		hdr:         hdr,
		data:        data,
		entryPoints: eps,
		buildBeam:   buildBeamOverride,
		alpha:       alpha,
	}, nil
}

// Close unmaps the file. The index must not be used afterwards.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.data == nil {
		return nil
	}
	err := syscall.Munmap(ix.data)
	ix.data = nil
	if err != nil {
		return errors.Wrap(errors.CodeIO, "munmap index file", err)
	}
	return nil
}

// Path returns the backing file path.
func (ix *Index) Path() string { return ix.path }

// Dimension returns the vector dimension.
func (ix *Index) Dimension() int { return int(ix.hdr.Dimension) }

// Metric returns the distance metric.
func (ix *Index) Metric() index.Metric { return ix.hdr.Metric }

// MaxDegree returns the neighbor cap R.
func (ix *Index) MaxDegree() int { return int(ix.hdr.MaxDegree) }

// Count returns the number of stored vectors.
func (ix *Index) Count() int { return int(ix.hdr.NumVectors) }

// BuildComplexity returns the effective construction beam width.
func (ix *Index) BuildComplexity() int {
	if ix.buildBeam > 0 {
		return ix.buildBeam
	}
	return int(ix.hdr.BuildComplexity)
}

// Alpha returns the robust-prune factor supplied at load time.
func (ix *Index) Alpha() float32 { return ix.alpha }

// ReadOnly reports whether the index rejects mutation; always true.
func (ix *Index) ReadOnly() bool { return true }

// EntryPoints returns a copy of the entry point set.
func (ix *Index) EntryPoints() []uint32 {
	out := make([]uint32, len(ix.entryPoints))
	copy(out, ix.entryPoints)
	return out
}

// VectorAt returns the mapped float32 row for id.
func (ix *Index) VectorAt(id uint32, _ []float32) ([]float32, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.data == nil || int(id) >= ix.Count() {
		return nil, false
	}
	off := ix.hdr.VectorsOffset() + int(id)*ix.Dimension()*4
	row := unsafe.Slice((*float32)(unsafe.Pointer(&ix.data[off])), ix.Dimension())
	return row, true
}

// NeighborsAt appends the adjacency row of id to buf, stopping at the
// first sentinel slot.
func (ix *Index) NeighborsAt(id uint32, buf []uint32) []uint32 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.data == nil || int(id) >= ix.Count() {
		return buf
	}
	deg := ix.MaxDegree()
	off := ix.hdr.AdjacencyOffset() + int(id)*deg*4
	for j := 0; j < deg; j++ {
		v := binary.LittleEndian.Uint32(ix.data[off+j*4:])
		if v == format.Sentinel {
			break
		}
		buf = append(buf, v)
	}
	return buf
}

// GetVector returns a copy of the vector stored at label.
func (ix *Index) GetVector(label uint32) ([]float32, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.data == nil || int(label) >= ix.Count() {
		return nil, errors.Newf(errors.CodeNotFound, "label %d out of range", label)
	}
	dim := ix.Dimension()
	off := ix.hdr.VectorsOffset() + int(label)*dim*4
	out := make([]float32, dim)
	for d := range out {
		out[d] = math.Float32frombits(binary.LittleEndian.Uint32(ix.data[off+d*4:]))
	}
	return out, nil
}

// Add always fails: disk-backed indexes are immutable.
func (ix *Index) Add(_ []float32) (uint32, error) {
	return 0, errors.Newf(errors.CodeReadOnly, "index loaded from %s is read-only", ix.path)
}

// Search returns up to k nearest neighbors of query, closest first,
// with caller-facing distances.
func (ix *Index) Search(query []float32, k, beam int) ([]index.Neighbor, error) {
	if len(query) != ix.Dimension() {
		return nil, errors.Newf(errors.CodeInvalidArgument,
			"expected dimension %d, got %d", ix.Dimension(), len(query))
	}
	if k < 0 {
		return nil, errors.Newf(errors.CodeInvalidArgument, "k must be non-negative, got %d", k)
	}
	if k == 0 {
		return nil, nil
	}
	if beam <= 0 {
		beam = ix.BuildComplexity()
	}
	results := index.Search(ix, query, k, beam)
	for i := range results {
		results[i].Distance = index.SurfaceDistance(ix.Metric(), results[i].Distance)
	}
	return results, nil
}
