package index

import (
	"math"
	"sync"

	"github.com/vecindex/pkg/errors"
)

// SQ8Param holds the per-dimension affine dequantization parameters.
type SQ8Param struct {
	Min   float32
	Scale float32
}

// VectorStore holds vectors in a single contiguous float32 buffer laid
// out as id-major rows. An optional parallel SQ8 byte buffer carries the
// quantized encoding once Quantize has been called.
//
// A single writer lock guards growth and row writes; reads taken between
// writes see a consistent row because growth copies into a fresh backing
// array and rows are never partially published.
type VectorStore struct {
	dim int

	mu   sync.RWMutex
	data []float32

	quantized []uint8
	params    []SQ8Param
}

// NewVectorStore creates an empty store for vectors of the given dimension.
func NewVectorStore(dim int) *VectorStore {
	return &VectorStore{dim: dim}
}

// Dimension returns the vector dimension.
func (s *VectorStore) Dimension() int { return s.dim }

// Len returns the number of rows currently covered by the store.
func (s *VectorStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data) / s.dim
}

// Get returns the row for id, or nil if the store does not cover it.
// The returned slice stays valid after later growth.
func (s *VectorStore) Get(id uint32) []float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	off := int(id) * s.dim
	if off+s.dim > len(s.data) {
		return nil
	}
	return s.data[off : off+s.dim : off+s.dim]
}

// Set grows the buffer (zero-padded) to cover id and overwrites its row.
func (s *VectorStore) Set(id uint32, v []float32) error {
	if len(v) != s.dim {
		return errors.Newf(errors.CodeInvalidArgument, "expected dimension %d, got %d", s.dim, len(v))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	off := int(id) * s.dim
	if need := off + s.dim; need > len(s.data) {
		if need > cap(s.data) {
			grown := make([]float32, need, growCap(need, cap(s.data)))
			copy(grown, s.data)
			s.data = grown
		} else {
			s.data = s.data[:need]
		}
	}
	copy(s.data[off:off+s.dim], v)
	return nil
}

func growCap(need, old int) int {
	c := old * 2
	if c < need {
		c = need
	}
	return c
}

// Quantize walks the live prefix, computes per-dimension min/max and
// encodes every value into one byte. The float32 store is retained.
// One-shot and idempotent.
func (s *VectorStore) Quantize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quantized != nil {
		return
	}
	n := len(s.data) / s.dim
	if n == 0 {
		return
	}

	params := make([]SQ8Param, s.dim)
	for d := range params {
		params[d] = SQ8Param{Min: float32(math.Inf(1)), Scale: float32(math.Inf(-1))}
	}
	for i := 0; i < n; i++ {
		row := s.data[i*s.dim : (i+1)*s.dim]
		for d, v := range row {
			if v < params[d].Min {
				params[d].Min = v
			}
			if v > params[d].Scale {
				params[d].Scale = v
			}
		}
	}
	for d := range params {
		r := params[d].Scale - params[d].Min
		if r < 1.0 {
			r = 1.0
		}
		params[d].Scale = r
	}

	q := make([]uint8, n*s.dim)
	for i := 0; i < n; i++ {
		row := s.data[i*s.dim : (i+1)*s.dim]
		for d, v := range row {
			t := (v - params[d].Min) / params[d].Scale
			if t < 0 {
				t = 0
			} else if t > 1 {
				t = 1
			}
			q[i*s.dim+d] = uint8(math.Round(float64(t * 255)))
		}
	}

	s.params = params
	s.quantized = q
}

// Quantized reports whether SQ8 encoding has been applied.
func (s *VectorStore) Quantized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.quantized != nil
}

// Params returns the per-dimension SQ8 parameters, nil before Quantize.
func (s *VectorStore) Params() []SQ8Param {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}

// Dequantize decodes the SQ8 row for id into dst (len >= dim). Returns
// false if quantization is inactive or id is out of the quantized range.
func (s *VectorStore) Dequantize(id uint32, dst []float32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	off := int(id) * s.dim
	if s.quantized == nil || off+s.dim > len(s.quantized) {
		return false
	}
	row := s.quantized[off : off+s.dim]
	for d, q := range row {
		dst[d] = float32(q)/255*s.params[d].Scale + s.params[d].Min
	}
	return true
}

// RowFor resolves the representation search should use for id: the SQ8
// decoding when quantization covers the id, the float32 row otherwise.
// scratch must have room for one row.
func (s *VectorStore) RowFor(id uint32, scratch []float32) ([]float32, bool) {
	if s.Dequantize(id, scratch) {
		return scratch[:s.dim], true
	}
	if row := s.Get(id); row != nil {
		return row, true
	}
	return nil, false
}
