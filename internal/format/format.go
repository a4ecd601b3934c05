// Package format implements the binary .diskann index file layout.
//
// Layout (v2, little-endian, 32-byte header):
//
//	[Header: 32 bytes]
//	  magic "DANN" | version u32 (=2) | num_vectors u32 | dimension u32
//	  max_degree u32 | num_entry_points u32 | metric u8 | pad [3]u8
//	  build_complexity u32
//	[Entry point ids: num_entry_points * u32]
//	[Vectors: num_vectors * dimension * f32, id-major]
//	[Adjacency: num_vectors * max_degree * u32, sentinel-padded]
package format

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/vecindex/internal/index"
	"github.com/vecindex/pkg/errors"
)

const (
	// Magic identifies a .diskann file.
	Magic = "DANN"
	// Version is the supported format version.
	Version = 2
	// HeaderSize is the fixed header length in bytes.
	HeaderSize = 32
	// Sentinel pads unused adjacency slots.
	Sentinel = uint32(0xFFFFFFFF)
)

// Header is the fixed-size .diskann file header.
type Header struct {
	NumVectors      uint32
	Dimension       uint32
	MaxDegree       uint32
	NumEntryPoints  uint32
	Metric          index.Metric
	BuildComplexity uint32
}

// EntryPointsOffset returns the byte offset of the entry point segment.
func (h Header) EntryPointsOffset() int { return HeaderSize }

// VectorsOffset returns the byte offset of the vector segment.
func (h Header) VectorsOffset() int {
	return h.EntryPointsOffset() + int(h.NumEntryPoints)*4
}

// AdjacencyOffset returns the byte offset of the adjacency segment.
func (h Header) AdjacencyOffset() int {
	return h.VectorsOffset() + int(h.NumVectors)*int(h.Dimension)*4
}

// TotalFileSize returns the expected file size in bytes.
func (h Header) TotalFileSize() int {
	return h.AdjacencyOffset() + int(h.NumVectors)*int(h.MaxDegree)*4
}

// Marshal encodes the header into its 32-byte wire form.
func (h Header) Marshal() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], Magic)
	binary.LittleEndian.PutUint32(buf[4:8], Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.NumVectors)
	binary.LittleEndian.PutUint32(buf[12:16], h.Dimension)
	binary.LittleEndian.PutUint32(buf[16:20], h.MaxDegree)
	binary.LittleEndian.PutUint32(buf[20:24], h.NumEntryPoints)
	buf[24] = byte(h.Metric)
	// buf[25:28] reserved, zero
	binary.LittleEndian.PutUint32(buf[28:32], h.BuildComplexity)
	return buf
}

// ParseHeader decodes and validates a header. Unknown magic or version
// is refused.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, errors.Newf(errors.CodeMalformedInput, "file too short for header: %d bytes", len(buf))
	}
	if string(buf[0:4]) != Magic {
		return Header{}, errors.Newf(errors.CodeMalformedInput, "bad magic %q", buf[0:4])
	}
	if v := binary.LittleEndian.Uint32(buf[4:8]); v != Version {
		return Header{}, errors.Newf(errors.CodeMalformedInput, "unsupported version %d", v)
	}
	h := Header{
		NumVectors:      binary.LittleEndian.Uint32(buf[8:12]),
		Dimension:       binary.LittleEndian.Uint32(buf[12:16]),
		MaxDegree:       binary.LittleEndian.Uint32(buf[16:20]),
		NumEntryPoints:  binary.LittleEndian.Uint32(buf[20:24]),
		BuildComplexity: binary.LittleEndian.Uint32(buf[28:32]),
	}
	switch buf[24] {
	case 1:
		h.Metric = index.MetricIP
	default:
		h.Metric = index.MetricL2
	}
	return h, nil
}

// Source is what Write needs from an index: the read surface plus the
// raw float32 vectors.
type Source interface {
	Dimension() int
	Metric() index.Metric
	MaxDegree() int
	BuildComplexity() int
	Count() int
	EntryPoints() []uint32
	GetVector(label uint32) ([]float32, error)
	NeighborsAt(id uint32, buf []uint32) []uint32
}

// Write emits a complete .diskann image of src.
func Write(w io.Writer, src Source) error {
	eps := src.EntryPoints()
	h := Header{
		NumVectors:      uint32(src.Count()),
		Dimension:       uint32(src.Dimension()),
		MaxDegree:       uint32(src.MaxDegree()),
		NumEntryPoints:  uint32(len(eps)),
		Metric:          src.Metric(),
		BuildComplexity: uint32(src.BuildComplexity()),
	}
	if _, err := w.Write(h.Marshal()); err != nil {
		return errors.Wrap(errors.CodeIO, "write header", err)
	}

	u32 := make([]byte, 4)
	for _, ep := range eps {
		binary.LittleEndian.PutUint32(u32, ep)
		if _, err := w.Write(u32); err != nil {
			return errors.Wrap(errors.CodeIO, "write entry points", err)
		}
	}

	dim := src.Dimension()
	row := make([]byte, dim*4)
	for id := 0; id < src.Count(); id++ {
		vec, err := src.GetVector(uint32(id))
		if err != nil {
			return err
		}
		for d, v := range vec {
			binary.LittleEndian.PutUint32(row[d*4:], math.Float32bits(v))
		}
		if _, err := w.Write(row); err != nil {
			return errors.Wrap(errors.CodeIO, "write vectors", err)
		}
	}

	deg := src.MaxDegree()
	adjRow := make([]byte, deg*4)
	var nbuf []uint32
	for id := 0; id < src.Count(); id++ {
		nbuf = src.NeighborsAt(uint32(id), nbuf[:0])
		if err := WriteAdjacencyRow(w, adjRow, nbuf, deg); err != nil {
			return err
		}
	}
	return nil
}

// WriteAdjacencyRow writes one fixed-width adjacency row, truncated to
// deg entries and padded with the sentinel. scratch must be deg*4 bytes.
func WriteAdjacencyRow(w io.Writer, scratch []byte, neighbors []uint32, deg int) error {
	n := len(neighbors)
	if n > deg {
		n = deg
	}
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(scratch[i*4:], neighbors[i])
	}
	for i := n; i < deg; i++ {
		binary.LittleEndian.PutUint32(scratch[i*4:], Sentinel)
	}
	if _, err := w.Write(scratch[:deg*4]); err != nil {
		return errors.Wrap(errors.CodeIO, "write adjacency", err)
	}
	return nil
}

// WriteFile writes src to path through a buffered writer.
func WriteFile(path string, src Source) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.CodeIO, "create index file", err)
	}
	defer f.Close()

	bw := bufio.NewWriterSize(f, 1<<20)
	if err := Write(bw, src); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrap(errors.CodeIO, "flush index file", err)
	}
	return nil
}

// Image is a fully decoded .diskann file.
type Image struct {
	Header      Header
	EntryPoints []uint32
	// Vectors is the flat id-major float32 segment.
	Vectors []float32
	// Adjacency holds one trimmed neighbor list per id; the sentinel
	// and anything after it are dropped.
	Adjacency [][]uint32
}

// Decode parses a complete .diskann image from buf.
func Decode(buf []byte) (*Image, error) {
	h, err := ParseHeader(buf)
	if err != nil {
		return nil, err
	}
	if len(buf) < h.TotalFileSize() {
		return nil, errors.Newf(errors.CodeMalformedInput,
			"file too short: have %d bytes, header describes %d", len(buf), h.TotalFileSize())
	}

	img := &Image{Header: h}

	img.EntryPoints = make([]uint32, h.NumEntryPoints)
	off := h.EntryPointsOffset()
	for i := range img.EntryPoints {
		img.EntryPoints[i] = binary.LittleEndian.Uint32(buf[off+i*4:])
	}

	n := int(h.NumVectors)
	dim := int(h.Dimension)
	img.Vectors = make([]float32, n*dim)
	off = h.VectorsOffset()
	for i := range img.Vectors {
		img.Vectors[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[off+i*4:]))
	}

	deg := int(h.MaxDegree)
	img.Adjacency = make([][]uint32, n)
	off = h.AdjacencyOffset()
	for i := 0; i < n; i++ {
		row := make([]uint32, 0, deg)
		for j := 0; j < deg; j++ {
			v := binary.LittleEndian.Uint32(buf[off+(i*deg+j)*4:])
			if v == Sentinel {
				break
			}
			row = append(row, v)
		}
		img.Adjacency[i] = row
	}
	return img, nil
}
