// Package builder constructs a .diskann index file from a flat binary
// corpus using a two-pass streaming approach: a pilot graph over a
// sample, then a single pass over the remaining vectors that links each
// one into the pilot and a growing secondary graph. Both graphs keep
// their vectors in memory, so by the end of the pass every corpus
// vector is held in RAM; the output's vector segment is copied straight
// from the input file.
package builder

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"os"
	"sort"

	"github.com/vecindex/internal/format"
	"github.com/vecindex/internal/index"
	"github.com/vecindex/pkg/errors"
	"github.com/vecindex/pkg/utils"
)

// copyBufferSize is the chunk size used to stream the vector segment
// from the input file into the output.
const copyBufferSize = 64 * 1024

// Params configures a streaming build.
type Params struct {
	Metric          index.Metric
	MaxDegree       int
	BuildComplexity int
	Alpha           float32
	// SampleSize is the pilot sample size; 0 derives
	// clamp(sqrt(N), 1000, N).
	SampleSize uint32
}

// Result reports what was built.
type Result struct {
	NumVectors uint32 `json:"num_vectors"`
	Dimension  uint32 `json:"dimension"`
	SampleSize uint32 `json:"sample_size"`
}

// corpusHeader is the input file header: [u32 num_vectors][u32 dimension].
type corpusHeader struct {
	numVectors uint32
	dimension  uint32
}

func readCorpusHeader(r io.Reader) (corpusHeader, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return corpusHeader{}, errors.Wrap(errors.CodeMalformedInput, "read corpus header", err)
	}
	return corpusHeader{
		numVectors: binary.LittleEndian.Uint32(buf[0:4]),
		dimension:  binary.LittleEndian.Uint32(buf[4:8]),
	}, nil
}

func readVector(r io.Reader, buf []byte, dst []float32) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		return errors.Wrap(errors.CodeMalformedInput, "read vector", err)
	}
	for d := range dst {
		dst[d] = math.Float32frombits(binary.LittleEndian.Uint32(buf[d*4:]))
	}
	return nil
}

// sampleSize derives the pilot sample size for n vectors.
func sampleSize(requested, n uint32) int {
	if requested > 0 {
		if requested > n {
			return int(n)
		}
		return int(requested)
	}
	s := int(math.Sqrt(float64(n)))
	if s < 1000 {
		s = 1000
	}
	if s > int(n) {
		s = int(n)
	}
	return s
}

// Build runs the two-pass streaming build from inputPath into a
// .diskann file at outputPath.
func Build(inputPath, outputPath string, p Params, logger utils.Logger) (*Result, error) {
	if logger == nil {
		logger = &utils.NullLogger{}
	}

	input, err := os.Open(inputPath)
	if err != nil {
		return nil, errors.Wrap(errors.CodeIO, "open input file", err)
	}
	defer input.Close()
	reader := bufio.NewReaderSize(input, 1<<20)

	hdr, err := readCorpusHeader(reader)
	if err != nil {
		return nil, err
	}
	if hdr.numVectors == 0 {
		return nil, errors.New(errors.CodeMalformedInput, "input file has 0 vectors")
	}
	if hdr.dimension == 0 {
		return nil, errors.New(errors.CodeMalformedInput, "input file has dimension 0")
	}

	n := int(hdr.numVectors)
	dim := int(hdr.dimension)
	deg := p.MaxDegree
	sampleN := sampleSize(p.SampleSize, hdr.numVectors)

	cfg := index.DefaultGraphConfig()
	cfg.MaxDegree = p.MaxDegree
	cfg.BuildComplexity = p.BuildComplexity
	cfg.Alpha = p.Alpha

	stopwatch := utils.NewStopwatch(nil, logger)

	// Pass 1: pilot graph over the sample prefix.
	stopwatch.Start("pilot")
	logger.Info("streaming build: pilot phase (%d of %d vectors)", sampleN, n)
	pilot, err := index.NewDetached(dim, p.Metric, cfg)
	if err != nil {
		return nil, err
	}

	rowBuf := make([]byte, dim*4)
	vec := make([]float32, dim)
	for i := 0; i < sampleN; i++ {
		if err := readVector(reader, rowBuf, vec); err != nil {
			return nil, err
		}
		if _, err := pilot.Add(vec); err != nil {
			return nil, err
		}
	}

	// Snapshot pilot adjacency, truncated to the output row width; the
	// rows stay mutable for back-edge injection.
	sampleAdj := make([][]uint32, sampleN)
	for i := 0; i < sampleN; i++ {
		row := pilot.NeighborsAt(uint32(i), nil)
		if len(row) > deg {
			row = row[:deg]
		}
		sampleAdj[i] = row
	}

	// Pass 2: stream remaining vectors against the pilot and a growing
	// secondary graph of previously streamed vectors.
	stopwatch.Start("stream")
	remaining := n - sampleN
	logger.Info("streaming build: stream phase (%d vectors)", remaining)
	secondary, err := index.NewDetached(dim, p.Metric, cfg)
	if err != nil {
		return nil, err
	}

	streamAdj := make([][]uint32, 0, remaining)
	for i := 0; i < remaining; i++ {
		if err := readVector(reader, rowBuf, vec); err != nil {
			return nil, err
		}

		pilotResults := index.Search(pilot, vec, deg, p.BuildComplexity)
		var streamResults []index.Neighbor
		if i > 0 {
			streamResults = index.Search(secondary, vec, deg, p.BuildComplexity)
		}

		combined := make([]index.Neighbor, 0, len(pilotResults)+len(streamResults))
		combined = append(combined, pilotResults...)
		for _, r := range streamResults {
			// Secondary labels are 0-based: global id = sampleN + label.
			combined = append(combined, index.Neighbor{
				ID:       uint32(sampleN) + r.ID,
				Distance: r.Distance,
			})
		}
		sortNeighbors(combined)
		neighbors := make([]uint32, 0, deg)
		seen := make(map[uint32]struct{}, len(combined))
		for _, c := range combined {
			if _, dup := seen[c.ID]; dup {
				continue
			}
			seen[c.ID] = struct{}{}
			neighbors = append(neighbors, c.ID)
			if len(neighbors) == deg {
				break
			}
		}
		streamAdj = append(streamAdj, neighbors)

		if _, err := secondary.Add(vec); err != nil {
			return nil, err
		}
	}

	// Back-edge injection: give every streaming vector one incoming edge
	// from a node that is already reachable.
	stopwatch.Start("backedges")
	injectBackEdges(sampleAdj, streamAdj, sampleN, deg)

	// Write the output file: header, pilot entry points, all vectors
	// copied straight from the input, then the padded adjacency rows.
	stopwatch.Start("write")
	logger.Info("streaming build: writing %s", outputPath)
	eps := pilot.EntryPoints()
	out := format.Header{
		NumVectors:      hdr.numVectors,
		Dimension:       hdr.dimension,
		MaxDegree:       uint32(deg),
		NumEntryPoints:  uint32(len(eps)),
		Metric:          p.Metric,
		BuildComplexity: uint32(p.BuildComplexity),
	}

	output, err := os.Create(outputPath)
	if err != nil {
		return nil, errors.Wrap(errors.CodeIO, "create output file", err)
	}
	defer output.Close()
	writer := bufio.NewWriterSize(output, 1<<20)

	if _, err := writer.Write(out.Marshal()); err != nil {
		return nil, errors.Wrap(errors.CodeIO, "write header", err)
	}
	var u32 [4]byte
	for _, ep := range eps {
		binary.LittleEndian.PutUint32(u32[:], ep)
		if _, err := writer.Write(u32[:]); err != nil {
			return nil, errors.Wrap(errors.CodeIO, "write entry points", err)
		}
	}

	if err := copyVectorSegment(inputPath, writer, n*dim*4); err != nil {
		return nil, err
	}

	adjRow := make([]byte, deg*4)
	for _, row := range sampleAdj {
		if err := format.WriteAdjacencyRow(writer, adjRow, row, deg); err != nil {
			return nil, err
		}
	}
	for _, row := range streamAdj {
		if err := format.WriteAdjacencyRow(writer, adjRow, row, deg); err != nil {
			return nil, err
		}
	}
	if err := writer.Flush(); err != nil {
		return nil, errors.Wrap(errors.CodeIO, "flush output file", err)
	}
	stopwatch.Stop()
	stopwatch.LogSummary()

	return &Result{
		NumVectors: hdr.numVectors,
		Dimension:  hdr.dimension,
		SampleSize: uint32(sampleN),
	}, nil
}

// injectBackEdges inserts each streaming vector's global id into the
// adjacency of one deterministic neighbor target: slot i mod |adj|
// picks the target, slot g mod R overwrites when the row is full.
func injectBackEdges(sampleAdj, streamAdj [][]uint32, sampleN, deg int) {
	for i := range streamAdj {
		adj := streamAdj[i]
		if len(adj) == 0 {
			continue
		}
		g := uint32(sampleN + i)
		target := adj[i%len(adj)]

		if int(target) < sampleN {
			row := sampleAdj[target]
			if len(row) < deg {
				sampleAdj[target] = append(row, g)
			} else {
				row[int(g)%deg] = g
			}
			continue
		}

		streamIdx := int(target) - sampleN
		if streamIdx >= len(streamAdj) || streamIdx == i {
			continue
		}
		row := streamAdj[streamIdx]
		if containsID(row, g) {
			continue
		}
		if len(row) < deg {
			streamAdj[streamIdx] = append(row, g)
		} else {
			row[int(g)%deg] = g
		}
	}
}

func containsID(list []uint32, id uint32) bool {
	for _, x := range list {
		if x == id {
			return true
		}
	}
	return false
}

// sortNeighbors orders candidates by (distance, id) so merges are
// deterministic across runs.
func sortNeighbors(list []index.Neighbor) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Distance != list[j].Distance {
			return list[i].Distance < list[j].Distance
		}
		return list[i].ID < list[j].ID
	})
}

// copyVectorSegment streams the vector bytes of the input corpus into w
// through a fixed-size copy buffer.
func copyVectorSegment(inputPath string, w io.Writer, totalBytes int) error {
	in, err := os.Open(inputPath)
	if err != nil {
		return errors.Wrap(errors.CodeIO, "reopen input file", err)
	}
	defer in.Close()
	if _, err := in.Seek(8, io.SeekStart); err != nil {
		return errors.Wrap(errors.CodeIO, "seek input file", err)
	}

	buf := make([]byte, copyBufferSize)
	reader := bufio.NewReaderSize(in, 1<<20)
	for totalBytes > 0 {
		chunk := totalBytes
		if chunk > len(buf) {
			chunk = len(buf)
		}
		if _, err := io.ReadFull(reader, buf[:chunk]); err != nil {
			return errors.Wrap(errors.CodeMalformedInput, "read vector segment", err)
		}
		if _, err := w.Write(buf[:chunk]); err != nil {
			return errors.Wrap(errors.CodeIO, "write vector segment", err)
		}
		totalBytes -= chunk
	}
	return nil
}
