// Package testutil provides utilities for testing.
package testutil

import (
	"encoding/binary"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/vecindex/internal/index"
)

// RandomVectors generates n deterministic pseudo-random vectors of the
// given dimension in [0, 1).
func RandomVectors(seed int64, n, dim int) [][]float32 {
	rng := rand.New(rand.NewSource(seed))
	vectors := make([][]float32, n)
	for i := range vectors {
		v := make([]float32, dim)
		for d := range v {
			v[d] = rng.Float32()
		}
		vectors[i] = v
	}
	return vectors
}

// WriteCorpusFile writes vectors as a streaming-builder input corpus:
// [u32 n][u32 dim][f32 data], little-endian. Returns the file path.
func WriteCorpusFile(t *testing.T, dir string, vectors [][]float32) string {
	t.Helper()
	if len(vectors) == 0 {
		t.Fatal("corpus must not be empty")
	}
	dim := len(vectors[0])

	path := filepath.Join(dir, "corpus.bin")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create corpus file: %v", err)
	}
	defer f.Close()

	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(vectors)))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(dim))
	if _, err := f.Write(hdr[:]); err != nil {
		t.Fatalf("failed to write corpus header: %v", err)
	}

	row := make([]byte, dim*4)
	for _, v := range vectors {
		for d, x := range v {
			binary.LittleEndian.PutUint32(row[d*4:], math.Float32bits(x))
		}
		if _, err := f.Write(row); err != nil {
			t.Fatalf("failed to write corpus row: %v", err)
		}
	}
	return path
}

// BruteForceKNN computes exact k-nearest-neighbors over vectors with
// caller-facing distances, for recall assertions.
func BruteForceKNN(metric index.Metric, vectors [][]float32, query []float32, k int) []index.Neighbor {
	results := make([]index.Neighbor, 0, len(vectors))
	for i, v := range vectors {
		results = append(results, index.Neighbor{
			ID:       uint32(i),
			Distance: index.Distance(metric, query, v),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > k {
		results = results[:k]
	}
	for i := range results {
		results[i].Distance = index.SurfaceDistance(metric, results[i].Distance)
	}
	return results
}
