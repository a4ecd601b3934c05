// Package index implements the in-memory Vamana proximity-graph index:
// flat vector storage with optional SQ8 quantization, sharded adjacency
// lists, greedy best-first search and robust pruning.
package index

import (
	"strings"

	"github.com/vecindex/pkg/errors"
)

// Metric identifies the distance metric of an index.
type Metric uint8

const (
	// MetricL2 is squared Euclidean distance.
	MetricL2 Metric = 0
	// MetricIP is inner product, stored internally negated so that
	// smaller always means closer.
	MetricIP Metric = 1
)

// String returns the canonical metric name.
func (m Metric) String() string {
	switch m {
	case MetricIP:
		return "IP"
	default:
		return "L2"
	}
}

// ParseMetric parses a metric name. Accepted: "l2", "ip", "inner_product"
// (case-insensitive).
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(s) {
	case "l2":
		return MetricL2, nil
	case "ip", "inner_product":
		return MetricIP, nil
	default:
		return 0, errors.Newf(errors.CodeInvalidArgument, "unknown metric %q (supported: L2, IP)", s)
	}
}

// GraphConfig holds the construction parameters of a graph index.
type GraphConfig struct {
	// MaxDegree is the neighbor cap R per node.
	MaxDegree int
	// DegreeSlack is additive slack to MaxDegree while accumulating
	// prune candidates.
	DegreeSlack int
	// BuildComplexity is the beam width L used during construction.
	BuildComplexity int
	// Alpha is the robust-prune occlusion factor, >= 1.0.
	Alpha float32
}

// DefaultGraphConfig returns the default construction parameters.
func DefaultGraphConfig() GraphConfig {
	return GraphConfig{
		MaxDegree:       32,
		DegreeSlack:     16,
		BuildComplexity: 64,
		Alpha:           1.2,
	}
}

// Validate checks the config for usable values.
func (c GraphConfig) Validate() error {
	if c.MaxDegree <= 0 {
		return errors.Newf(errors.CodeInvalidArgument, "max_degree must be positive, got %d", c.MaxDegree)
	}
	if c.BuildComplexity <= 0 {
		return errors.Newf(errors.CodeInvalidArgument, "build_complexity must be positive, got %d", c.BuildComplexity)
	}
	if c.Alpha < 1.0 {
		return errors.Newf(errors.CodeInvalidArgument, "alpha must be >= 1.0, got %g", c.Alpha)
	}
	if c.DegreeSlack < 0 {
		return errors.Newf(errors.CodeInvalidArgument, "degree_slack must be non-negative, got %d", c.DegreeSlack)
	}
	return nil
}

// Neighbor is a (label, distance) search result. For L2 indexes the
// distance is squared Euclidean; for IP it is the true inner product.
type Neighbor struct {
	ID       uint32  `json:"label"`
	Distance float32 `json:"distance"`
}

// Provider is the read surface shared by the in-memory index and the
// memory-mapped disk index. Ids are dense in [0, Count).
type Provider interface {
	// Dimension returns the vector dimension.
	Dimension() int
	// Metric returns the distance metric.
	Metric() Metric
	// MaxDegree returns the neighbor cap R.
	MaxDegree() int
	// Count returns the number of stored vectors.
	Count() int
	// EntryPoints returns the search entry point ids.
	EntryPoints() []uint32
	// VectorAt writes the vector for id into scratch (len >= Dimension)
	// and returns it, or false if id is out of range. The returned slice
	// may alias scratch or internal storage.
	VectorAt(id uint32, scratch []float32) ([]float32, bool)
	// NeighborsAt appends the adjacency list of id to buf and returns it.
	NeighborsAt(id uint32, buf []uint32) []uint32
}
