package index

// Distances are always "smaller is closer": L2 is squared Euclidean and
// IP is the negated inner product. Callers that surface IP results must
// negate them back at the boundary.

// L2Distance returns the squared Euclidean distance between a and b.
func L2Distance(a, b []float32) float32 {
	var sum float32
	for i, x := range a {
		d := x - b[i]
		sum += d * d
	}
	return sum
}

// InnerProduct returns the inner product of a and b.
func InnerProduct(a, b []float32) float32 {
	var sum float32
	for i, x := range a {
		sum += x * b[i]
	}
	return sum
}

// Distance computes the internal distance between a and b under metric.
func Distance(metric Metric, a, b []float32) float32 {
	if metric == MetricIP {
		return -InnerProduct(a, b)
	}
	return L2Distance(a, b)
}

// BatchDistances computes internal distances from query to n candidate
// rows stored contiguously in candidates (n * dim floats), writing them
// into out (len >= n).
func BatchDistances(metric Metric, query []float32, candidates []float32, n int, out []float32) {
	dim := len(query)
	for i := 0; i < n; i++ {
		out[i] = Distance(metric, query, candidates[i*dim:(i+1)*dim])
	}
}

// SurfaceDistance converts an internal distance to the caller-facing
// value: squared L2 stays as is, negated IP flips back to the true
// inner product.
func SurfaceDistance(metric Metric, d float32) float32 {
	if metric == MetricIP {
		return -d
	}
	return d
}
