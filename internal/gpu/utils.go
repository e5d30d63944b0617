package gpu

import (
	"gonum.org/v1/gonum/floats"
)

// Float32ToFloat64 converts a slice of float32 to float64
func Float32ToFloat64(input []float32) []float64 {
	output := make([]float64, len(input))
	for i, v := range input {
		output[i] = float64(v)
	}
	return output
}

// Checksum sums an output matrix. It lets runs on different devices be
// compared at a glance; it is not a correctness check.
func Checksum(out []float32) float64 {
	return floats.Sum(Float32ToFloat64(out))
}

// GFLOPS converts a successful sample into throughput for the given shape.
func GFLOPS(d Dimensions, s Sample) float64 {
	if !s.OK() || s.Millis == 0 {
		return 0
	}
	return d.FLOPs() / (s.Millis * 1e6)
}

// Speedup returns baseline/sample. The ratio is only computed when both
// samples succeeded with a positive duration; a sentinel never reaches the
// division.
func Speedup(baseline, sample Sample) (float64, bool) {
	if !baseline.OK() || !sample.OK() {
		return 0, false
	}
	if baseline.Millis <= 0 || sample.Millis <= 0 {
		return 0, false
	}
	return baseline.Millis / sample.Millis, true
}
