// Package median implements the GeometricMedian and MposteriorPrimitive
// collaborators: the Weiszfeld fixed-point iteration for the geometric
// median of a point set, and its generalization to weighted subset
// posteriors (the M-posterior consensus primitive used by the
// Mposterior exchange recipes and estimators). Grounded on
// original_source/smc/estimator.py's geometric_median function.
package median

import (
	"math"

	filter "github.com/pebbledata/dpf"
	"gonum.org/v1/gonum/mat"
)

// Weiszfeld is a GeometricMedianSolver implementing the Weiszfeld
// fixed-point iteration.
type Weiszfeld struct{}

// NewWeiszfeld returns a Weiszfeld solver.
func NewWeiszfeld() *Weiszfeld {
	return &Weiszfeld{}
}

// Median implements filter.GeometricMedianSolver.
func (w *Weiszfeld) Median(points *mat.Dense, maxIterations int, tolerance float64) (mat.Vector, error) {
	rows, cols := points.Dims()
	if cols == 0 {
		return nil, &filter.ConfigurationError{Msg: "median: no points supplied"}
	}

	estimate := initialEstimate(points)

	for iter := 0; iter < maxIterations; iter++ {
		norms := make([]float64, cols)
		var zeroCol = -1
		for c := 0; c < cols; c++ {
			sumSq := 0.0
			for r := 0; r < rows; r++ {
				d := points.At(r, c) - estimate.AtVec(r)
				sumSq += d * d
			}
			norms[c] = math.Sqrt(sumSq)
			if zeroCol < 0 && norms[c] < 1e-12 {
				zeroCol = c
			}
		}

		if zeroCol >= 0 {
			return mat.VecDenseCopyOf(points.ColView(zeroCol)), nil
		}

		next := mat.NewVecDense(rows, nil)
		invSum := 0.0
		for c := 0; c < cols; c++ {
			inv := 1.0 / norms[c]
			invSum += inv
			for r := 0; r < rows; r++ {
				next.SetVec(r, next.AtVec(r)+points.At(r, c)*inv)
			}
		}
		for r := 0; r < rows; r++ {
			next.SetVec(r, next.AtVec(r)/invSum)
		}

		if distance(next, estimate) < tolerance {
			return next, nil
		}
		estimate = next
	}

	return estimate, nil
}

// initialEstimate seeds the iteration with the per-coordinate median,
// matching estimator.py's np.median(points, axis=1) starting point.
func initialEstimate(points *mat.Dense) *mat.VecDense {
	rows, cols := points.Dims()
	estimate := mat.NewVecDense(rows, nil)
	row := make([]float64, cols)
	for r := 0; r < rows; r++ {
		copy(row, points.RawRowView(r))
		estimate.SetVec(r, medianOf(row))
	}
	return estimate
}

func medianOf(xs []float64) float64 {
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	insertionSort(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func insertionSort(xs []float64) {
	for i := 1; i < len(xs); i++ {
		v := xs[i]
		j := i - 1
		for j >= 0 && xs[j] > v {
			xs[j+1] = xs[j]
			j--
		}
		xs[j+1] = v
	}
}

func distance(a, b mat.Vector) float64 {
	sumSq := 0.0
	for i := 0; i < a.Len(); i++ {
		d := a.AtVec(i) - b.AtVec(i)
		sumSq += d * d
	}
	return math.Sqrt(sumSq)
}

var _ filter.GeometricMedianSolver = (*Weiszfeld)(nil)
