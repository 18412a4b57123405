package noise

import "gonum.org/v1/gonum/mat"

// Source is anything that can produce additive noise samples with a known
// covariance: Gaussian, Zero and None all implement it.
type Source interface {
	// Sample draws a single noise vector.
	Sample() mat.Vector
	// Cov returns the noise covariance matrix.
	Cov() mat.Symmetric
}
