// Package rand provides the core's pseudorandom-number utilities. Every
// function here takes an explicit *Source rather than reaching for a
// package-level generator, so every component that needs randomness
// (exchange-plan construction, per-PE sampling and resampling)
// can be seeded independently and scenarios stay reproducible (spec §9).
package rand

import (
	"fmt"
	"math"
	mrand "math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Source is an explicitly-seeded pseudorandom source. It wraps
// math/rand.Rand so every DPF component gets its own private stream.
type Source struct {
	rng *mrand.Rand
}

// NewSource returns a Source seeded with seed.
func NewSource(seed uint64) *Source {
	return &Source{rng: mrand.New(mrand.NewSource(int64(seed)))}
}

// Float64 returns a pseudorandom float64 in [0, 1).
func (s *Source) Float64() float64 {
	return s.rng.Float64()
}

// NormFloat64 returns a pseudorandom sample from the standard normal distribution.
func (s *Source) NormFloat64() float64 {
	return s.rng.NormFloat64()
}

// Perm returns a pseudorandom permutation of [0, n).
func (s *Source) Perm(n int) []int {
	return s.rng.Perm(n)
}

// WithCovNFrom draws n random samples from a zero-mean Normal (aka
// Gaussian) distribution with covariance cov, drawing from src. It
// returns a matrix which contains the randomly generated samples stored
// in its columns. It fails with error if n is non-positive and/or
// smaller than 1 or if SVD factorization of cov fails.
func WithCovNFrom(src *Source, cov mat.Symmetric, n int) (*mat.Dense, error) {
	if n <= 0 {
		return nil, fmt.Errorf("Invalid number of samples requested: %d", n)
	}

	// Use SVD instead of Cholesky as Cholesky can be numerically unstable if cov is (almost) singular
	var svd mat.SVD
	ok := svd.Factorize(cov, mat.SVDFull)
	if !ok {
		return nil, fmt.Errorf("SVD factorization failed")
	}

	U := new(mat.Dense)
	svd.UTo(U)
	vals := svd.Values(nil)
	for i := range vals {
		vals[i] = math.Sqrt(vals[i])
	}
	diag := mat.NewDiagDense(len(vals), vals)
	U.Mul(U, diag)

	rows, _ := cov.Dims()
	data := make([]float64, rows*n)
	for i := range data {
		data[i] = src.NormFloat64()
	}
	samples := mat.NewDense(rows, n, data)
	samples.Mul(U, samples)

	return samples, nil
}

// RouletteDrawN draws n numbers randomly from a probability mass function (PMF) defined by weights in p.
// RouletteDrawN implements the Roulette Wheel Draw a.k.a. Fitness Proportionate Selection:
// - https://en.wikipedia.org/wiki/Fitness_proportionate_selection
// - http://www.keithschwarz.com/darts-dice-coins/
// It returns a slice of n indices into the vector p.
// It fails with error if p is empty or nil.
func RouletteDrawN(src *Source, p []float64, n int) ([]int, error) {
	if len(p) == 0 {
		return nil, fmt.Errorf("Invalid probability weights: %v", p)
	}

	// Initialization: create the discrete CDF
	// We know that cdf is sorted in ascending order
	cdf := make([]float64, len(p))
	floats.CumSum(cdf, p)

	// Generation:
	// 1. Generate a uniformly-random value x in the range [0,1)
	// 2. Using a binary search, find the index of the smallest element in cdf larger than x
	unit := distuv.Uniform{Min: 0, Max: 1, Src: src.rng}
	var val float64
	indices := make([]int, n)
	for i := range indices {
		// multiply the sample with the largest CDF value; easier than normalizing to [0,1)
		val = unit.Rand() * cdf[len(cdf)-1]
		// Search returns the smallest index i such that cdf[i] > val
		indices[i] = sort.Search(len(cdf), func(i int) bool { return cdf[i] > val })
	}

	return indices, nil
}

// ChooseWithoutReplacement draws k distinct values from the candidates
// slice uniformly at random, without replacement. It is the primitive
// behind DRNA exchange-slot selection (exchange_recipe.py's
// `PRNG.choice(..., replace=False)`). It fails if k exceeds len(candidates).
func ChooseWithoutReplacement(src *Source, candidates []int, k int) ([]int, error) {
	if k > len(candidates) {
		return nil, fmt.Errorf("cannot choose %d distinct values out of %d candidates", k, len(candidates))
	}
	if k < 0 {
		return nil, fmt.Errorf("invalid choice count: %d", k)
	}

	perm := src.Perm(len(candidates))
	chosen := make([]int, k)
	for i := 0; i < k; i++ {
		chosen[i] = candidates[perm[i]]
	}

	return chosen, nil
}
